package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maheshrc27/postflow/internal/service"
	"github.com/stretchr/testify/assert"
)

type fakeCreds struct {
	service.CredentialService

	horizon  time.Duration
	deadline bool
	err      error
}

func (f *fakeCreds) RefreshExpiring(ctx context.Context, d time.Duration) (int, error) {
	f.horizon = d
	_, f.deadline = ctx.Deadline()
	return 2, f.err
}

func TestRefreshTokensSweepsHorizon(t *testing.T) {
	creds := &fakeCreds{}
	NewTokenRefreshJob(creds).RefreshTokens()

	assert.Equal(t, refreshHorizon, creds.horizon)
	assert.True(t, creds.deadline)
}

func TestRefreshTokensSurvivesErrors(t *testing.T) {
	creds := &fakeCreds{err: errors.New("db down")}
	assert.NotPanics(t, func() { NewTokenRefreshJob(creds).RefreshTokens() })
}

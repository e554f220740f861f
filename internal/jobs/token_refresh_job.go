package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/service"
)

const (
	refreshHorizon = 30 * time.Minute
	refreshTimeout = 5 * time.Minute
)

// TokenRefreshJob refreshes credentials that expire soon so dispatches rarely
// need to refresh inline.
type TokenRefreshJob struct {
	creds service.CredentialService
}

func NewTokenRefreshJob(creds service.CredentialService) *TokenRefreshJob {
	return &TokenRefreshJob{creds: creds}
}

// RefreshTokens is registered with cron.
func (j *TokenRefreshJob) RefreshTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	n, err := j.creds.RefreshExpiring(ctx, refreshHorizon)
	if err != nil {
		slog.Error("token refresh sweep failed", "error", err)
		return
	}
	slog.Info("token refresh sweep finished", "refreshed", n)
}

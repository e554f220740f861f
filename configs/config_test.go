package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "")
	t.Setenv("PUBLISH_RETRY_DELAY", "")
	t.Setenv("CANCEL_SAFETY_WINDOW", "")
	t.Setenv("DISPATCH_TIMEOUT", "")

	cfg := LoadConfig()
	assert.Equal(t, 10, cfg.WorkerConcurrency)
	assert.Equal(t, 3, cfg.PublishMaxAttempts)
	assert.Equal(t, time.Minute, cfg.PublishRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.CancelSafetyWindow)
	assert.Equal(t, time.Minute, cfg.DispatchTimeout)
	assert.Equal(t, "@every 00h10m00s", cfg.TokenRefreshInterval)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("PUBLISH_RETRY_DELAY", "5s")
	t.Setenv("TWITTER_CLIENT_ID", "tw-client")

	cfg := LoadConfig()
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, 5*time.Second, cfg.PublishRetryDelay)
	assert.Equal(t, "tw-client", cfg.Twitter.ClientID)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "many")
	t.Setenv("HTTP_CLIENT_TIMEOUT", "soon")

	cfg := LoadConfig()
	assert.Equal(t, 10, cfg.WorkerConcurrency)
	assert.Equal(t, 30*time.Second, cfg.HTTPClientTimeout)
}

func TestR2Enabled(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.R2Enabled())

	cfg.R2 = R2{AccountID: "a", AccessKey: "k", SecretKey: "s", BucketName: "b"}
	assert.True(t, cfg.R2Enabled())
}

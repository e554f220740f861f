package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

// OAuthApp holds the app registration used to link accounts of one platform.
type OAuthApp struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

type Config struct {
	Twitter   OAuthApp
	LinkedIn  OAuthApp
	Instagram OAuthApp
	Google    OAuthApp

	PostgresURI string
	RedisURI    string
	FrontendURL string
	R2          R2
	SecretKey   string
	CookieName  string

	HTTPAddr    string
	MetricsAddr string
	LogFormat   string
	LogLevel    string

	WorkerConcurrency    int
	PublishMaxAttempts   int
	PublishRetryDelay    time.Duration
	HTTPClientTimeout    time.Duration
	DispatchTimeout      time.Duration
	CancelSafetyWindow   time.Duration
	TokenRefreshInterval string
	PlatformRatePerMin   int
}

func LoadConfig() *Config {
	return &Config{
		Twitter: OAuthApp{
			ClientID:     getEnv("TWITTER_CLIENT_ID", ""),
			ClientSecret: getEnv("TWITTER_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("TWITTER_REDIRECT_URI", ""),
		},
		LinkedIn: OAuthApp{
			ClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
			ClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("LINKEDIN_REDIRECT_URI", ""),
		},
		Instagram: OAuthApp{
			ClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
			ClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("INSTAGRAM_REDIRECT_URI", ""),
		},
		Google: OAuthApp{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("GOOGLE_REDIRECT_URI", ""),
		},
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", "localhost:6379"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", "postflow_session"),

		HTTPAddr:    getEnv("HTTP_ADDR", ":3000"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		WorkerConcurrency:    getEnvInt("WORKER_CONCURRENCY", 10),
		PublishMaxAttempts:   getEnvInt("PUBLISH_MAX_ATTEMPTS", 3),
		PublishRetryDelay:    getEnvDuration("PUBLISH_RETRY_DELAY", time.Minute),
		HTTPClientTimeout:    getEnvDuration("HTTP_CLIENT_TIMEOUT", 30*time.Second),
		DispatchTimeout:      getEnvDuration("DISPATCH_TIMEOUT", time.Minute),
		CancelSafetyWindow:   getEnvDuration("CANCEL_SAFETY_WINDOW", 30*time.Second),
		TokenRefreshInterval: getEnv("TOKEN_REFRESH_INTERVAL", "@every 00h10m00s"),
		PlatformRatePerMin:   getEnvInt("PLATFORM_RATE_LIMIT_PER_MINUTE", 60),
	}
}

// R2Enabled reports whether media uploads to the bucket are configured.
func (c *Config) R2Enabled() bool {
	return c.R2.AccountID != "" && c.R2.AccessKey != "" && c.R2.SecretKey != "" && c.R2.BucketName != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		slog.Warn("invalid integer in environment; using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		slog.Warn("invalid duration in environment; using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return d
}

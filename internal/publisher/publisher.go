// Package publisher implements the client side of each platform's publish
// protocol. The set of platforms is closed: Set.For switches over every
// models.Platform and each variant lives in its own file.
package publisher

import (
	"context"
	"net/http"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"golang.org/x/oauth2"
)

// Publisher publishes content for a single platform. Credentials handed to a
// Publisher carry decrypted tokens.
type Publisher interface {
	Platform() models.Platform
	// Publish returns the platform's identifier for the created post.
	Publish(ctx context.Context, acc *models.SocialAccount, content, mediaURL string) (string, error)
	// Refresh exchanges acc's refresh token for a new token set. Platforms
	// without a refresh protocol return ErrRefreshUnsupported.
	Refresh(ctx context.Context, acc *models.SocialAccount) (*oauth2.Token, error)
}

// Config carries the endpoints and app credentials for every platform. Empty
// URLs fall back to the production endpoints.
type Config struct {
	HTTPClient    *http.Client
	Timeout       time.Duration
	RatePerMinute int

	TwitterBaseURL      string
	TwitterTokenURL     string
	TwitterClientID     string
	TwitterClientSecret string

	InstagramBaseURL string

	LinkedInBaseURL string

	GoogleTokenURL     string
	GoogleClientID     string
	GoogleClientSecret string
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Set holds one Publisher per platform.
type Set struct {
	Twitter   Publisher
	Instagram Publisher
	LinkedIn  Publisher
	Youtube   Publisher
}

func NewSet(cfg Config) *Set {
	hc := cfg.httpClient()
	return &Set{
		Twitter:   NewTwitter(cfg, hc),
		Instagram: NewInstagram(cfg, hc),
		LinkedIn:  NewLinkedIn(cfg, hc),
		Youtube:   NewYoutube(cfg, hc),
	}
}

// For returns the publisher for p.
func (s *Set) For(p models.Platform) (Publisher, error) {
	var pub Publisher
	switch p {
	case models.PlatformTwitter:
		pub = s.Twitter
	case models.PlatformInstagram:
		pub = s.Instagram
	case models.PlatformLinkedIn:
		pub = s.LinkedIn
	case models.PlatformYoutube:
		pub = s.Youtube
	}
	if pub == nil {
		return nil, newError(KindUnsupported, p, "platform is not supported", nil)
	}
	return pub, nil
}

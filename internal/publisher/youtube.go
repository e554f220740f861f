package publisher

import (
	"context"
	"net/http"

	"github.com/maheshrc27/postflow/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type youtube struct {
	api          *apiClient
	tokenURL     string
	clientID     string
	clientSecret string
}

func NewYoutube(cfg Config, hc *http.Client) Publisher {
	tokenURL := cfg.GoogleTokenURL
	if tokenURL == "" {
		tokenURL = google.Endpoint.TokenURL
	}
	return &youtube{
		api:          newAPIClient(models.PlatformYoutube, hc, cfg.RatePerMinute),
		tokenURL:     tokenURL,
		clientID:     cfg.GoogleClientID,
		clientSecret: cfg.GoogleClientSecret,
	}
}

func (y *youtube) Platform() models.Platform { return models.PlatformYoutube }

// Publish always fails: YouTube has no text post API and video upload is not
// offered.
func (y *youtube) Publish(ctx context.Context, acc *models.SocialAccount, content, mediaURL string) (string, error) {
	return "", newError(KindUnsupported, models.PlatformYoutube,
		"text and community posts are not supported on YouTube", nil)
}

func (y *youtube) Refresh(ctx context.Context, acc *models.SocialAccount) (*oauth2.Token, error) {
	if acc.RefreshToken == "" {
		return nil, ErrRefreshUnsupported
	}
	conf := &oauth2.Config{
		ClientID:     y.clientID,
		ClientSecret: y.clientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   google.Endpoint.AuthURL,
			TokenURL:  y.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	token, err := conf.TokenSource(y.api.oauthContext(ctx), &oauth2.Token{RefreshToken: acc.RefreshToken}).Token()
	if err != nil {
		return nil, refreshError(models.PlatformYoutube, err)
	}
	return token, nil
}

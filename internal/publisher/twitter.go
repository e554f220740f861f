package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maheshrc27/postflow/internal/models"
	"golang.org/x/oauth2"
)

const (
	twitterBaseURL   = "https://api.twitter.com/2"
	twitterMaxLength = 280
)

type twitter struct {
	api          *apiClient
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
}

func NewTwitter(cfg Config, hc *http.Client) Publisher {
	base := cfg.TwitterBaseURL
	if base == "" {
		base = twitterBaseURL
	}
	tokenURL := cfg.TwitterTokenURL
	if tokenURL == "" {
		tokenURL = base + "/oauth2/token"
	}
	return &twitter{
		api:          newAPIClient(models.PlatformTwitter, hc, cfg.RatePerMinute),
		baseURL:      strings.TrimRight(base, "/"),
		tokenURL:     tokenURL,
		clientID:     cfg.TwitterClientID,
		clientSecret: cfg.TwitterClientSecret,
	}
}

func (t *twitter) Platform() models.Platform { return models.PlatformTwitter }

func (t *twitter) Publish(ctx context.Context, acc *models.SocialAccount, content, mediaURL string) (string, error) {
	if mediaURL != "" {
		slog.Warn("twitter media attachments are not supported; publishing text only",
			"user_id", acc.UserID, "media_url", mediaURL)
	}

	body, err := json.Marshal(map[string]string{"text": truncate(content, twitterMaxLength)})
	if err != nil {
		return "", newError(KindPlatform, models.PlatformTwitter, "encoding tweet", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/tweets", bytes.NewReader(body))
	if err != nil {
		return "", newError(KindConfiguration, models.PlatformTwitter, "building request", err)
	}
	bearer(req, acc.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, respBody, err := t.api.do(req)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Detail string `json:"detail"`
			Title  string `json:"title"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		msg := apiErr.Detail
		if msg == "" {
			msg = apiErr.Title
		}
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return "", statusError(models.PlatformTwitter, resp.StatusCode, msg)
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", newError(KindPlatform, models.PlatformTwitter, "decoding tweet response", err)
	}
	if result.Data.ID == "" {
		return "", newError(KindPlatform, models.PlatformTwitter, "no tweet id returned", nil)
	}
	return result.Data.ID, nil
}

// Refresh uses the OAuth 2.0 refresh_token grant. The client id recorded at
// link time wins over the configured one.
func (t *twitter) Refresh(ctx context.Context, acc *models.SocialAccount) (*oauth2.Token, error) {
	if acc.RefreshToken == "" {
		return nil, ErrRefreshUnsupported
	}
	clientID := acc.Metadata.ClientID
	if clientID == "" {
		clientID = t.clientID
	}
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: t.clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: t.tokenURL},
	}
	if t.clientSecret == "" {
		conf.Endpoint.AuthStyle = oauth2.AuthStyleInParams
	}

	token, err := conf.TokenSource(t.api.oauthContext(ctx), &oauth2.Token{RefreshToken: acc.RefreshToken}).Token()
	if err != nil {
		return nil, refreshError(models.PlatformTwitter, err)
	}
	return token, nil
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

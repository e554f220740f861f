package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
	"golang.org/x/oauth2"
)

const (
	instagramBaseURL = "https://graph.facebook.com/v18.0"

	// Graph API code for an expired or invalid access token.
	graphInvalidTokenCode = 190
)

type instagram struct {
	api     *apiClient
	baseURL string
}

func NewInstagram(cfg Config, hc *http.Client) Publisher {
	base := cfg.InstagramBaseURL
	if base == "" {
		base = instagramBaseURL
	}
	return &instagram{
		api:     newAPIClient(models.PlatformInstagram, hc, cfg.RatePerMinute),
		baseURL: strings.TrimRight(base, "/"),
	}
}

func (ig *instagram) Platform() models.Platform { return models.PlatformInstagram }

// Publish creates a media container for the image and caption, then publishes
// the container by its creation id.
func (ig *instagram) Publish(ctx context.Context, acc *models.SocialAccount, content, mediaURL string) (string, error) {
	if mediaURL == "" {
		return "", newError(KindConfiguration, models.PlatformInstagram, "Instagram requires media", nil)
	}
	accountID := acc.Metadata.InstagramAccountID
	if accountID == "" {
		return "", newError(KindConfiguration, models.PlatformInstagram,
			"instagram account id not found, reconnect the account", nil)
	}

	creationID, err := ig.post(ctx, fmt.Sprintf("%s/%s/media", ig.baseURL, accountID), url.Values{
		"image_url":    {mediaURL},
		"caption":      {content},
		"access_token": {acc.AccessToken},
	})
	if err != nil {
		return "", err
	}

	postID, err := ig.post(ctx, fmt.Sprintf("%s/%s/media_publish", ig.baseURL, accountID), url.Values{
		"creation_id":  {creationID},
		"access_token": {acc.AccessToken},
	})
	if err != nil {
		return "", err
	}
	return postID, nil
}

func (ig *instagram) post(ctx context.Context, endpoint string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", newError(KindConfiguration, models.PlatformInstagram, "building request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, body, err := ig.api.do(req)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", graphError(resp.StatusCode, body)
	}

	var result transfer.InstagramMediaResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", newError(KindPlatform, models.PlatformInstagram, "decoding response", err)
	}
	if result.ID == "" {
		return "", newError(KindPlatform, models.PlatformInstagram, "no media id returned", nil)
	}
	return result.ID, nil
}

func graphError(status int, body []byte) *Error {
	var gr transfer.InstagramErrorResponse
	if err := json.Unmarshal(body, &gr); err != nil || gr.Error.Message == "" {
		return statusError(models.PlatformInstagram, status, bodySnippet(body))
	}

	pe := statusError(models.PlatformInstagram, status, gr.Error.Message)
	switch {
	case gr.Error.IsTransient:
		pe.Kind = KindNetwork
	case gr.Error.Code == graphInvalidTokenCode:
		pe.Kind = KindAuth
	}
	return pe
}

// Refresh is not offered: Graph API tokens are long-lived and re-issued by
// relinking.
func (ig *instagram) Refresh(ctx context.Context, acc *models.SocialAccount) (*oauth2.Token, error) {
	return nil, ErrRefreshUnsupported
}

package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/maheshrc27/postflow/internal/models"
	"golang.org/x/oauth2"
)

const (
	linkedinBaseURL        = "https://api.linkedin.com/v2"
	linkedinDescriptionMax = 200
)

type linkedin struct {
	api     *apiClient
	baseURL string
}

func NewLinkedIn(cfg Config, hc *http.Client) Publisher {
	base := cfg.LinkedInBaseURL
	if base == "" {
		base = linkedinBaseURL
	}
	return &linkedin{
		api:     newAPIClient(models.PlatformLinkedIn, hc, cfg.RatePerMinute),
		baseURL: strings.TrimRight(base, "/"),
	}
}

func (l *linkedin) Platform() models.Platform { return models.PlatformLinkedIn }

type linkedinShare struct {
	Author          string                     `json:"author"`
	LifecycleState  string                     `json:"lifecycleState"`
	SpecificContent map[string]linkedinContent `json:"specificContent"`
	Visibility      map[string]string          `json:"visibility"`
}

type linkedinContent struct {
	ShareCommentary    linkedinText    `json:"shareCommentary"`
	ShareMediaCategory string          `json:"shareMediaCategory"`
	Media              []linkedinMedia `json:"media,omitempty"`
}

type linkedinMedia struct {
	Status      string       `json:"status"`
	Description linkedinText `json:"description"`
	OriginalURL string       `json:"originalUrl"`
}

type linkedinText struct {
	Text string `json:"text"`
}

func (l *linkedin) Publish(ctx context.Context, acc *models.SocialAccount, content, mediaURL string) (string, error) {
	personURN := acc.Metadata.PersonURN
	if personURN == "" {
		return "", newError(KindConfiguration, models.PlatformLinkedIn,
			"linkedin person urn not found, reconnect the account", nil)
	}

	share := linkedinContent{
		ShareCommentary:    linkedinText{Text: content},
		ShareMediaCategory: "NONE",
	}
	if mediaURL != "" {
		share.ShareMediaCategory = "ARTICLE"
		share.Media = []linkedinMedia{{
			Status:      "READY",
			Description: linkedinText{Text: truncate(content, linkedinDescriptionMax)},
			OriginalURL: mediaURL,
		}}
	}

	payload := linkedinShare{
		Author:          personURN,
		LifecycleState:  "PUBLISHED",
		SpecificContent: map[string]linkedinContent{"com.linkedin.ugc.ShareContent": share},
		Visibility:      map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", newError(KindPlatform, models.PlatformLinkedIn, "encoding share", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return "", newError(KindConfiguration, models.PlatformLinkedIn, "building request", err)
	}
	bearer(req, acc.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, respBody, err := l.api.do(req)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return "", statusError(models.PlatformLinkedIn, resp.StatusCode, apiErr.Message)
	}

	// The share URN comes back in a header rather than the body.
	if id := resp.Header.Get("X-RestLi-Id"); id != "" {
		return id, nil
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", newError(KindPlatform, models.PlatformLinkedIn, "no share id returned", nil)
	}
	return location[strings.LastIndex(location, "/")+1:], nil
}

func (l *linkedin) Refresh(ctx context.Context, acc *models.SocialAccount) (*oauth2.Token, error) {
	return nil, ErrRefreshUnsupported
}

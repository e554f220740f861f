package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultRatePerMinute = 60
	maxErrorBody         = 4096
)

// apiClient wraps the outbound HTTP client for one platform. Every request is
// rate limited and transport failures come back as network errors.
type apiClient struct {
	platform models.Platform
	http     *http.Client
	limiter  *rate.Limiter
}

func newAPIClient(platform models.Platform, hc *http.Client, perMinute int) *apiClient {
	if perMinute <= 0 {
		perMinute = defaultRatePerMinute
	}
	return &apiClient{
		platform: platform,
		http:     hc,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

func (c *apiClient) do(req *http.Request) (*http.Response, []byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, nil, newError(KindNetwork, c.platform, "rate limiter wait aborted", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, newError(KindNetwork, c.platform, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, newError(KindNetwork, c.platform, "reading response body", err)
	}
	return resp, body, nil
}

// oauthContext makes oauth2 token exchanges use the platform client.
func (c *apiClient) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

// statusError maps a non-2xx response to an Error. 401/403 are auth failures;
// 429 and gateway errors are transient; anything else is a platform rejection.
func statusError(platform models.Platform, status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	kind := KindPlatform
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusTooManyRequests,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		kind = KindNetwork
	}
	return &Error{Kind: kind, Platform: platform, StatusCode: status, Message: message}
}

// refreshError classifies a failed oauth2 refresh.
func refreshError(platform models.Platform, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		pe := statusError(platform, re.Response.StatusCode, strings.TrimSpace(re.ErrorDescription))
		if pe.Kind == KindPlatform {
			pe.Kind = KindAuth
		}
		pe.Err = err
		return pe
	}
	return newError(KindNetwork, platform, "token refresh failed", err)
}

func bodySnippet(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}

func bearer(req *http.Request, token string) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
}

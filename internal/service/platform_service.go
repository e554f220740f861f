package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/linkedin"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	twitterAuthURL  = "https://twitter.com/i/oauth2/authorize"
	twitterTokenURL = "https://api.twitter.com/2/oauth2/token"
	twitterAPI      = "https://api.twitter.com/2"
	linkedInAPI     = "https://api.linkedin.com/v2"
	graphAPI        = "https://graph.facebook.com/v18.0"
)

// PlatformService links and unlinks publishing accounts through each
// platform's OAuth flow.
type PlatformService interface {
	AuthURL(platform models.Platform, state string) (string, error)
	Callback(ctx context.Context, platform models.Platform, code, state string, userID int64) (*models.ConnectionStatus, error)
	Disconnect(ctx context.Context, userID int64, platform models.Platform) error
	Connections(ctx context.Context, userID int64) ([]models.ConnectionStatus, error)
}

type linkTarget struct {
	oauth   *oauth2.Config
	apiBase string
}

type PlatformOption func(*platformService)

// WithLinkEndpoint overrides the OAuth and API endpoints used to link
// accounts of platform p.
func WithLinkEndpoint(p models.Platform, authURL, tokenURL, apiBase string) PlatformOption {
	return func(s *platformService) {
		t := s.targets[p]
		t.oauth.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL, AuthStyle: t.oauth.Endpoint.AuthStyle}
		t.apiBase = strings.TrimRight(apiBase, "/")
	}
}

func WithLinkHTTPClient(hc *http.Client) PlatformOption {
	return func(s *platformService) { s.hc = hc }
}

type platformService struct {
	creds   CredentialService
	hc      *http.Client
	targets map[models.Platform]*linkTarget
}

func NewPlatformService(cfg config.Config, creds CredentialService, opts ...PlatformOption) PlatformService {
	s := &platformService{
		creds: creds,
		hc:    &http.Client{Timeout: cfg.HTTPClientTimeout},
		targets: map[models.Platform]*linkTarget{
			models.PlatformTwitter: {
				oauth: &oauth2.Config{
					ClientID:     cfg.Twitter.ClientID,
					ClientSecret: cfg.Twitter.ClientSecret,
					RedirectURL:  cfg.Twitter.RedirectURI,
					Scopes:       []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
					Endpoint:     oauth2.Endpoint{AuthURL: twitterAuthURL, TokenURL: twitterTokenURL},
				},
				apiBase: twitterAPI,
			},
			models.PlatformLinkedIn: {
				oauth: &oauth2.Config{
					ClientID:     cfg.LinkedIn.ClientID,
					ClientSecret: cfg.LinkedIn.ClientSecret,
					RedirectURL:  cfg.LinkedIn.RedirectURI,
					Scopes:       []string{"openid", "profile", "w_member_social"},
					Endpoint:     linkedin.Endpoint,
				},
				apiBase: linkedInAPI,
			},
			models.PlatformInstagram: {
				oauth: &oauth2.Config{
					ClientID:     cfg.Instagram.ClientID,
					ClientSecret: cfg.Instagram.ClientSecret,
					RedirectURL:  cfg.Instagram.RedirectURI,
					Scopes:       []string{"instagram_basic", "instagram_content_publish", "pages_show_list", "business_management"},
					Endpoint:     facebook.Endpoint,
				},
				apiBase: graphAPI,
			},
			models.PlatformYoutube: {
				oauth: &oauth2.Config{
					ClientID:     cfg.Google.ClientID,
					ClientSecret: cfg.Google.ClientSecret,
					RedirectURL:  cfg.Google.RedirectURI,
					Scopes:       []string{youtube.YoutubeReadonlyScope, youtube.YoutubeUploadScope},
					Endpoint:     google.Endpoint,
				},
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *platformService) target(p models.Platform) (*linkTarget, error) {
	t, ok := s.targets[p]
	if !ok {
		return nil, fmt.Errorf("%w: unknown platform %q", ErrValidation, p)
	}
	if t.oauth.ClientID == "" || t.oauth.RedirectURL == "" {
		return nil, fmt.Errorf("%w: %s linking is not configured", ErrValidation, p)
	}
	return t, nil
}

// pkceVerifier derives the PKCE verifier from the OAuth state so the callback
// can recompute it without server-side storage.
func pkceVerifier(state string) string {
	sum := sha256.Sum256([]byte(state))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func (s *platformService) AuthURL(platform models.Platform, state string) (string, error) {
	t, err := s.target(platform)
	if err != nil {
		return "", err
	}

	var opts []oauth2.AuthCodeOption
	switch platform {
	case models.PlatformTwitter:
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", pkceVerifier(state)),
			oauth2.SetAuthURLParam("code_challenge_method", "plain"))
	case models.PlatformYoutube:
		opts = append(opts, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	}
	return t.oauth.AuthCodeURL(state, opts...), nil
}

func (s *platformService) Callback(ctx context.Context, platform models.Platform, code, state string, userID int64) (*models.ConnectionStatus, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: code is empty", ErrValidation)
	}
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user is not valid", ErrValidation)
	}
	t, err := s.target(platform)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.hc)

	var opts []oauth2.AuthCodeOption
	if platform == models.PlatformTwitter {
		opts = append(opts, oauth2.VerifierOption(pkceVerifier(state)))
	}
	token, err := t.oauth.Exchange(ctx, code, opts...)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%s token exchange: %w", platform, err)
	}
	if platform == models.PlatformYoutube && token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: google did not return a refresh token", ErrValidation)
	}

	acc := &models.SocialAccount{
		UserID:       userID,
		Platform:     platform,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		acc.TokenExpiresAt = &expiry
	}

	switch platform {
	case models.PlatformTwitter:
		err = s.twitterIdentity(ctx, t, token.AccessToken, acc)
	case models.PlatformLinkedIn:
		err = s.linkedInIdentity(ctx, t, token.AccessToken, acc)
	case models.PlatformInstagram:
		err = s.instagramIdentity(ctx, t, token.AccessToken, acc)
	case models.PlatformYoutube:
		err = s.youtubeIdentity(ctx, t, token, acc)
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.creds.Upsert(ctx, acc); err != nil {
		return nil, err
	}

	return &models.ConnectionStatus{
		Platform:    platform,
		Connected:   true,
		AccountName: acc.AccountName,
		ExpiresAt:   acc.TokenExpiresAt,
	}, nil
}

func (s *platformService) getJSON(ctx context.Context, endpoint, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := s.hc.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("GET %s: status %d: %s", req.URL.Path, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *platformService) twitterIdentity(ctx context.Context, t *linkTarget, accessToken string, acc *models.SocialAccount) error {
	var res struct {
		Data struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := s.getJSON(ctx, t.apiBase+"/users/me", accessToken, &res); err != nil {
		return fmt.Errorf("twitter identity: %w", err)
	}

	acc.AccountID = res.Data.ID
	acc.AccountName = res.Data.Username
	acc.Metadata = models.AccountMetadata{ClientID: t.oauth.ClientID}
	return nil
}

func (s *platformService) linkedInIdentity(ctx context.Context, t *linkTarget, accessToken string, acc *models.SocialAccount) error {
	var res struct {
		Sub  string `json:"sub"`
		Name string `json:"name"`
	}
	if err := s.getJSON(ctx, t.apiBase+"/userinfo", accessToken, &res); err != nil {
		return fmt.Errorf("linkedin identity: %w", err)
	}
	if res.Sub == "" {
		return fmt.Errorf("%w: linkedin did not return a member id", ErrValidation)
	}

	acc.AccountID = res.Sub
	acc.AccountName = res.Name
	acc.Metadata = models.AccountMetadata{PersonURN: "urn:li:person:" + res.Sub}
	return nil
}

func (s *platformService) instagramIdentity(ctx context.Context, t *linkTarget, accessToken string, acc *models.SocialAccount) error {
	q := url.Values{}
	q.Set("fields", "id,name,instagram_business_account{id,username}")
	q.Set("access_token", accessToken)

	var res transfer.InstagramPagesResponse
	if err := s.getJSON(ctx, t.apiBase+"/me/accounts?"+q.Encode(), "", &res); err != nil {
		return fmt.Errorf("instagram identity: %w", err)
	}

	for _, page := range res.Data {
		if page.InstagramBusinessAccount == nil || page.InstagramBusinessAccount.ID == "" {
			continue
		}
		acc.AccountID = page.InstagramBusinessAccount.ID
		acc.AccountName = page.InstagramBusinessAccount.Username
		acc.Metadata = models.AccountMetadata{InstagramAccountID: page.InstagramBusinessAccount.ID}
		return nil
	}
	return fmt.Errorf("%w: no Instagram business account is connected to a Facebook page", ErrValidation)
}

func (s *platformService) youtubeIdentity(ctx context.Context, t *linkTarget, token *oauth2.Token, acc *models.SocialAccount) error {
	opts := []option.ClientOption{option.WithHTTPClient(t.oauth.Client(ctx, token))}
	if t.apiBase != "" {
		opts = append(opts, option.WithEndpoint(t.apiBase+"/"))
	}

	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	res, err := svc.Channels.List([]string{"snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("youtube identity: %w", err)
	}
	if len(res.Items) == 0 {
		return fmt.Errorf("%w: google account has no YouTube channel", ErrValidation)
	}

	channel := res.Items[0]
	acc.AccountID = channel.Id
	if channel.Snippet != nil {
		acc.AccountName = channel.Snippet.Title
	}
	acc.Metadata = models.AccountMetadata{ChannelID: channel.Id}
	return nil
}

func (s *platformService) Disconnect(ctx context.Context, userID int64, platform models.Platform) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user is not valid", ErrValidation)
	}
	return s.creds.Deactivate(ctx, userID, platform)
}

func (s *platformService) Connections(ctx context.Context, userID int64) ([]models.ConnectionStatus, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user is not valid", ErrValidation)
	}
	return s.creds.ConnectionStatus(ctx, userID)
}


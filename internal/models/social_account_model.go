package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SocialAccount is the stored credential that lets the service publish to one
// platform on behalf of a user. There is at most one per (user, platform).
type SocialAccount struct {
	ID             int64           `db:"id" json:"id"`
	UserID         int64           `db:"user_id" json:"user_id"`
	Platform       Platform        `db:"platform" json:"platform"`
	AccountID      string          `db:"account_id" json:"account_id"`
	AccountName    string          `db:"account_name" json:"account_name"`
	AccessToken    string          `db:"access_token" json:"-"`
	RefreshToken   string          `db:"refresh_token" json:"-"`
	TokenExpiresAt *time.Time      `db:"token_expires_at" json:"token_expires_at,omitempty"`
	Metadata       AccountMetadata `db:"metadata" json:"metadata"`
	IsActive       bool            `db:"is_active" json:"is_active"`
	ConnectedAt    time.Time       `db:"connected_at" json:"connected_at"`
	LastUsedAt     *time.Time      `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

func (sa *SocialAccount) IsConnected() bool {
	return sa.AccessToken != "" && sa.IsActive
}

// ExpiresWithin reports whether the access token expires before now+d.
// Tokens without a known expiry are treated as expiring.
func (sa *SocialAccount) ExpiresWithin(now time.Time, d time.Duration) bool {
	if sa.TokenExpiresAt == nil {
		return true
	}
	return sa.TokenExpiresAt.Before(now.Add(d))
}

// AccountMetadata holds the platform-specific identifiers captured when an
// account is linked. Each field belongs to exactly one platform.
type AccountMetadata struct {
	// Twitter: OAuth client the refresh token was issued to.
	ClientID string `json:"client_id,omitempty"`
	// Instagram: business account that owns the media containers.
	InstagramAccountID string `json:"instagram_account_id,omitempty"`
	// LinkedIn: share author, e.g. urn:li:person:abc.
	PersonURN string `json:"person_urn,omitempty"`
	// YouTube
	ChannelID string `json:"channel_id,omitempty"`
}

var ErrInvalidMetadata = errors.New("invalid account metadata")

// Validate checks that m only carries fields owned by p and that the fields p
// needs for publishing are present.
func (m AccountMetadata) Validate(p Platform) error {
	owned := map[Platform][]string{
		PlatformTwitter:   {m.ClientID},
		PlatformInstagram: {m.InstagramAccountID},
		PlatformLinkedIn:  {m.PersonURN},
		PlatformYoutube:   {m.ChannelID},
	}
	for other, fields := range owned {
		if other == p {
			continue
		}
		for _, f := range fields {
			if f != "" {
				return fmt.Errorf("%w: %s account carries %s fields", ErrInvalidMetadata, p, other)
			}
		}
	}

	switch p {
	case PlatformInstagram:
		if m.InstagramAccountID == "" {
			return fmt.Errorf("%w: instagram_account_id is required", ErrInvalidMetadata)
		}
	case PlatformLinkedIn:
		if m.PersonURN == "" {
			return fmt.Errorf("%w: person_urn is required", ErrInvalidMetadata)
		}
	case PlatformTwitter, PlatformYoutube:
	default:
		return fmt.Errorf("%w: unknown platform %q", ErrInvalidMetadata, p)
	}
	return nil
}

func (m AccountMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *AccountMetadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = AccountMetadata{}
		return nil
	case []byte:
		if len(v) == 0 {
			*m = AccountMetadata{}
			return nil
		}
		return json.Unmarshal(v, m)
	case string:
		if v == "" {
			*m = AccountMetadata{}
			return nil
		}
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into AccountMetadata", src)
	}
}

// ConnectionStatus summarises one platform link for the account screen.
type ConnectionStatus struct {
	Platform    Platform   `json:"platform"`
	Connected   bool       `json:"connected"`
	AccountName string     `json:"account_name,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

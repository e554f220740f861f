package models

import (
	"fmt"
	"time"
)

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformYoutube   Platform = "youtube"
)

// Platforms lists every platform a post can target, in display order.
var Platforms = []Platform{PlatformInstagram, PlatformTwitter, PlatformLinkedIn, PlatformYoutube}

func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	switch p {
	case PlatformInstagram, PlatformTwitter, PlatformLinkedIn, PlatformYoutube:
		return p, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

type PostStatus string

const (
	PostStatusPending   PostStatus = "pending"
	PostStatusPosted    PostStatus = "posted"
	PostStatusFailed    PostStatus = "failed"
	PostStatusCancelled PostStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s PostStatus) Terminal() bool {
	return s != PostStatusPending
}

type Post struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	Platform       Platform   `db:"platform" json:"platform"`
	Content        string     `db:"content" json:"content"`
	MediaURL       string     `db:"media_url" json:"media_url,omitempty"`
	ScheduledTime  time.Time  `db:"scheduled_time" json:"scheduled_time"`
	Status         PostStatus `db:"status" json:"status"`
	JobHandle      string     `db:"job_handle" json:"-"`
	ExternalPostID string     `db:"external_post_id" json:"external_post_id,omitempty"`
	FailureReason  string     `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// CanCancel reports whether a user may still cancel the post. Cancellation is
// refused once the scheduled time is within window of now.
func (p *Post) CanCancel(now time.Time, window time.Duration) bool {
	return p.Status == PostStatusPending && p.ScheduledTime.After(now.Add(window))
}

package models

import "time"

const (
	AttemptOutcomePosted    = "posted"
	AttemptOutcomeRetryable = "retryable"
	AttemptOutcomeFailed    = "failed"
)

// PostingHistory records one dispatch attempt of a post.
type PostingHistory struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	PostID         int64     `db:"post_id" json:"post_id"`
	AccountID      int64     `db:"account_id" json:"account_id"`
	Attempt        int       `db:"attempt" json:"attempt"`
	Outcome        string    `db:"outcome" json:"outcome"`
	ExternalPostID string    `db:"external_post_id" json:"external_post_id,omitempty"`
	ErrorMessage   string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

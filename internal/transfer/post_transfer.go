package transfer

import (
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

type PostCreation struct {
	Platform      string    `json:"platform"`
	Content       string    `json:"content"`
	MediaURL      string    `json:"media_url"`
	ScheduledTime time.Time `json:"scheduled_time"`
}

// PostView is a post as returned to its owner.
type PostView struct {
	*models.Post
	CanCancel bool `json:"can_cancel"`
}

type CancelResult struct {
	Status       models.PostStatus `json:"status"`
	JobCancelled bool              `json:"job_cancelled"`
}

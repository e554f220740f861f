// Package queue defers post dispatch to a future instant. Scheduler is the
// port the post service depends on; AsynqScheduler backs it with redis and
// MemoryScheduler runs jobs in-process.
package queue

import (
	"context"
	"time"
)

const TaskTypeSchedulePost = "schedule:post"

// SchedulePostPayload identifies one dispatch attempt of a post. Attempt
// starts at 1.
type SchedulePostPayload struct {
	PostID  int64 `json:"post_id"`
	Attempt int   `json:"attempt"`
}

// Handler runs a dispatch job.
type Handler func(ctx context.Context, payload SchedulePostPayload) error

type Scheduler interface {
	// Enqueue registers a job to run at or after at. Instants in the past run
	// as soon as a worker is free. The returned handle identifies the job for
	// Cancel.
	Enqueue(ctx context.Context, payload SchedulePostPayload, at time.Time) (string, error)
	// Cancel revokes a job that has not started. It reports whether execution
	// was prevented; false means the job may already have run.
	Cancel(ctx context.Context, handle string) (bool, error)
}

// RetryPolicy bounds re-dispatch of transiently failed posts.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Minute}
}

// Next returns the delay before the attempt following attempt, or false when
// attempt was the last one allowed.
func (p RetryPolicy) Next(attempt int) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}
	return p.Delay, true
}

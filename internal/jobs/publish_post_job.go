package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/service"
)

// PublishPostJob runs dispatch jobs. It turns retryable outcomes into a new
// job for the next attempt and pins the post to failed whenever a job ends
// without a terminal state.
type PublishPostJob struct {
	posts     service.PostService
	scheduler queue.Scheduler
	policy    queue.RetryPolicy
	now       func() time.Time
}

func NewPublishPostJob(posts service.PostService, scheduler queue.Scheduler, policy queue.RetryPolicy) *PublishPostJob {
	return &PublishPostJob{
		posts:     posts,
		scheduler: scheduler,
		policy:    policy,
		now:       time.Now,
	}
}

// Handle has the queue.Handler signature. A returned error is seen once by
// the job runner; the post is already failed by then.
func (j *PublishPostJob) Handle(ctx context.Context, payload queue.SchedulePostPayload) (err error) {
	postID := payload.PostID
	attempt := payload.Attempt
	if attempt < 1 {
		attempt = 1
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("post %d: dispatch panicked: %v", postID, r)
			j.fail(postID, "internal error during dispatch")
		}
	}()

	outcome, err := j.posts.Dispatch(ctx, postID, attempt)
	if err != nil {
		j.fail(postID, "internal error: "+err.Error())
		return fmt.Errorf("post %d: dispatch: %w", postID, err)
	}

	if outcome.Kind != service.OutcomeRetryable {
		return nil
	}

	delay, ok := j.policy.Next(attempt)
	if !ok {
		reason := fmt.Sprintf("retries exhausted after %d attempts: %v", attempt, outcome.Err)
		j.fail(postID, reason)
		return fmt.Errorf("post %d: retries exhausted after %d attempts: %w", postID, attempt, outcome.Err)
	}

	next := queue.SchedulePostPayload{PostID: postID, Attempt: attempt + 1}
	handle, err := j.scheduler.Enqueue(ctx, next, j.now().Add(delay))
	if err != nil {
		j.fail(postID, "scheduling retry failed: "+err.Error())
		return fmt.Errorf("post %d: schedule retry: %w", postID, err)
	}
	if err := j.posts.AttachJob(ctx, postID, handle); err != nil {
		slog.Warn("storing retry job handle failed", "post_id", postID, "handle", handle, "error", err)
	}

	slog.Info("dispatch retry scheduled", "post_id", postID, "attempt", next.Attempt, "delay", delay)
	return nil
}

func (j *PublishPostJob) fail(postID int64, reason string) {
	// The dispatch context may be the reason we are here.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := j.posts.Fail(ctx, postID, reason); err != nil {
		slog.Error("pinning post to failed", "post_id", postID, "error", err)
	}
}

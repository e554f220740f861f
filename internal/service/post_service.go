package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/media"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/publisher"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/telemetry"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const (
	defaultCancelWindow    = 30 * time.Second
	defaultDispatchTimeout = time.Minute
	stateWriteTimeout      = 10 * time.Second

	reasonNoLinkedAccount = "no linked account"
)

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeRetryable
	OutcomePermanent
	// OutcomeSkipped means the post was already terminal when the job ran.
	OutcomeSkipped
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomePermanent:
		return "permanent"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome is the result of one dispatch attempt. Retryable outcomes leave the
// post pending; the caller decides whether to schedule another attempt.
type Outcome struct {
	Kind       OutcomeKind
	ExternalID string
	Err        error
}

// PostService owns the post lifecycle: pending -> posted | failed | cancelled.
// Every transition out of pending is a conditional write, so at most one
// of them wins for a given post.
type PostService interface {
	Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, error)
	Schedule(ctx context.Context, post *models.Post) (string, error)
	// Cancel moves a pending post to cancelled and revokes its job. It is
	// refused once the post is within the cancel window of its scheduled
	// time. The bool reports whether the job was revoked before it started.
	Cancel(ctx context.Context, userID, postID int64) (bool, error)
	Get(ctx context.Context, userID, postID int64) (*transfer.PostView, error)
	List(ctx context.Context, userID int64, status models.PostStatus) ([]*transfer.PostView, error)
	Attempts(ctx context.Context, userID, postID int64) ([]*models.PostingHistory, error)

	// Dispatch makes one publish attempt. The error is reserved for failures
	// outside the publish protocol, such as storage errors.
	Dispatch(ctx context.Context, postID int64, attempt int) (Outcome, error)
	Fail(ctx context.Context, postID int64, reason string) error
	AttachJob(ctx context.Context, postID int64, handle string) error
}

type PostOption func(*postService)

func WithCancelWindow(d time.Duration) PostOption {
	return func(s *postService) { s.cancelWindow = d }
}

func WithDispatchTimeout(d time.Duration) PostOption {
	return func(s *postService) { s.dispatchTimeout = d }
}

func WithPostClock(now func() time.Time) PostOption {
	return func(s *postService) { s.now = now }
}

type postService struct {
	pr        repository.PostRepository
	ph        repository.PostingHistoryRepository
	creds     CredentialService
	pubs      Publishers
	scheduler queue.Scheduler
	media     media.Resolver

	cancelWindow    time.Duration
	dispatchTimeout time.Duration
	now             func() time.Time
}

func NewPostService(
	pr repository.PostRepository,
	ph repository.PostingHistoryRepository,
	creds CredentialService,
	pubs Publishers,
	scheduler queue.Scheduler,
	resolver media.Resolver,
	opts ...PostOption) PostService {
	s := &postService{
		pr:              pr,
		ph:              ph,
		creds:           creds,
		pubs:            pubs,
		scheduler:       scheduler,
		media:           resolver,
		cancelWindow:    defaultCancelWindow,
		dispatchTimeout: defaultDispatchTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *postService) Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, error) {
	if pc == nil {
		return nil, fmt.Errorf("%w: post creation data is nil", ErrValidation)
	}
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user is not valid", ErrValidation)
	}
	platform, err := models.ParsePlatform(pc.Platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if strings.TrimSpace(pc.Content) == "" {
		return nil, fmt.Errorf("%w: content cannot be empty", ErrValidation)
	}
	if !pc.ScheduledTime.After(s.now()) {
		return nil, fmt.Errorf("%w: scheduled time must be in the future", ErrValidation)
	}
	// Resolving up front rejects bucket references when no bucket is set up.
	if _, err := s.media.Resolve(ctx, pc.MediaURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	post := &models.Post{
		UserID:        userID,
		Platform:      platform,
		Content:       pc.Content,
		MediaURL:      pc.MediaURL,
		ScheduledTime: pc.ScheduledTime.UTC(),
		Status:        models.PostStatusPending,
	}

	post.ID, err = s.pr.Create(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}

	if _, err := s.Schedule(ctx, post); err != nil {
		reason := "scheduling failed: " + err.Error()
		if _, ferr := s.pr.MarkFailed(ctx, post.ID, reason); ferr != nil {
			slog.Error("marking unscheduled post failed", "post_id", post.ID, "error", ferr)
		}
		return nil, fmt.Errorf("error scheduling post: %w", err)
	}

	telemetry.PostsScheduledTotal.WithLabelValues(string(platform)).Inc()
	return post, nil
}

func (s *postService) Schedule(ctx context.Context, post *models.Post) (string, error) {
	handle, err := s.scheduler.Enqueue(ctx, queue.SchedulePostPayload{PostID: post.ID, Attempt: 1}, post.ScheduledTime)
	if err != nil {
		slog.Error("enqueue failed", "post_id", post.ID, "error", err)
		return "", err
	}
	if err := s.pr.SetJobHandle(ctx, post.ID, handle); err != nil {
		return "", err
	}
	post.JobHandle = handle
	return handle, nil
}

func (s *postService) owned(ctx context.Context, userID, postID int64) (*models.Post, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.UserID != userID {
		return nil, fmt.Errorf("%w: post %d", ErrNotFound, postID)
	}
	return post, nil
}

func (s *postService) Cancel(ctx context.Context, userID, postID int64) (bool, error) {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return false, err
	}

	if post.Status.Terminal() {
		telemetry.CancellationsTotal.WithLabelValues("rejected").Inc()
		return false, fmt.Errorf("%w: post is already %s", ErrConflict, post.Status)
	}
	if !post.CanCancel(s.now(), s.cancelWindow) {
		telemetry.CancellationsTotal.WithLabelValues("rejected").Inc()
		return false, fmt.Errorf("%w: post is due within %s and can no longer be cancelled", ErrConflict, s.cancelWindow)
	}

	ok, err := s.pr.MarkCancelled(ctx, postID)
	if err != nil {
		return false, err
	}
	if !ok {
		telemetry.CancellationsTotal.WithLabelValues("rejected").Inc()
		return false, fmt.Errorf("%w: post is no longer pending", ErrConflict)
	}
	telemetry.CancellationsTotal.WithLabelValues("cancelled").Inc()

	if post.JobHandle == "" {
		return false, nil
	}
	revoked, err := s.scheduler.Cancel(ctx, post.JobHandle)
	if err != nil {
		// The post is already cancelled; a job that still fires is a no-op.
		slog.Warn("job cancel failed", "post_id", postID, "handle", post.JobHandle, "error", err)
		return false, nil
	}
	return revoked, nil
}

func (s *postService) view(post *models.Post) *transfer.PostView {
	return &transfer.PostView{Post: post, CanCancel: post.CanCancel(s.now(), s.cancelWindow)}
}

func (s *postService) Get(ctx context.Context, userID, postID int64) (*transfer.PostView, error) {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	return s.view(post), nil
}

func (s *postService) List(ctx context.Context, userID int64, status models.PostStatus) ([]*transfer.PostView, error) {
	switch status {
	case "", models.PostStatusPending, models.PostStatusPosted, models.PostStatusFailed, models.PostStatusCancelled:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	posts, err := s.pr.ListByUserID(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	views := make([]*transfer.PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, s.view(p))
	}
	return views, nil
}

func (s *postService) Attempts(ctx context.Context, userID, postID int64) ([]*models.PostingHistory, error) {
	if _, err := s.owned(ctx, userID, postID); err != nil {
		return nil, err
	}
	return s.ph.ListByPostID(ctx, postID)
}

func (s *postService) Fail(ctx context.Context, postID int64, reason string) error {
	ok, err := s.pr.MarkFailed(ctx, postID, reason)
	if err != nil {
		slog.Error("marking post failed", "post_id", postID, "error", err)
		return err
	}
	if ok {
		slog.Info("post failed", "post_id", postID, "reason", reason)
	}
	return nil
}

func (s *postService) AttachJob(ctx context.Context, postID int64, handle string) error {
	return s.pr.SetJobHandle(ctx, postID, handle)
}

func (s *postService) Dispatch(ctx context.Context, postID int64, attempt int) (Outcome, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return Outcome{}, err
	}
	if post == nil {
		slog.Warn("dispatch for missing post", "post_id", postID)
		return Outcome{Kind: OutcomeSkipped}, nil
	}
	if post.Status.Terminal() {
		s.observe(post, Outcome{Kind: OutcomeSkipped})
		return Outcome{Kind: OutcomeSkipped}, nil
	}

	acc, err := s.creds.GetActive(ctx, post.UserID, post.Platform)
	if errors.Is(err, ErrNotFound) {
		return s.fail(ctx, post, nil, attempt, errors.New(reasonNoLinkedAccount))
	}
	if err != nil {
		return Outcome{}, err
	}

	if err := s.creds.Touch(ctx, acc); err != nil {
		slog.Warn("credential touch failed", "credential_id", acc.ID, "error", err)
	}

	pub, err := s.pubs.For(post.Platform)
	if err != nil {
		return s.fail(ctx, post, acc, attempt, err)
	}

	externalID, err := s.publish(ctx, post, acc, pub)

	// The result must be stored even when the caller's context ended while
	// the platform call was in flight.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stateWriteTimeout)
	defer cancel()

	if err == nil {
		return s.posted(wctx, post, acc, attempt, externalID)
	}
	if publisher.IsRetryable(err) {
		slog.Warn("dispatch attempt failed", "post_id", post.ID, "platform", post.Platform,
			"user_id", post.UserID, "attempt", attempt, "error", err)
		s.record(wctx, post, acc, attempt, models.AttemptOutcomeRetryable, "", err)
		out := Outcome{Kind: OutcomeRetryable, Err: err}
		s.observe(post, out)
		return out, nil
	}
	return s.fail(wctx, post, acc, attempt, err)
}

// publish runs the outbound part of an attempt under the dispatch timeout.
// A call cut off by the timeout is reported as a network error.
func (s *postService) publish(ctx context.Context, post *models.Post, acc *models.SocialAccount, pub publisher.Publisher) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()

	s.creds.Refresh(ctx, acc)

	mediaURL, err := s.media.Resolve(ctx, post.MediaURL)
	if err != nil {
		return "", fmt.Errorf("media: %w", err)
	}

	start := time.Now()
	externalID, err := pub.Publish(ctx, acc, post.Content, mediaURL)
	telemetry.PublishDuration.WithLabelValues(string(post.Platform)).Observe(time.Since(start).Seconds())

	if err != nil && ctx.Err() != nil && !errors.As(err, new(*publisher.Error)) {
		err = &publisher.Error{Kind: publisher.KindNetwork, Platform: post.Platform, Message: "publish timed out", Err: err}
	}
	return externalID, err
}

func (s *postService) posted(ctx context.Context, post *models.Post, acc *models.SocialAccount, attempt int, externalID string) (Outcome, error) {
	s.record(ctx, post, acc, attempt, models.AttemptOutcomePosted, externalID, nil)

	ok, err := s.pr.MarkPosted(ctx, post.ID, externalID)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		slog.Warn("post published after leaving pending; status kept", "post_id", post.ID,
			"platform", post.Platform, "user_id", post.UserID, "external_post_id", externalID)
	} else {
		slog.Info("post published", "post_id", post.ID, "platform", post.Platform,
			"user_id", post.UserID, "attempt", attempt, "external_post_id", externalID)
	}

	out := Outcome{Kind: OutcomeSuccess, ExternalID: externalID}
	s.observe(post, out)
	return out, nil
}

func (s *postService) fail(ctx context.Context, post *models.Post, acc *models.SocialAccount, attempt int, cause error) (Outcome, error) {
	s.record(ctx, post, acc, attempt, models.AttemptOutcomeFailed, "", cause)

	ok, err := s.pr.MarkFailed(ctx, post.ID, cause.Error())
	if err != nil {
		return Outcome{}, err
	}
	if ok {
		slog.Info("post failed", "post_id", post.ID, "platform", post.Platform,
			"user_id", post.UserID, "attempt", attempt, "reason", cause.Error())
	}

	out := Outcome{Kind: OutcomePermanent, Err: cause}
	s.observe(post, out)
	return out, nil
}

func (s *postService) record(ctx context.Context, post *models.Post, acc *models.SocialAccount, attempt int, outcome, externalID string, cause error) {
	ph := &models.PostingHistory{
		UserID:         post.UserID,
		PostID:         post.ID,
		Attempt:        attempt,
		Outcome:        outcome,
		ExternalPostID: externalID,
	}
	if acc != nil {
		ph.AccountID = acc.ID
	}
	if cause != nil {
		ph.ErrorMessage = cause.Error()
	}
	if _, err := s.ph.Create(ctx, ph); err != nil {
		slog.Error("error saving posting history", "post_id", post.ID, "error", err)
	}
}

func (s *postService) observe(post *models.Post, out Outcome) {
	telemetry.DispatchOutcomesTotal.WithLabelValues(string(post.Platform), out.Kind.String()).Inc()
}

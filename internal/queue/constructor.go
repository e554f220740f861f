package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const DefaultQueue = "default"

// AsynqScheduler stores dispatch jobs in redis through asynq. The job handle
// is the asynq task id. Retries are driven by the publish job, so tasks are
// enqueued with MaxRetry(0).
type AsynqScheduler struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	now       func() time.Time
}

func NewAsynqScheduler(client *asynq.Client, inspector *asynq.Inspector) *AsynqScheduler {
	return &AsynqScheduler{
		client:    client,
		inspector: inspector,
		queue:     DefaultQueue,
		now:       time.Now,
	}
}

func (s *AsynqScheduler) Enqueue(ctx context.Context, payload SchedulePostPayload, at time.Time) (string, error) {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}

	opts := []asynq.Option{
		asynq.TaskID(id),
		asynq.Queue(s.queue),
		asynq.MaxRetry(0),
	}
	if at.After(s.now()) {
		opts = append(opts, asynq.ProcessAt(at))
	}

	task := asynq.NewTask(TaskTypeSchedulePost, taskPayload)
	info, err := s.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	slog.Info("task scheduled", "task_id", info.ID, "post_id", payload.PostID,
		"attempt", payload.Attempt, "process_at", at)
	return info.ID, nil
}

func (s *AsynqScheduler) Cancel(ctx context.Context, handle string) (bool, error) {
	info, err := s.inspector.GetTaskInfo(s.queue, handle)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return false, nil
	}
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	switch info.State {
	case asynq.TaskStateScheduled, asynq.TaskStatePending, asynq.TaskStateRetry:
	default:
		return false, nil
	}

	err = s.inspector.DeleteTask(s.queue, handle)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return false, nil
	}
	if err != nil {
		// The task became active between the lookup and the delete.
		slog.Info(err.Error())
		return false, nil
	}
	return true, nil
}

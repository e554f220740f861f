package queue

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeMux_DecodesPayload(t *testing.T) {
	var got SchedulePostPayload
	mux := NewServeMux(func(_ context.Context, p SchedulePostPayload) error {
		got = p
		return nil
	})

	task := asynq.NewTask(TaskTypeSchedulePost, []byte(`{"post_id":9,"attempt":2}`))
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	assert.Equal(t, SchedulePostPayload{PostID: 9, Attempt: 2}, got)
}

func TestServeMux_BadPayloadSkipsRetry(t *testing.T) {
	mux := NewServeMux(func(context.Context, SchedulePostPayload) error {
		t.Fatal("handler must not run")
		return nil
	})

	err := mux.ProcessTask(context.Background(), asynq.NewTask(TaskTypeSchedulePost, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

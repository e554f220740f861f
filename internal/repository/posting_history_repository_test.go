package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostingHistoryRepo(t *testing.T) (PostingHistoryRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostingHistoryRepository(db), mock
}

func TestPostingHistoryCreate(t *testing.T) {
	repo, mock := newPostingHistoryRepo(t)
	mock.ExpectQuery("INSERT INTO posting_history").
		WithArgs(int64(7), int64(11), int64(0), 2, models.AttemptOutcomeRetryable, "", "twitter network error").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	id, err := repo.Create(context.Background(), &models.PostingHistory{
		UserID:       7,
		PostID:       11,
		Attempt:      2,
		Outcome:      models.AttemptOutcomeRetryable,
		ErrorMessage: "twitter network error",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostingHistoryListByPostID(t *testing.T) {
	repo, mock := newPostingHistoryRepo(t)
	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM posting_history WHERE post_id = \\$1 ORDER BY attempt, id").
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "post_id", "account_id", "attempt", "outcome", "external_post_id", "error_message", "created_at",
		}).
			AddRow(int64(1), int64(7), int64(11), int64(3), int64(1), "retryable", "", "timeout", now).
			AddRow(int64(2), int64(7), int64(11), int64(3), int64(2), "posted", "123", "", now))

	phs, err := repo.ListByPostID(context.Background(), 11)
	require.NoError(t, err)
	require.Len(t, phs, 2)
	assert.Equal(t, 2, phs[1].Attempt)
	assert.Equal(t, "123", phs[1].ExternalPostID)
	assert.Equal(t, "timeout", phs[0].ErrorMessage)
}

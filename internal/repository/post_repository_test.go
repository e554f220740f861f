package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var postCols = []string{
	"id", "user_id", "platform", "content", "media_url", "scheduled_time", "status",
	"job_handle", "external_post_id", "failure_reason", "created_at", "updated_at",
}

func samplePostRow(id int64, status models.PostStatus) []driver.Value {
	now := time.Now()
	return []driver.Value{id, int64(7), "twitter", "hello", "", now.Add(time.Hour), string(status),
		"job-1", "", "", now, now}
}

func newPostRepo(t *testing.T) (PostRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostRepository(db), mock
}

func TestPostCreate(t *testing.T) {
	repo, mock := newPostRepo(t)
	at := time.Now().Add(time.Hour)
	mock.ExpectQuery("INSERT INTO posts").
		WithArgs(int64(7), models.PlatformTwitter, "hello", "", at, models.PostStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	id, err := repo.Create(context.Background(), &models.Post{
		UserID: 7, Platform: models.PlatformTwitter, Content: "hello", ScheduledTime: at,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostCreate_DBError(t *testing.T) {
	repo, mock := newPostRepo(t)
	mock.ExpectQuery("INSERT INTO posts").WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.Post{UserID: 7, Platform: models.PlatformTwitter})
	assert.Error(t, err)
}

func TestPostGetByID(t *testing.T) {
	repo, mock := newPostRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM posts WHERE id").
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(postCols).AddRow(samplePostRow(11, models.PostStatusPending)...))

	post, err := repo.GetByID(context.Background(), 11)
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, int64(11), post.ID)
	assert.Equal(t, models.PlatformTwitter, post.Platform)
	assert.Equal(t, models.PostStatusPending, post.Status)
	assert.Equal(t, "job-1", post.JobHandle)
}

func TestPostGetByID_NotFound(t *testing.T) {
	repo, mock := newPostRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM posts WHERE id").WillReturnError(sql.ErrNoRows)

	post, err := repo.GetByID(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, post)
}

func TestPostListByUserID(t *testing.T) {
	repo, mock := newPostRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM posts WHERE user_id = \\$1 AND status = \\$2 ORDER BY scheduled_time DESC").
		WithArgs(int64(7), models.PostStatusPosted).
		WillReturnRows(sqlmock.NewRows(postCols).
			AddRow(samplePostRow(1, models.PostStatusPosted)...).
			AddRow(samplePostRow(2, models.PostStatusPosted)...))

	posts, err := repo.ListByUserID(context.Background(), 7, models.PostStatusPosted)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostListByUserID_AllStatuses(t *testing.T) {
	repo, mock := newPostRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM posts WHERE user_id = \\$1 ORDER BY scheduled_time DESC").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(postCols))

	posts, err := repo.ListByUserID(context.Background(), 7, "")
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostMarkPosted(t *testing.T) {
	repo, mock := newPostRepo(t)
	mock.ExpectExec("UPDATE posts").
		WithArgs(models.PostStatusPosted, "123", sqlmock.AnyArg(), int64(11), models.PostStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkPosted(context.Background(), 11, "123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostTransitions_NotPending(t *testing.T) {
	repo, mock := newPostRepo(t)
	mock.ExpectExec("UPDATE posts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE posts").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkFailed(context.Background(), 11, "boom")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkCancelled(context.Background(), 11)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostMarkCancelled_DBError(t *testing.T) {
	repo, mock := newPostRepo(t)
	mock.ExpectExec("UPDATE posts").WillReturnError(errors.New("db down"))

	ok, err := repo.MarkCancelled(context.Background(), 11)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestPostSetJobHandle(t *testing.T) {
	repo, mock := newPostRepo(t)
	mock.ExpectExec("UPDATE posts SET job_handle").
		WithArgs("job-9", sqlmock.AnyArg(), int64(11), models.PostStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetJobHandle(context.Background(), 11, "job-9"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

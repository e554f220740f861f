package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

// PostRepository persists posts. The Mark* methods only move a post out of
// pending and report false when the post was no longer pending.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ListByUserID(ctx context.Context, userID int64, status models.PostStatus) ([]*models.Post, error)
	SetJobHandle(ctx context.Context, postID int64, handle string) error
	MarkPosted(ctx context.Context, postID int64, externalID string) (bool, error)
	MarkFailed(ctx context.Context, postID int64, reason string) (bool, error)
	MarkCancelled(ctx context.Context, postID int64) (bool, error)
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, platform, content, COALESCE(media_url, ''), scheduled_time, status,
	COALESCE(job_handle, ''), COALESCE(external_post_id, ''), COALESCE(failure_reason, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.UserID, &post.Platform, &post.Content, &post.MediaURL,
		&post.ScheduledTime, &post.Status, &post.JobHandle, &post.ExternalPostID,
		&post.FailureReason, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, platform, content, media_url, scheduled_time, status)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, post.UserID, post.Platform, post.Content, post.MediaURL,
		post.ScheduledTime, models.PostStatusPending).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *postRepository) ListByUserID(ctx context.Context, userID int64, status models.PostStatus) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1`
	args := []interface{}{userID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY scheduled_time DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) SetJobHandle(ctx context.Context, postID int64, handle string) error {
	query := `UPDATE posts SET job_handle = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	_, err := r.db.ExecContext(ctx, query, handle, time.Now(), postID, models.PostStatusPending)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) MarkPosted(ctx context.Context, postID int64, externalID string) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			external_post_id = $2,
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return r.transition(ctx, query, models.PostStatusPosted, externalID, time.Now(), postID, models.PostStatusPending)
}

func (r *postRepository) MarkFailed(ctx context.Context, postID int64, reason string) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			failure_reason = $2,
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return r.transition(ctx, query, models.PostStatusFailed, reason, time.Now(), postID, models.PostStatusPending)
}

func (r *postRepository) MarkCancelled(ctx context.Context, postID int64) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status = $4
	`
	return r.transition(ctx, query, models.PostStatusCancelled, time.Now(), postID, models.PostStatusPending)
}

func (r *postRepository) transition(ctx context.Context, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

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

var socialAccountCols = []string{
	"id", "user_id", "platform", "account_id", "account_name", "access_token",
	"refresh_token", "token_expires_at", "metadata", "is_active", "connected_at", "last_used_at",
	"created_at", "updated_at",
}

func sampleSocialAccountRow(id int64, expiresAt interface{}) []driver.Value {
	now := time.Now()
	return []driver.Value{id, int64(7), "linkedin", "abc", "Ada", "enc-access", "enc-refresh",
		expiresAt, []byte(`{"person_urn":"urn:li:person:abc"}`), true, now, nil, now, now}
}

func newSocialAccountRepo(t *testing.T) (SocialAccountRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSocialAccountRepository(db), mock
}

func TestSocialAccountUpsert(t *testing.T) {
	repo, mock := newSocialAccountRepo(t)
	mock.ExpectQuery("INSERT INTO social_accounts (.+) ON CONFLICT \\(user_id, platform\\) DO UPDATE").
		WithArgs(int64(7), models.PlatformLinkedIn, "abc", "Ada", "enc-access", "", nil,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	id, err := repo.Upsert(context.Background(), &models.SocialAccount{
		UserID:      7,
		Platform:    models.PlatformLinkedIn,
		AccountID:   "abc",
		AccountName: "Ada",
		AccessToken: "enc-access",
		Metadata:    models.AccountMetadata{PersonURN: "urn:li:person:abc"},
		ConnectedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSocialAccountGetActive(t *testing.T) {
	repo, mock := newSocialAccountRepo(t)
	expires := time.Now().Add(time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM social_accounts WHERE user_id = \\$1 AND platform = \\$2 AND is_active = TRUE").
		WithArgs(int64(7), models.PlatformLinkedIn).
		WillReturnRows(sqlmock.NewRows(socialAccountCols).AddRow(sampleSocialAccountRow(3, expires)...))

	sa, err := repo.GetActive(context.Background(), 7, models.PlatformLinkedIn)
	require.NoError(t, err)
	require.NotNil(t, sa)
	assert.Equal(t, "urn:li:person:abc", sa.Metadata.PersonURN)
	require.NotNil(t, sa.TokenExpiresAt)
	assert.True(t, sa.TokenExpiresAt.Equal(expires))
	assert.Nil(t, sa.LastUsedAt)
	assert.True(t, sa.IsActive)
}

func TestSocialAccountGetActive_NotFound(t *testing.T) {
	repo, mock := newSocialAccountRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM social_accounts").WillReturnError(sql.ErrNoRows)

	sa, err := repo.GetActive(context.Background(), 7, models.PlatformTwitter)
	require.NoError(t, err)
	assert.Nil(t, sa)
}

func TestSocialAccountGetByID_DBError(t *testing.T) {
	repo, mock := newSocialAccountRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM social_accounts WHERE id").WillReturnError(errors.New("db down"))

	_, err := repo.GetByID(context.Background(), 3)
	assert.Error(t, err)
}

func TestSocialAccountListByTimeInterval(t *testing.T) {
	repo, mock := newSocialAccountRepo(t)
	from := time.Now()
	to := from.Add(30 * time.Minute)
	mock.ExpectQuery("SELECT (.+) FROM social_accounts WHERE is_active = TRUE AND refresh_token IS NOT NULL").
		WithArgs(from, to, from).
		WillReturnRows(sqlmock.NewRows(socialAccountCols).
			AddRow(sampleSocialAccountRow(3, from.Add(10*time.Minute))...).
			AddRow(sampleSocialAccountRow(4, nil)...))

	accounts, err := repo.ListByTimeInterval(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Nil(t, accounts[1].TokenExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSocialAccountSetToken(t *testing.T) {
	repo, mock := newSocialAccountRepo(t)
	mock.ExpectExec("UPDATE social_accounts").
		WithArgs(int64(3), "old", "new", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE social_accounts").
		WithArgs(int64(3), "old", "newer", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	expires := time.Now().Add(time.Hour)
	ok, err := repo.SetToken(context.Background(), 3, "old", &models.SocialAccount{AccessToken: "new", TokenExpiresAt: &expires})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetToken(context.Background(), 3, "old", &models.SocialAccount{AccessToken: "newer"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSocialAccountDeactivate(t *testing.T) {
	repo, mock := newSocialAccountRepo(t)
	mock.ExpectExec("UPDATE social_accounts SET is_active = FALSE").
		WithArgs(int64(7), models.PlatformTwitter).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Deactivate(context.Background(), 7, models.PlatformTwitter))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSocialAccountTouchLastUsed(t *testing.T) {
	repo, mock := newSocialAccountRepo(t)
	at := time.Now()
	mock.ExpectExec("UPDATE social_accounts SET last_used_at").
		WithArgs(at, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.TouchLastUsed(context.Background(), 3, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/lock"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/publisher"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/telemetry"
	"github.com/maheshrc27/postflow/pkg/utils"
)

const (
	defaultRefreshSkew = 5 * time.Minute
	refreshLockTTL     = time.Minute
	refreshConcurrency = 10
)

// Publishers resolves the publisher for a platform. *publisher.Set
// implements it.
type Publishers interface {
	For(p models.Platform) (publisher.Publisher, error)
}

// CredentialService is the credential store. Tokens are encrypted in the
// repository and every credential it returns carries decrypted tokens.
type CredentialService interface {
	GetActive(ctx context.Context, userID int64, platform models.Platform) (*models.SocialAccount, error)
	Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error)
	Deactivate(ctx context.Context, userID int64, platform models.Platform) error
	// Refresh exchanges acc's refresh token when its access token is about to
	// expire. On success acc is updated in place. Failures are logged and
	// reported as false; the stored record is left untouched.
	Refresh(ctx context.Context, acc *models.SocialAccount) bool
	Touch(ctx context.Context, acc *models.SocialAccount) error
	ConnectionStatus(ctx context.Context, userID int64) ([]models.ConnectionStatus, error)
	// RefreshExpiring refreshes every active credential expiring within d and
	// returns how many were refreshed.
	RefreshExpiring(ctx context.Context, d time.Duration) (int, error)
}

type CredentialOption func(*credentialService)

func WithRefreshSkew(d time.Duration) CredentialOption {
	return func(s *credentialService) { s.skew = d }
}

func WithCredentialClock(now func() time.Time) CredentialOption {
	return func(s *credentialService) { s.now = now }
}

type credentialService struct {
	sa     repository.SocialAccountRepository
	cipher *utils.TokenCipher
	pubs   Publishers
	locker lock.Locker
	skew   time.Duration
	now    func() time.Time
}

func NewCredentialService(
	sa repository.SocialAccountRepository,
	cipher *utils.TokenCipher,
	pubs Publishers,
	locker lock.Locker,
	opts ...CredentialOption) CredentialService {
	s := &credentialService{
		sa:     sa,
		cipher: cipher,
		pubs:   pubs,
		locker: locker,
		skew:   defaultRefreshSkew,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *credentialService) GetActive(ctx context.Context, userID int64, platform models.Platform) (*models.SocialAccount, error) {
	stored, err := s.sa.GetActive(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: no linked %s account", ErrNotFound, platform)
	}
	return s.decrypt(stored)
}

func (s *credentialService) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	if sa.UserID <= 0 {
		return 0, fmt.Errorf("%w: user is required", ErrValidation)
	}
	if _, err := models.ParsePlatform(string(sa.Platform)); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if sa.AccessToken == "" {
		return 0, fmt.Errorf("%w: access token is required", ErrValidation)
	}
	if err := sa.Metadata.Validate(sa.Platform); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	stored := *sa
	var err error
	if stored.AccessToken, err = s.cipher.Encrypt(sa.AccessToken); err != nil {
		return 0, err
	}
	if stored.RefreshToken, err = s.cipher.Encrypt(sa.RefreshToken); err != nil {
		return 0, err
	}
	if stored.ConnectedAt.IsZero() {
		stored.ConnectedAt = s.now()
	}

	id, err := s.sa.Upsert(ctx, &stored)
	if err != nil {
		return 0, err
	}

	slog.Info("credential linked", "user_id", sa.UserID, "platform", sa.Platform, "account_id", sa.AccountID)
	return id, nil
}

func (s *credentialService) Deactivate(ctx context.Context, userID int64, platform models.Platform) error {
	if _, err := models.ParsePlatform(string(platform)); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.sa.Deactivate(ctx, userID, platform)
}

func (s *credentialService) Touch(ctx context.Context, acc *models.SocialAccount) error {
	now := s.now()
	if err := s.sa.TouchLastUsed(ctx, acc.ID, now); err != nil {
		return err
	}
	acc.LastUsedAt = &now
	return nil
}

func (s *credentialService) Refresh(ctx context.Context, acc *models.SocialAccount) bool {
	return s.refresh(ctx, acc, s.skew)
}

func (s *credentialService) refresh(ctx context.Context, acc *models.SocialAccount, within time.Duration) bool {
	if acc.RefreshToken == "" || !acc.ExpiresWithin(s.now(), within) {
		return false
	}

	pub, err := s.pubs.For(acc.Platform)
	if err != nil {
		return false
	}

	release, err := s.locker.Acquire(ctx, lock.CredentialRefreshKey(acc.ID), refreshLockTTL)
	if err != nil {
		slog.Warn("credential refresh lock failed", "credential_id", acc.ID, "error", err)
		telemetry.TokenRefreshTotal.WithLabelValues(string(acc.Platform), "error").Inc()
		return false
	}
	defer release()

	// Another holder may have refreshed while we waited for the lock.
	stored, err := s.sa.GetByID(ctx, acc.ID)
	if err != nil || stored == nil {
		return false
	}
	current, err := s.decrypt(stored)
	if err != nil {
		return false
	}
	if current.AccessToken != acc.AccessToken {
		adoptTokens(acc, current)
		telemetry.TokenRefreshTotal.WithLabelValues(string(acc.Platform), "skipped").Inc()
		return true
	}

	token, err := pub.Refresh(ctx, current)
	if errors.Is(err, publisher.ErrRefreshUnsupported) {
		telemetry.TokenRefreshTotal.WithLabelValues(string(acc.Platform), "unsupported").Inc()
		return false
	}
	if err != nil {
		slog.Warn("credential refresh failed", "credential_id", acc.ID, "platform", acc.Platform, "error", err)
		telemetry.TokenRefreshTotal.WithLabelValues(string(acc.Platform), "error").Inc()
		return false
	}

	refreshed := *current
	refreshed.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		refreshed.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		refreshed.TokenExpiresAt = &expiry
	}

	update := models.SocialAccount{TokenExpiresAt: refreshed.TokenExpiresAt}
	if update.AccessToken, err = s.cipher.Encrypt(refreshed.AccessToken); err != nil {
		return false
	}
	if update.RefreshToken, err = s.cipher.Encrypt(refreshed.RefreshToken); err != nil {
		return false
	}

	ok, err := s.sa.SetToken(ctx, acc.ID, stored.AccessToken, &update)
	if err != nil || !ok {
		slog.Warn("credential refresh not persisted", "credential_id", acc.ID, "error", err)
		telemetry.TokenRefreshTotal.WithLabelValues(string(acc.Platform), "error").Inc()
		return false
	}

	adoptTokens(acc, &refreshed)
	telemetry.TokenRefreshTotal.WithLabelValues(string(acc.Platform), "refreshed").Inc()
	slog.Info("credential refreshed", "credential_id", acc.ID, "platform", acc.Platform)
	return true
}

func adoptTokens(dst, src *models.SocialAccount) {
	dst.AccessToken = src.AccessToken
	dst.RefreshToken = src.RefreshToken
	dst.TokenExpiresAt = src.TokenExpiresAt
}

func (s *credentialService) ConnectionStatus(ctx context.Context, userID int64) ([]models.ConnectionStatus, error) {
	accounts, err := s.sa.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	byPlatform := make(map[models.Platform]*models.SocialAccount, len(accounts))
	for _, acc := range accounts {
		byPlatform[acc.Platform] = acc
	}

	statuses := make([]models.ConnectionStatus, 0, len(models.Platforms))
	for _, p := range models.Platforms {
		status := models.ConnectionStatus{Platform: p}
		if acc, ok := byPlatform[p]; ok {
			status.Connected = acc.IsConnected()
			status.AccountName = acc.AccountName
			status.ExpiresAt = acc.TokenExpiresAt
			status.LastUsedAt = acc.LastUsedAt
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (s *credentialService) RefreshExpiring(ctx context.Context, d time.Duration) (int, error) {
	now := s.now()
	accounts, err := s.sa.ListByTimeInterval(ctx, now, now.Add(d))
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		refreshed int
	)
	semaphore := make(chan struct{}, refreshConcurrency)

	for _, stored := range accounts {
		acc, err := s.decrypt(stored)
		if err != nil {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}
		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if s.refresh(ctx, acc, d) {
				mu.Lock()
				refreshed++
				mu.Unlock()
			}
		}(acc)
	}
	wg.Wait()

	return refreshed, nil
}

func (s *credentialService) decrypt(stored *models.SocialAccount) (*models.SocialAccount, error) {
	acc := *stored
	var err error
	if acc.AccessToken, err = s.cipher.Decrypt(stored.AccessToken); err != nil {
		slog.Error("credential decrypt failed", "credential_id", stored.ID, "error", err)
		return nil, fmt.Errorf("decrypt credential %d: %w", stored.ID, err)
	}
	if acc.RefreshToken, err = s.cipher.Decrypt(stored.RefreshToken); err != nil {
		slog.Error("credential decrypt failed", "credential_id", stored.ID, "error", err)
		return nil, fmt.Errorf("decrypt credential %d: %w", stored.ID, err)
	}
	return &acc, nil
}

package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

// MemoryStore is an in-process implementation of the post, social account and
// posting history repositories. It backs tests and local runs without
// postgres.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	posts    map[int64]*models.Post
	accounts map[int64]*models.SocialAccount
	history  []*models.PostingHistory
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:    make(map[int64]*models.Post),
		accounts: make(map[int64]*models.SocialAccount),
	}
}

func (m *MemoryStore) Posts() PostRepository                     { return memoryPosts{m} }
func (m *MemoryStore) SocialAccounts() SocialAccountRepository   { return memoryAccounts{m} }
func (m *MemoryStore) PostingHistory() PostingHistoryRepository { return memoryHistory{m} }

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

type memoryPosts struct{ m *MemoryStore }

func (r memoryPosts) Create(ctx context.Context, post *models.Post) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	p := *post
	p.ID = r.m.id()
	p.Status = models.PostStatusPending
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.m.posts[p.ID] = &p
	return p.ID, nil
}

func (r memoryPosts) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	p, ok := r.m.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r memoryPosts) ListByUserID(ctx context.Context, userID int64, status models.PostStatus) ([]*models.Post, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var posts []*models.Post
	for _, p := range r.m.posts {
		if p.UserID != userID || (status != "" && p.Status != status) {
			continue
		}
		cp := *p
		posts = append(posts, &cp)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ScheduledTime.After(posts[j].ScheduledTime) })
	return posts, nil
}

func (r memoryPosts) SetJobHandle(ctx context.Context, postID int64, handle string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if p, ok := r.m.posts[postID]; ok && p.Status == models.PostStatusPending {
		p.JobHandle = handle
		p.UpdatedAt = time.Now()
	}
	return nil
}

func (r memoryPosts) MarkPosted(ctx context.Context, postID int64, externalID string) (bool, error) {
	return r.transition(postID, func(p *models.Post) {
		p.Status = models.PostStatusPosted
		p.ExternalPostID = externalID
	})
}

func (r memoryPosts) MarkFailed(ctx context.Context, postID int64, reason string) (bool, error) {
	return r.transition(postID, func(p *models.Post) {
		p.Status = models.PostStatusFailed
		p.FailureReason = reason
	})
}

func (r memoryPosts) MarkCancelled(ctx context.Context, postID int64) (bool, error) {
	return r.transition(postID, func(p *models.Post) {
		p.Status = models.PostStatusCancelled
	})
}

func (r memoryPosts) transition(postID int64, apply func(p *models.Post)) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	p, ok := r.m.posts[postID]
	if !ok || p.Status != models.PostStatusPending {
		return false, nil
	}
	apply(p)
	p.UpdatedAt = time.Now()
	return true, nil
}

type memoryAccounts struct{ m *MemoryStore }

func (r memoryAccounts) find(userID int64, platform models.Platform) *models.SocialAccount {
	for _, sa := range r.m.accounts {
		if sa.UserID == userID && sa.Platform == platform {
			return sa
		}
	}
	return nil
}

func (r memoryAccounts) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	now := time.Now()
	stored := *sa
	stored.IsActive = true
	stored.UpdatedAt = now
	if existing := r.find(sa.UserID, sa.Platform); existing != nil {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
		stored.LastUsedAt = existing.LastUsedAt
	} else {
		stored.ID = r.m.id()
		stored.CreatedAt = now
	}
	r.m.accounts[stored.ID] = &stored
	return stored.ID, nil
}

func (r memoryAccounts) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	sa, ok := r.m.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *sa
	return &cp, nil
}

func (r memoryAccounts) GetActive(ctx context.Context, userID int64, platform models.Platform) (*models.SocialAccount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	sa := r.find(userID, platform)
	if sa == nil || !sa.IsActive {
		return nil, nil
	}
	cp := *sa
	return &cp, nil
}

func (r memoryAccounts) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var accounts []*models.SocialAccount
	for _, sa := range r.m.accounts {
		if sa.UserID == userID {
			cp := *sa
			accounts = append(accounts, &cp)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (r memoryAccounts) ListByTimeInterval(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var accounts []*models.SocialAccount
	for _, sa := range r.m.accounts {
		if !sa.IsActive || sa.RefreshToken == "" || sa.TokenExpiresAt == nil {
			continue
		}
		if sa.TokenExpiresAt.After(finalTime) {
			continue
		}
		cp := *sa
		accounts = append(accounts, &cp)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (r memoryAccounts) SetToken(ctx context.Context, id int64, oldAccessToken string, sa *models.SocialAccount) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	stored, ok := r.m.accounts[id]
	if !ok || stored.AccessToken != oldAccessToken {
		return false, nil
	}
	if sa.AccessToken != "" {
		stored.AccessToken = sa.AccessToken
	}
	if sa.RefreshToken != "" {
		stored.RefreshToken = sa.RefreshToken
	}
	if sa.TokenExpiresAt != nil {
		t := *sa.TokenExpiresAt
		stored.TokenExpiresAt = &t
	}
	stored.UpdatedAt = time.Now()
	return true, nil
}

func (r memoryAccounts) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if sa, ok := r.m.accounts[id]; ok {
		sa.LastUsedAt = &at
	}
	return nil
}

func (r memoryAccounts) Deactivate(ctx context.Context, userID int64, platform models.Platform) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if sa := r.find(userID, platform); sa != nil {
		sa.IsActive = false
		sa.UpdatedAt = time.Now()
	}
	return nil
}

type memoryHistory struct{ m *MemoryStore }

func (r memoryHistory) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	cp := *ph
	cp.ID = r.m.id()
	cp.CreatedAt = time.Now()
	r.m.history = append(r.m.history, &cp)
	return cp.ID, nil
}

func (r memoryHistory) ListByPostID(ctx context.Context, postID int64) ([]*models.PostingHistory, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var phs []*models.PostingHistory
	for _, ph := range r.m.history {
		if ph.PostID == postID {
			cp := *ph
			phs = append(phs, &cp)
		}
	}
	return phs, nil
}

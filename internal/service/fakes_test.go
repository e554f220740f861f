package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/postflow/internal/lock"
	"github.com/maheshrc27/postflow/internal/media"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/publisher"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/maheshrc27/postflow/pkg/utils"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakePublisher struct {
	platform models.Platform

	mu           sync.Mutex
	externalID   string
	publishErrs  []error
	onPublish    func()
	publishCalls int
	lastToken    string
	lastMedia    string

	refreshToken *oauth2.Token
	refreshErr   error
	refreshDelay time.Duration
	refreshCalls int
}

func (f *fakePublisher) Platform() models.Platform { return f.platform }

func (f *fakePublisher) Publish(ctx context.Context, acc *models.SocialAccount, content, mediaURL string) (string, error) {
	f.mu.Lock()
	f.publishCalls++
	f.lastToken = acc.AccessToken
	f.lastMedia = mediaURL
	var err error
	if len(f.publishErrs) > 0 {
		err, f.publishErrs = f.publishErrs[0], f.publishErrs[1:]
	}
	hook := f.onPublish
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return "", err
	}
	return f.externalID, nil
}

func (f *fakePublisher) Refresh(ctx context.Context, acc *models.SocialAccount) (*oauth2.Token, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.mu.Unlock()

	if f.refreshDelay > 0 {
		time.Sleep(f.refreshDelay)
	}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	if f.refreshToken == nil {
		return nil, publisher.ErrRefreshUnsupported
	}
	return f.refreshToken, nil
}

func (f *fakePublisher) calls() (publish, refresh int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.publishCalls, f.refreshCalls
}

type fakePublishers map[models.Platform]publisher.Publisher

func (f fakePublishers) For(p models.Platform) (publisher.Publisher, error) {
	pub, ok := f[p]
	if !ok {
		return nil, &publisher.Error{Kind: publisher.KindUnsupported, Platform: p, Message: "platform is not supported"}
	}
	return pub, nil
}

type enqueued struct {
	payload queue.SchedulePostPayload
	at      time.Time
	handle  string
}

type fakeScheduler struct {
	mu         sync.Mutex
	jobs       []enqueued
	cancelled  []string
	enqueueErr error
	cancelOK   bool
	cancelErr  error
}

func (s *fakeScheduler) Enqueue(ctx context.Context, payload queue.SchedulePostPayload, at time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueueErr != nil {
		return "", s.enqueueErr
	}
	handle := "job-" + strconv.Itoa(len(s.jobs)+1)
	s.jobs = append(s.jobs, enqueued{payload: payload, at: at, handle: handle})
	return handle, nil
}

func (s *fakeScheduler) Cancel(ctx context.Context, handle string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, handle)
	return s.cancelOK, s.cancelErr
}

var errNetwork = &publisher.Error{Kind: publisher.KindNetwork, Platform: models.PlatformTwitter, Message: "request failed",
	Err: errors.New("connection reset")}

type testEnv struct {
	now     time.Time
	store   *repository.MemoryStore
	cipher  *utils.TokenCipher
	twitter *fakePublisher
	pubs    fakePublishers
	sched   *fakeScheduler
	creds   CredentialService
	posts   PostService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cipher, err := utils.NewTokenCipher("test-secret")
	require.NoError(t, err)

	live := publisher.NewSet(publisher.Config{})
	e := &testEnv{
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		store:   repository.NewMemoryStore(),
		cipher:  cipher,
		twitter: &fakePublisher{platform: models.PlatformTwitter, externalID: "123"},
		sched:   &fakeScheduler{cancelOK: true},
	}
	e.pubs = fakePublishers{
		models.PlatformTwitter:   e.twitter,
		models.PlatformLinkedIn:  &fakePublisher{platform: models.PlatformLinkedIn, externalID: "urn:li:share:1"},
		models.PlatformInstagram: live.Instagram,
		models.PlatformYoutube:   live.Youtube,
	}
	clock := func() time.Time { return e.now }

	e.creds = NewCredentialService(e.store.SocialAccounts(), cipher, e.pubs, lock.NewMemoryLocker(),
		WithCredentialClock(clock))
	e.posts = NewPostService(e.store.Posts(), e.store.PostingHistory(), e.creds, e.pubs, e.sched,
		media.PassthroughResolver{}, WithPostClock(clock))
	return e
}

func (e *testEnv) link(t *testing.T, userID int64, platform models.Platform, md models.AccountMetadata, refreshToken string, expiresAt *time.Time) int64 {
	t.Helper()
	id, err := e.creds.Upsert(context.Background(), &models.SocialAccount{
		UserID:         userID,
		Platform:       platform,
		AccountID:      "acct-" + string(platform),
		AccountName:    "Ada",
		AccessToken:    "access-" + string(platform),
		RefreshToken:   refreshToken,
		TokenExpiresAt: expiresAt,
		Metadata:       md,
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) create(t *testing.T, userID int64, platform models.Platform, mediaURL string) *models.Post {
	t.Helper()
	post, err := e.posts.Create(context.Background(), userID, &transfer.PostCreation{
		Platform:      string(platform),
		Content:       "hello world",
		MediaURL:      mediaURL,
		ScheduledTime: e.now.Add(time.Hour),
	})
	require.NoError(t, err)
	return post
}

func (e *testEnv) post(t *testing.T, id int64) *models.Post {
	t.Helper()
	post, err := e.store.Posts().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, post)
	return post
}

func timePtr(t time.Time) *time.Time { return &t }

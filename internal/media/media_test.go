package media

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestValidate(t *testing.T) {
	cases := []struct {
		ref     string
		wantErr error
	}{
		{"", nil},
		{"https://cdn.example.com/a/photo.jpg", nil},
		{"https://cdn.example.com/a/photo", nil},
		{"r2://abc.png", nil},
		{"https://cdn.example.com/clip.mp4", ErrVideoUnsupported},
		{"r2://clip.MOV", ErrVideoUnsupported},
		{"ftp://cdn.example.com/photo.jpg", ErrInvalidReference},
		{"https:///photo.jpg", ErrInvalidReference},
		{"r2://", ErrInvalidReference},
		{"photo.jpg", ErrInvalidReference},
	}

	for _, tc := range cases {
		t.Run(tc.ref, func(t *testing.T) {
			err := Validate(tc.ref)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestPassthroughResolver(t *testing.T) {
	r := PassthroughResolver{}

	got, err := r.Resolve(context.Background(), "https://cdn.example.com/p.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/p.jpg", got)

	got, err = r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = r.Resolve(context.Background(), "r2://p.jpg")
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func newTestStore(t *testing.T, endpoint string) *R2Store {
	t.Helper()
	store, err := NewR2Store(context.Background(), R2Config{
		AccountID:  "acct",
		AccessKey:  "AKIDEXAMPLE",
		SecretKey:  "secret",
		BucketName: "media",
		Endpoint:   endpoint,
	})
	require.NoError(t, err)
	return store
}

func TestR2Store_ResolvePresignsBucketRefs(t *testing.T) {
	store := newTestStore(t, "")

	got, err := store.Resolve(context.Background(), "r2://abc.png")
	require.NoError(t, err)
	assert.Contains(t, got, "r2.cloudflarestorage.com")
	assert.Contains(t, got, "abc.png")
	assert.Contains(t, got, "X-Amz-Signature=")

	got, err = store.Resolve(context.Background(), "https://cdn.example.com/p.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/p.jpg", got)
}

func TestR2Store_Upload(t *testing.T) {
	var mu sync.Mutex
	var gotPath, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		gotPath, gotType = r.URL.Path, r.Header.Get("Content-Type")
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newTestStore(t, srv.URL)
	ref, err := store.Upload(context.Background(), pngHeader)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref, "r2://"))
	assert.True(t, strings.HasSuffix(ref, ".png"))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, strings.HasPrefix(gotPath, "/media/"))
	assert.Equal(t, "image/png", gotType)
}

func TestR2Store_UploadRejectsUnknownContent(t *testing.T) {
	store := newTestStore(t, "http://127.0.0.1:1")
	_, err := store.Upload(context.Background(), []byte("plain text body"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

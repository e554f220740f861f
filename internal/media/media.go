// Package media validates post media references and turns stored objects
// into URLs a platform can fetch.
//
// A reference is either a public http(s) URL, passed through unchanged, or a
// bucket reference of the form r2://<key> produced by Upload.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/h2non/filetype"
)

const bucketScheme = "r2"

var (
	ErrInvalidReference = errors.New("invalid media reference")
	ErrVideoUnsupported = errors.New("video media is not supported")
	ErrUnsupportedType  = errors.New("unsupported media type")
)

// Resolver returns a URL the platform can download ref from.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Uploader stores media bytes and returns a reference to them.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

// Validate checks the shape of ref. An empty ref is valid since media is
// optional for most platforms. References whose extension names a video type
// are rejected.
func Validate(ref string) error {
	if ref == "" {
		return nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}

	var p string
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return fmt.Errorf("%w: missing host", ErrInvalidReference)
		}
		p = u.Path
	case bucketScheme:
		if objectKey(u) == "" {
			return fmt.Errorf("%w: missing object key", ErrInvalidReference)
		}
		p = objectKey(u)
	default:
		return fmt.Errorf("%w: scheme %q", ErrInvalidReference, u.Scheme)
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if ext != "" && filetype.GetType(ext).MIME.Type == "video" {
		return fmt.Errorf("%w: .%s", ErrVideoUnsupported, ext)
	}
	return nil
}

func objectKey(u *url.URL) string {
	return strings.TrimPrefix(u.Host+u.Path, "/")
}

// BucketRef builds the reference stored on a post for an uploaded object.
func BucketRef(key string) string {
	return bucketScheme + "://" + key
}

// PassthroughResolver resolves public URLs only. It is used when no bucket is
// configured.
type PassthroughResolver struct{}

func (PassthroughResolver) Resolve(_ context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	if err := Validate(ref); err != nil {
		return "", err
	}
	if strings.HasPrefix(ref, bucketScheme+"://") {
		return "", fmt.Errorf("%w: no bucket configured for %s", ErrInvalidReference, ref)
	}
	return ref, nil
}

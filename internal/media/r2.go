package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const defaultPresignTTL = time.Hour

// allowedImages are the upload types every image-capable platform accepts.
var allowedImages = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {},
}

type R2Config struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	// Endpoint overrides the account endpoint derived from AccountID.
	Endpoint   string
	PresignTTL time.Duration
}

// R2Store uploads post media to a Cloudflare R2 bucket and resolves bucket
// references into presigned GET URLs.
type R2Store struct {
	bucket  string
	ttl     time.Duration
	client  *s3.Client
	presign *s3.PresignClient
}

func NewR2Store(ctx context.Context, c R2Config) (*R2Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = c.Endpoint != ""
	})

	ttl := c.PresignTTL
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}

	return &R2Store{
		bucket:  c.BucketName,
		ttl:     ttl,
		client:  client,
		presign: s3.NewPresignClient(client),
	}, nil
}

// Upload stores an image and returns its bucket reference.
func (r *R2Store) Upload(ctx context.Context, data []byte) (string, error) {
	kind, err := filetype.Match(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	if kind.MIME.Type == "video" {
		return "", ErrVideoUnsupported
	}
	if _, ok := allowedImages[kind.Extension]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, kind.Extension)
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := id + "." + kind.Extension

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(kind.MIME.Value),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return BucketRef(key), nil
}

func (r *R2Store) Resolve(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	if err := Validate(ref); err != nil {
		return "", err
	}
	if !strings.HasPrefix(ref, bucketScheme+"://") {
		return ref, nil
	}

	u, _ := url.Parse(ref)
	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(objectKey(u)),
	}, s3.WithPresignExpires(r.ttl))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return req.URL, nil
}

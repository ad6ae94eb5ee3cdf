// Package archive publishes export bundles to S3-compatible storage and
// hands back a presigned download link.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"specstudio/internal/config"
)

const (
	keyPrefix   = "exports"
	contentType = "application/zip"
)

var ErrDisabled = errors.New("archive not configured")

// Published describes an uploaded bundle.
type Published struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// ObjectStore is the subset of the minio client the publisher uses.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration, params url.Values) (*url.URL, error)
}

type Publisher struct {
	store  ObjectStore
	bucket string
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
}

// New connects to the endpoint in cfg. It does not contact the server.
func New(cfg config.Archive) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return NewWithStore(client, cfg.Bucket, cfg.PresignTTL()), nil
}

// NewWithStore builds a publisher over an existing store.
func NewWithStore(store ObjectStore, bucket string, ttl time.Duration) *Publisher {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Publisher{
		store:  store,
		bucket: bucket,
		ttl:    ttl,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (p *Publisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.store.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", p.bucket, err)
	}
	if exists {
		return nil
	}
	if err := p.store.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", p.bucket, err)
	}
	return nil
}

// Publish uploads data under a fresh key and presigns a GET for it.
func (p *Publisher) Publish(ctx context.Context, data []byte, filename string) (Published, error) {
	key := objectKey(p.now(), p.newID())
	info, err := p.store.PutObject(ctx, p.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", filename),
	})
	if err != nil {
		return Published{}, fmt.Errorf("upload %s: %w", key, err)
	}

	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	link, err := p.store.PresignedGetObject(ctx, p.bucket, key, p.ttl, params)
	if err != nil {
		return Published{}, fmt.Errorf("presign %s: %w", key, err)
	}

	size := info.Size
	if size == 0 {
		size = int64(len(data))
	}
	return Published{Key: key, URL: link.String(), Size: size}, nil
}

func objectKey(now time.Time, id string) string {
	now = now.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%s.zip", keyPrefix, now.Year(), int(now.Month()), id)
}

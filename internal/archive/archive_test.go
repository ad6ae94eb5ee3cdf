package archive

import (
	"context"
	"errors"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"specstudio/internal/config"
)

type fakeStore struct {
	buckets map[string]bool
	objects map[string][]byte
	opts    minio.PutObjectOptions
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{buckets: map[string]bool{}, objects: map[string][]byte{}}
}

func (f *fakeStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	return f.buckets[bucket], nil
}

func (f *fakeStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.buckets[bucket] = true
	return nil
}

func (f *fakeStore) PutObject(_ context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[bucket+"/"+key] = data
	f.opts = opts
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func (f *fakeStore) PresignedGetObject(_ context.Context, bucket, key string, expiry time.Duration, params url.Values) (*url.URL, error) {
	q := url.Values{}
	q.Set("X-Amz-Expires", expiry.String())
	for k, v := range params {
		q[k] = v
	}
	return &url.URL{Scheme: "https", Host: "s3.test", Path: "/" + bucket + "/" + key, RawQuery: q.Encode()}, nil
}

func TestObjectKey(t *testing.T) {
	got := objectKey(time.Date(2026, 2, 9, 23, 0, 0, 0, time.FixedZone("x", -5*3600)), "abc")
	if got != "exports/2026/02/abc.zip" {
		t.Fatalf("objectKey() = %q", got)
	}
}

func TestPublish(t *testing.T) {
	store := newFakeStore()
	p := NewWithStore(store, "bundles", 10*time.Minute)
	p.now = func() time.Time { return time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC) }
	p.newID = func() string { return "0f1e2d3c" }

	if err := p.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("EnsureBucket() error = %v", err)
	}
	if !store.buckets["bundles"] {
		t.Fatal("bucket was not created")
	}

	out, err := p.Publish(context.Background(), []byte("zipdata"), "artifacts_1.zip")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if out.Key != "exports/2026/07/0f1e2d3c.zip" || out.Size != 7 {
		t.Fatalf("Publish() = %+v", out)
	}
	if string(store.objects["bundles/"+out.Key]) != "zipdata" {
		t.Fatal("object content mismatch")
	}
	if store.opts.ContentType != "application/zip" {
		t.Fatalf("content type = %q", store.opts.ContentType)
	}
	link, err := url.Parse(out.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if link.Path != "/bundles/"+out.Key || link.Query().Get("X-Amz-Expires") != "10m0s" {
		t.Fatalf("presigned url = %s", out.URL)
	}
}

func TestPublishUploadError(t *testing.T) {
	store := newFakeStore()
	store.putErr = errors.New("denied")
	p := NewWithStore(store, "b", 0)
	if _, err := p.Publish(context.Background(), []byte("x"), "a.zip"); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestNewDisabled(t *testing.T) {
	if _, err := New(config.Archive{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("New() error = %v, want ErrDisabled", err)
	}
}

func TestNewStripsScheme(t *testing.T) {
	p, err := New(config.Archive{Endpoint: "http://localhost:9000", Bucket: "b", PresignTTLSecond: 60})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.ttl != time.Minute || p.bucket != "b" {
		t.Fatalf("publisher = %+v", p)
	}
}

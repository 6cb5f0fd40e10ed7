// Package s3 serves spreadsheet uploads from an S3-compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sheetsql/sheetsql/internal/storage"
)

type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	// Prefix is prepended to every requested key, so callers only see the
	// uploads below it.
	Prefix string
	// MaxBytes rejects larger objects before they are downloaded. Zero
	// disables the check.
	MaxBytes int64
}

// ObjectClient is the slice of a bucket the source needs. Keys are full
// object keys, prefix included.
type ObjectClient interface {
	Size(ctx context.Context, key string) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	BucketExists(ctx context.Context) (bool, error)
}

// Source implements storage.UploadSource on top of one bucket.
type Source struct {
	client   ObjectClient
	prefix   string
	maxBytes int64
}

func New(cfg Config) (*Source, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return NewWithClient(&minioBucket{client: mc, bucket: bucket}, cfg.Prefix, cfg.MaxBytes)
}

func NewWithClient(client ObjectClient, prefix string, maxBytes int64) (*Source, error) {
	if client == nil {
		return nil, fmt.Errorf("object client is required")
	}
	return &Source{client: client, prefix: cleanPrefix(prefix), maxBytes: maxBytes}, nil
}

// Fetch validates key, checks the object size against the upload limit and
// opens it.
func (s *Source) Fetch(ctx context.Context, key string) (storage.Upload, error) {
	if err := storage.ValidateKey(key); err != nil {
		return storage.Upload{}, err
	}
	objectKey := s.objectKey(key)

	size, err := s.client.Size(ctx, objectKey)
	if err != nil {
		return storage.Upload{}, fetchError("stat", objectKey, err)
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return storage.Upload{}, fmt.Errorf("%w: %s is %d bytes, limit %d", storage.ErrObjectTooLarge, key, size, s.maxBytes)
	}
	body, err := s.client.Open(ctx, objectKey)
	if err != nil {
		return storage.Upload{}, fetchError("get", objectKey, err)
	}
	return storage.Upload{Key: key, Name: storage.BaseName(key), Size: size, Body: body}, nil
}

// Ping reports whether the bucket is reachable; used for readiness.
func (s *Source) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx)
	if err != nil {
		return fmt.Errorf("check upload bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("upload bucket does not exist")
	}
	return nil
}

func (s *Source) objectKey(key string) string {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func fetchError(op, objectKey string, err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, objectKey)
	}
	return fmt.Errorf("%s object %q: %w", op, objectKey, err)
}

func cleanPrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	if prefix = path.Clean(prefix); prefix == "." {
		return ""
	}
	return prefix
}

// parseEndpoint accepts host:port or a URL; an https URL forces TLS.
func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("s3 endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse s3 endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("s3 endpoint %q has no host", raw)
	}
	return parsed.Host, useSSL || parsed.Scheme == "https", nil
}

type minioBucket struct {
	client *minio.Client
	bucket string
}

func (b *minioBucket) Size(ctx context.Context, key string) (int64, error) {
	info, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, mapMinioErr(err)
	}
	return info.Size, nil
}

func (b *minioBucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioErr(err)
	}
	return obj, nil
}

func (b *minioBucket) BucketExists(ctx context.Context) (bool, error) {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return false, mapMinioErr(err)
	}
	return exists, nil
}

func mapMinioErr(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return storage.ErrObjectNotFound
	}
	return err
}

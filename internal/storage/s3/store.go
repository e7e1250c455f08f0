package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/tigel-agm/NL-SQL/internal/config"
	"github.com/tigel-agm/NL-SQL/internal/storage"
)

// objectAPI is the bucket-scoped subset of an S3 client used by Store.
type objectAPI interface {
	Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) (storage.ObjectInfo, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, bucket, key string) (storage.ObjectInfo, error)
	Delete(ctx context.Context, bucket, key string) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket, region string) error
}

// Store keeps archived results in one bucket, optionally under a key prefix.
type Store struct {
	api    objectAPI
	bucket string
	prefix string
}

func New(ctx context.Context, cfg config.ObjectStoreConfig) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	api, err := newMinioAPI(cfg)
	if err != nil {
		return nil, err
	}
	store, err := NewWithAPI(cfg.Bucket, cfg.Prefix, api)
	if err != nil {
		return nil, err
	}
	if cfg.AutoCreateBucket {
		if err := store.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func NewWithAPI(bucket, prefix string, api objectAPI) (*Store, error) {
	if api == nil {
		return nil, fmt.Errorf("object api is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Store{api: api, bucket: bucket, prefix: cleanPrefix(prefix)}, nil
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.api.Put(ctx, s.bucket, objectKey, body, size, opts.ContentType)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("put object %q: %w", objectKey, err)
	}
	// Callers address objects without the prefix.
	info.Key = key
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	reader, err := s.api.Get(ctx, s.bucket, objectKey)
	if err != nil {
		return nil, wrapNotFound("get", objectKey, err)
	}
	return reader, nil
}

func (s *Store) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.api.Stat(ctx, s.bucket, objectKey)
	if err != nil {
		return storage.ObjectInfo{}, wrapNotFound("stat", objectKey, err)
	}
	info.Key = key
	return info, nil
}

// Delete is idempotent: a missing object is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	err = s.api.Delete(ctx, s.bucket, objectKey)
	if err == nil || errors.Is(err, storage.ErrObjectNotFound) {
		return nil
	}
	return fmt.Errorf("delete object %q: %w", objectKey, err)
}

func (s *Store) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.api.CreateBucket(ctx, s.bucket, region); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	return nil
}

// objectKey cleans a caller key, rejects traversal outside the prefix and applies the prefix.
func (s *Store) objectKey(key string) (string, error) {
	trimmed := strings.TrimSpace(strings.TrimLeft(key, "/"))
	if trimmed == "" {
		return "", fmt.Errorf("object key is required")
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return path.Join(s.prefix, cleaned), nil
}

func wrapNotFound(op, key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return storage.ErrObjectNotFound
	}
	return fmt.Errorf("%s object %q: %w", op, key, err)
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

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/control-eventos/apiserver/config"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
	// DefaultBaseURL is the public URL prefix objects are served from.
	DefaultBaseURL() string
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
	baseURL string
}

// NewStorage constructs a Storage wrapper for the provided backend.
// An empty publicBaseURL falls back to the backend's default.
func NewStorage(backend ObjectStorage, publicBaseURL string) *Storage {
	base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if base == "" {
		base = strings.TrimRight(backend.DefaultBaseURL(), "/")
	}
	return &Storage{backend: backend, baseURL: base}
}

// Open builds a Storage for bucket on the configured backend.
// It returns nil, nil when object storage is disabled.
func Open(ctx context.Context, cfg config.Config, bucket string) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Storage.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.StorageBackendMinio:
		backend, err = NewMinioClient(cfg.Minio, bucket)
	case config.StorageBackendGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS, bucket)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewStorage(backend, cfg.Storage.PublicBaseURL), nil
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Upload stores r under a generated key and returns the key and its public URL.
func (s *Storage) Upload(ctx context.Context, prefix, filename string, r io.Reader, size int64, contentType string) (string, string, error) {
	if s == nil {
		return "", "", errors.New("object storage not configured")
	}
	key := NewObjectKey(prefix, filename)
	if err := s.backend.Put(ctx, key, r, size, contentType); err != nil {
		return "", "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, s.PublicURL(key), nil
}

// Get opens a reader for an object in the configured bucket.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// DeleteAll removes every key and reports all failures.
func (s *Storage) DeleteAll(ctx context.Context, keys ...string) error {
	var err error
	for _, key := range keys {
		err = multierr.Append(err, s.backend.Delete(ctx, key))
	}
	return err
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// PublicURL returns the URL an uploaded object is served from.
func (s *Storage) PublicURL(key string) string {
	return s.baseURL + "/" + s.backend.Bucket() + "/" + strings.TrimLeft(key, "/")
}

// NewObjectKey builds a collision-free key keeping the file extension.
func NewObjectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	if len(ext) > 8 {
		ext = ""
	}
	name := uuid.NewString() + ext
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

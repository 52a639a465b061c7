package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/control-eventos/apiserver/config"
	"github.com/stretchr/testify/require"
)

type memoryBackend struct {
	bucket    string
	objects   map[string][]byte
	failKeys  map[string]bool
	failPuts  bool
	deleteErr error
}

func newMemoryBackend(bucket string) *memoryBackend {
	return &memoryBackend{bucket: bucket, objects: map[string][]byte{}, failKeys: map[string]bool{}}
}

func (m *memoryBackend) EnsureBucket(context.Context) error { return nil }

func (m *memoryBackend) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if m.failPuts {
		return errors.New("put failed")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memoryBackend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryBackend) Delete(_ context.Context, key string) error {
	if m.failKeys[key] {
		return errors.New("delete " + key)
	}
	delete(m.objects, key)
	return nil
}

func (m *memoryBackend) Bucket() string         { return m.bucket }
func (m *memoryBackend) DefaultBaseURL() string { return "http://minio:9000" }

func TestUploadReturnsPublicURL(t *testing.T) {
	backend := newMemoryBackend("event-images")
	s := NewStorage(backend, "")

	key, url, err := s.Upload(context.Background(), "events", "Poster.PNG", strings.NewReader("img"), 3, "image/png")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "events/"))
	require.True(t, strings.HasSuffix(key, ".png"))
	require.Equal(t, "http://minio:9000/event-images/"+key, url)
	require.Equal(t, []byte("img"), backend.objects[key])
}

func TestPublicURLOverride(t *testing.T) {
	s := NewStorage(newMemoryBackend("complaint-images"), "https://cdn.example.com/")
	require.Equal(t, "https://cdn.example.com/complaint-images/a/b.jpg", s.PublicURL("/a/b.jpg"))
}

func TestUploadFailure(t *testing.T) {
	backend := newMemoryBackend("event-images")
	backend.failPuts = true
	s := NewStorage(backend, "")

	_, _, err := s.Upload(context.Background(), "events", "x.jpg", strings.NewReader("img"), 3, "image/jpeg")
	require.Error(t, err)

	var nilStorage *Storage
	_, _, err = nilStorage.Upload(context.Background(), "events", "x.jpg", strings.NewReader("img"), 3, "image/jpeg")
	require.Error(t, err)
}

func TestDeleteAllAggregatesErrors(t *testing.T) {
	backend := newMemoryBackend("complaint-images")
	backend.objects["a"] = nil
	backend.failKeys["b"] = true
	backend.failKeys["c"] = true
	s := NewStorage(backend, "")

	err := s.DeleteAll(context.Background(), "a", "b", "c")
	require.Error(t, err)
	require.Contains(t, err.Error(), "delete b")
	require.Contains(t, err.Error(), "delete c")
	require.NotContains(t, backend.objects, "a")
}

func TestNewObjectKey(t *testing.T) {
	key := NewObjectKey("/complaints/", "foto.JPEG")
	require.True(t, strings.HasPrefix(key, "complaints/"))
	require.True(t, strings.HasSuffix(key, ".jpeg"))

	require.NotContains(t, NewObjectKey("", "noext"), "/")
	require.False(t, strings.Contains(NewObjectKey("", "x.averyverylongext"), "."))
}

func TestOpenDisabled(t *testing.T) {
	s, err := Open(context.Background(), config.Config{Storage: config.StorageConfig{Backend: config.BackendNone}}, "event-images")
	require.NoError(t, err)
	require.Nil(t, s)

	_, err = Open(context.Background(), config.Config{Storage: config.StorageConfig{Backend: "s3"}}, "event-images")
	require.Error(t, err)
}

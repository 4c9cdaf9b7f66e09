package inbound

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/certsend/internal/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	signErr error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStorage) PutObject(_ context.Context, bucket, key string, r io.Reader, opts storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = data
	m.types[bucket+"/"+key] = opts.ContentType

	return storage.ObjectInfo{Bucket: bucket, Key: key, Size: int64(len(data))}, nil
}

func (m *memStorage) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ObjectInfo{}, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), storage.ObjectInfo{Bucket: bucket, Key: key}, nil
}

func (m *memStorage) DeleteObject(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+key)
	return nil
}

func (m *memStorage) PresignGet(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	if m.signErr != nil {
		return "", m.signErr
	}
	return "https://signed.example/" + bucket + "/" + key, nil
}

func (m *memStorage) Close() error { return nil }

func TestSource_LocalFiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "preview.jpg")
	src := NewSource(nil)

	link, err := src.WriteFile(context.Background(), path, "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, path, link)

	got, err := src.ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), got)
}

func TestSource_StorageObjects(t *testing.T) {
	t.Parallel()

	store := newMemStorage()
	src := NewSource(store)

	link, err := src.WriteFile(context.Background(), "storage://certs/previews/ada.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/certs/previews/ada.jpg", link)
	assert.Equal(t, "image/jpeg", store.types["certs/previews/ada.jpg"])

	got, err := src.ReadFile(context.Background(), "storage://certs/previews/ada.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), got)
}

func TestSource_UnsignedLinkFallsBackToURI(t *testing.T) {
	t.Parallel()

	store := newMemStorage()
	store.signErr = storage.ErrMissingSigner

	link, err := NewSource(store).WriteFile(context.Background(), "storage://certs/a.jpg", "image/jpeg", []byte("x"))

	require.NoError(t, err)
	assert.Equal(t, "storage://certs/a.jpg", link)
}

func TestSource_StorageNotConfigured(t *testing.T) {
	t.Parallel()

	src := NewSource(nil)

	_, err := src.ReadFile(context.Background(), "storage://certs/template.png")
	require.Error(t, err)

	_, err = src.WriteFile(context.Background(), "storage://certs/a.jpg", "image/jpeg", nil)
	require.Error(t, err)
}

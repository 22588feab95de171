package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/gamevault/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBackend) EnsureBucket(ctx context.Context) error { return nil }

func (f *fakeBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeBackend) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeBackend) Bucket() string  { return "covers" }
func (f *fakeBackend) BaseURL() string { return "http://localhost:9000/covers/" }

func TestCoversSaveAndRemove(t *testing.T) {
	backend := newFakeBackend()
	covers := NewCovers(backend, "https://cdn.example.com/")
	ctx := context.Background()

	url, err := covers.Save(ctx, 7, []byte("png-bytes"), "png", "image/png")
	require.NoError(t, err)
	assert.Regexp(t, `^https://cdn\.example\.com/games/7/[0-9a-f-]{36}\.png$`, url)

	key, ok := covers.KeyFromURL(url)
	require.True(t, ok)
	assert.Equal(t, []byte("png-bytes"), backend.objects[key])
	assert.Equal(t, "image/png", backend.types[key])

	require.NoError(t, covers.Remove(ctx, url))
	assert.Empty(t, backend.objects)
}

func TestCoversFallBackToBackendURL(t *testing.T) {
	covers := NewCovers(newFakeBackend(), "")

	assert.Equal(t, "http://localhost:9000/covers/games/1/a.png", covers.URL("games/1/a.png"))
}

func TestCoversRemoveIgnoresForeignURLs(t *testing.T) {
	backend := newFakeBackend()
	backend.objects["games/1/a.png"] = []byte("x")
	covers := NewCovers(backend, "https://cdn.example.com")

	require.NoError(t, covers.Remove(context.Background(), "https://elsewhere.example.com/games/1/a.png"))
	assert.Len(t, backend.objects, 1)
}

func TestCoversSaveWrapsBackendError(t *testing.T) {
	backend := newFakeBackend()
	backend.putErr = errors.New("bucket offline")
	covers := NewCovers(backend, "https://cdn.example.com")

	_, err := covers.Save(context.Background(), 1, bytes.Repeat([]byte("x"), 4), "jpg", "image/jpeg")
	assert.ErrorIs(t, err, backend.putErr)
}

func TestCoverKeysAreUnique(t *testing.T) {
	assert.NotEqual(t, CoverKey(1, ".jpg"), CoverKey(1, "jpg"))
	assert.Contains(t, CoverKey(3, ".gif"), "games/3/")
}

func TestNewWithoutBackendDisablesStorage(t *testing.T) {
	covers, err := New(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, covers)

	_, err = New(context.Background(), config.StorageConfig{Backend: "s3"})
	assert.Error(t, err)
}

func TestMinioBaseURL(t *testing.T) {
	client, err := NewMinioClient(config.MinioConfig{
		Endpoint:  "minio:9000",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "covers",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/covers", client.BaseURL())
	assert.Equal(t, "covers", client.Bucket())
}

func TestNewMinioClientValidatesConfig(t *testing.T) {
	_, err := NewMinioClient(config.MinioConfig{Endpoint: "minio:9000"})
	assert.Error(t, err)
}

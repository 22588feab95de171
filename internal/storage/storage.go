package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gamevault/apiserver/config"
	"github.com/google/uuid"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Bucket() string
	// BaseURL is the public URL objects are served from when no
	// STORAGE_PUBLIC_URL override is configured.
	BaseURL() string
}

// Covers stores game cover images in an ObjectStorage backend and maps
// object keys to public URLs.
type Covers struct {
	backend   ObjectStorage
	publicURL string
}

// NewCovers wraps backend. An empty publicURL falls back to the backend's
// own base URL.
func NewCovers(backend ObjectStorage, publicURL string) *Covers {
	publicURL = strings.TrimRight(publicURL, "/")
	if publicURL == "" {
		publicURL = strings.TrimRight(backend.BaseURL(), "/")
	}
	return &Covers{backend: backend, publicURL: publicURL}
}

// New builds the configured backend. It returns (nil, nil) when no
// STORAGE_BACKEND is set, which disables cover uploads.
func New(ctx context.Context, cfg config.StorageConfig) (*Covers, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "":
		return nil, nil
	case config.StorageMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case config.StorageGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return NewCovers(backend, cfg.PublicURL), nil
}

// CoverKey returns a fresh object key for a cover of the given game.
func CoverKey(gameID int, ext string) string {
	return fmt.Sprintf("games/%d/%s.%s", gameID, uuid.NewString(), strings.TrimPrefix(ext, "."))
}

// Save uploads a cover and returns its public URL.
func (c *Covers) Save(ctx context.Context, gameID int, data []byte, ext, contentType string) (string, error) {
	key := CoverKey(gameID, ext)
	if err := c.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return c.URL(key), nil
}

// Remove deletes the object behind a URL previously returned by Save.
// URLs that do not belong to this store are ignored.
func (c *Covers) Remove(ctx context.Context, url string) error {
	key, ok := c.KeyFromURL(url)
	if !ok {
		return nil
	}
	return c.backend.Delete(ctx, key)
}

// URL returns the public URL for key.
func (c *Covers) URL(key string) string {
	return c.publicURL + "/" + key
}

// KeyFromURL reverses URL for covers held by this store.
func (c *Covers) KeyFromURL(url string) (string, bool) {
	prefix := c.publicURL + "/games/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, c.publicURL+"/"), true
}

const coverCacheControl = "public, max-age=31536000, immutable"

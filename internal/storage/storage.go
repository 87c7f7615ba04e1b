package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL returns the public https address of key.
	URL(key string) string
	Bucket() string
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Upload stores data under folder with a random object name keeping the
// extension of filename, and returns the object key and its secure URL.
func (s *Storage) Upload(ctx context.Context, data []byte, folder, filename, contentType string) (key, secureURL string, err error) {
	if len(data) == 0 {
		return "", "", errors.New("empty upload")
	}
	key = ObjectKey(folder, filename)
	if err := s.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", "", err
	}
	return key, s.backend.URL(key), nil
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// ObjectKey builds "<folder>/<uuid><ext>" with a lowercased extension.
func ObjectKey(folder, filename string) string {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	name := uuid.NewString() + strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

// Package cache provides the ephemeral key-value store with per-key TTL used
// for one-time codes and cached login lookups.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Backend defines the operations every cache implementation provides.
type Backend interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	// Delete removes key and reports whether it was present. Deleting an
	// absent key is not an error.
	Delete(ctx context.Context, key string) (bool, error)
	Close() error
}

// Cache wraps a Backend with a stable API and key helpers.
type Cache struct {
	backend Backend
}

// New constructs a Cache for the provided backend.
func New(backend Backend) *Cache {
	return &Cache{backend: backend}
}

// Set stores value under key for ttl. TTL granularity is one second.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < time.Second {
		ttl = time.Second
	}
	return c.backend.Set(ctx, key, value, ttl.Truncate(time.Second))
}

// Get returns the value for key or ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	return c.backend.Get(ctx, key)
}

// Delete removes key and reports whether this call removed it.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	return c.backend.Delete(ctx, key)
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

// OTPKey is the cache key of the one-time code bound to email.
func OTPKey(email string) string {
	return "otp:" + email
}

// UserKey is the cache key of the login lookup snapshot for email.
func UserKey(email string) string {
	return "user:" + email
}

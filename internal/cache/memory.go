package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
	timer     *time.Timer
	gen       uint64
}

// MemoryCache is an in-process Backend. Each key gets its own eviction
// timer; a generation counter stops a stale timer from removing a key that
// was rewritten after the timer was armed.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	gen     uint64
	now     func() time.Time
}

// NewMemoryCache constructs an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Set stores value for ttl, replacing any previous entry and its timer.
func (m *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.entries[key]; ok {
		prev.timer.Stop()
	}

	m.gen++
	gen := m.gen
	entry := &memoryEntry{
		value:     value,
		expiresAt: m.now().Add(ttl),
		gen:       gen,
	}
	entry.timer = time.AfterFunc(ttl, func() { m.evict(key, gen) })
	m.entries[key] = entry
	return nil
}

// Get returns the live value for key or ErrMiss.
func (m *MemoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", ErrMiss
	}
	if !m.now().Before(entry.expiresAt) {
		entry.timer.Stop()
		delete(m.entries, key)
		return "", ErrMiss
	}
	return entry.value, nil
}

// Delete removes key. It is idempotent and safe against a concurrent timer.
func (m *MemoryCache) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	entry.timer.Stop()
	delete(m.entries, key)
	return m.now().Before(entry.expiresAt), nil
}

// Close stops all timers and drops every entry.
func (m *MemoryCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, entry := range m.entries {
		entry.timer.Stop()
		delete(m.entries, key)
	}
	return nil
}

// Len reports the number of stored entries, expired or not.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryCache) evict(key string, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[key]; ok && entry.gen == gen {
		delete(m.entries, key)
	}
}

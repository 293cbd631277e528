package testutil

import (
	"context"
	"sync"
	"time"
)

// MemCacheRepository is an in-memory core.CacheRepository implementation for
// unit tests that should not depend on a live Redis. TTLs are honored against
// the wall clock.
type MemCacheRepository struct {
	mu      sync.Mutex
	entries map[string]memCacheEntry

	// FailSet, when set, is returned from Set calls to simulate a broken cache.
	FailSet error
	// FailGet, when set, is returned from Get calls.
	FailGet error
}

type memCacheEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemCacheRepository creates an empty in-memory cache.
func NewMemCacheRepository() *MemCacheRepository {
	return &MemCacheRepository{entries: make(map[string]memCacheEntry)}
}

// Set stores a value with the given TTL.
func (m *MemCacheRepository) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.FailSet != nil {
		return m.FailSet
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = newEntry(value, ttl)
	return nil
}

// Get retrieves a value, or nil when absent or expired.
func (m *MemCacheRepository) Get(_ context.Context, key string) ([]byte, error) {
	if m.FailGet != nil {
		return nil, m.FailGet
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Delete removes a key, reporting whether it existed.
func (m *MemCacheRepository) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	delete(m.entries, key)
	return ok, nil
}

// SetIfNotExists sets the key only when absent.
func (m *MemCacheRepository) SetIfNotExists(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[key]; ok {
		if entry.expiresAt.IsZero() || time.Now().Before(entry.expiresAt) {
			return false, nil
		}
	}
	m.entries[key] = newEntry(value, ttl)
	return true, nil
}

// Health always reports healthy.
func (m *MemCacheRepository) Health(_ context.Context) error { return nil }

// Len reports the number of live entries.
func (m *MemCacheRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newEntry(value []byte, ttl time.Duration) memCacheEntry {
	cp := make([]byte, len(value))
	copy(cp, value)
	entry := memCacheEntry{value: cp}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	return entry
}

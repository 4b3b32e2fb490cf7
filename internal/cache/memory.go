package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Store for development and tests. Entries expire
// lazily on read; CleanupExpired can be called periodically to bound memory
// in longer-lived dev deployments.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memEntry
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]memEntry)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; another writer may have
		// replaced the entry meanwhile.
		if cur, ok := m.items[key]; ok && time.Now().After(cur.expiresAt) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be > 0, got %s", ttl)
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.mu.Lock()
	m.items[key] = memEntry{value: v, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// CleanupExpired drops expired entries and reports how many were removed.
func (m *Memory) CleanupExpired() int {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, e := range m.items {
		if now.After(e.expiresAt) {
			delete(m.items, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of live-or-expired entries currently held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

var _ Store = (*Memory)(nil)

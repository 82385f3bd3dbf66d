package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is an in-process Store. Values are kept JSON-encoded so callers
// see the same copy semantics as with Redis. Expired entries are dropped on
// read.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
	stats   *Stats
}

var _ Store = (*Memory)(nil)

// NewMemory creates an in-process cache with the given default TTL.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		stats:   &Stats{},
	}
}

// Get retrieves a value from the cache.
func (m *Memory) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if ok && !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		atomic.AddUint64(&m.stats.Misses, 1)
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dest); err != nil {
		atomic.AddUint64(&m.stats.Errors, 1)
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	atomic.AddUint64(&m.stats.Hits, 1)
	return true, nil
}

// Set stores a value with the default TTL.
func (m *Memory) Set(ctx context.Context, key string, value any) error {
	return m.SetWithTTL(ctx, key, value, m.ttl)
}

// SetWithTTL stores a value with a custom TTL. A zero TTL never expires.
func (m *Memory) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		atomic.AddUint64(&m.stats.Errors, 1)
		return fmt.Errorf("cache marshal error: %w", err)
	}

	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()

	atomic.AddUint64(&m.stats.Sets, 1)
	return nil
}

// Delete removes a value from the cache.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()

	atomic.AddUint64(&m.stats.Deletes, 1)
	return nil
}

// GetStats returns the current cache statistics.
func (m *Memory) GetStats() StatsSnapshot {
	return m.stats.snapshot()
}

// Backend names the storage behind the cache.
func (m *Memory) Backend() string {
	return "memory"
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

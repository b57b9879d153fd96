package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxEntries bounds the in-memory backend.
const DefaultMaxEntries = 10000

type memoryEntry struct {
	payload  []byte
	storedAt time.Time
	ttl      time.Duration
}

// MemoryBackend is a bounded in-process backend. Expired entries are evicted
// when read; there is no background sweep.
type MemoryBackend struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

// NewMemoryBackend creates a backend holding at most maxEntries keys.
func NewMemoryBackend(maxEntries int) (*MemoryBackend, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, err := lru.New[string, memoryEntry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &MemoryBackend{entries: entries, now: time.Now}, nil
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if m.now().Sub(entry.storedAt) >= entry.ttl {
		m.entries.Remove(key)
		return nil, false, nil
	}
	return entry.payload, true, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	payload := make([]byte, len(value))
	copy(payload, value)
	m.entries.Add(key, memoryEntry{payload: payload, storedAt: m.now(), ttl: ttl})
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.entries.Remove(key)
	return nil
}

// DeleteMatching scans every key. Fine for the bounded sizes this backend holds.
func (m *MemoryBackend) DeleteMatching(ctx context.Context, substr string) (int, error) {
	removed := 0
	for _, key := range m.entries.Keys() {
		if strings.Contains(key, substr) && m.entries.Remove(key) {
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryBackend) Clear(ctx context.Context) error {
	m.entries.Purge()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryBackend) Len() int {
	return m.entries.Len()
}

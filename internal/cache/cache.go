// Package cache provides the short-lived, process-wide lookup cache shared by
// all requests. Entries expire lazily on read and are invalidated by key
// substring after writes.
package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTTL is used when a Set call does not specify one.
const DefaultTTL = 5 * time.Minute

// Backend stores raw payloads. Implementations must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeleteMatching removes every key containing substr and returns how many were removed.
	DeleteMatching(ctx context.Context, substr string) (int, error)
	Clear(ctx context.Context) error
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Sets          int64 `json:"sets"`
	Invalidations int64 `json:"invalidations"`
	Errors        int64 `json:"errors"`
}

// Cache is the request cache. Construct one per process and inject it.
//
// Backend failures never fail the caller: a failed read is a miss and a failed
// write is logged. Invalidation errors are returned so writers can log them.
type Cache struct {
	backend    Backend
	defaultTTL time.Duration
	log        *logrus.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	sets          atomic.Int64
	invalidations atomic.Int64
	errors        atomic.Int64
}

// New creates a cache over backend. A non-positive defaultTTL selects DefaultTTL.
func New(backend Backend, defaultTTL time.Duration, log *logrus.Logger) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if log == nil {
		log = logrus.New()
	}
	return &Cache{backend: backend, defaultTTL: defaultTTL, log: log}
}

// Get returns the payload for key, or false on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.errors.Add(1)
		c.log.WithError(err).WithField("key", key).Warn("cache get failed")
		ok = false
	}
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return value, true
}

// Set stores value under key. ttl <= 0 uses the cache default.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.backend.Set(ctx, key, value, ttl); err != nil {
		c.errors.Add(1)
		c.log.WithError(err).WithField("key", key).Warn("cache set failed")
		return
	}
	c.sets.Add(1)
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.backend.Delete(ctx, key); err != nil {
		c.errors.Add(1)
		return err
	}
	c.invalidations.Add(1)
	return nil
}

// InvalidatePattern removes every key containing substr.
func (c *Cache) InvalidatePattern(ctx context.Context, substr string) (int, error) {
	n, err := c.backend.DeleteMatching(ctx, substr)
	if err != nil {
		c.errors.Add(1)
		return n, err
	}
	c.invalidations.Add(int64(n))
	return n, nil
}

// Clear drops every entry.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.backend.Clear(ctx); err != nil {
		c.errors.Add(1)
		return err
	}
	return nil
}

// Stats returns activity counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Sets:          c.sets.Load(),
		Invalidations: c.invalidations.Load(),
		Errors:        c.errors.Load(),
	}
}

// GetJSON decodes the cached payload for key into T.
// A payload that no longer decodes is dropped and reported as a miss.
func GetJSON[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T
	raw, ok := c.Get(ctx, key)
	if !ok {
		return zero, false
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("dropping undecodable cache entry")
		_ = c.Invalidate(ctx, key)
		return zero, false
	}
	return value, true
}

// SetJSON encodes value and stores it under key.
func SetJSON[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache encode failed")
		return
	}
	c.Set(ctx, key, raw, ttl)
}

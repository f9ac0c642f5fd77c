// Package memory provides the in-process query cache, a size-bounded LRU
// with per-entry expiry.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.CacheBackend = (*Cache)(nil)

// DefaultMaxSize bounds the cache when no size is configured.
const DefaultMaxSize = 1000

type entry struct {
	resp      *domain.QueryResponse
	expiresAt time.Time
}

// Cache is an LRU of query responses. The least recently used entry is
// evicted once MaxSize is reached. Entries carry their own expiry because
// callers pick the TTL per Set.
type Cache struct {
	// mu is held exclusively only while purging, so the evict callback
	// can tell a purge from a size or expiry eviction.
	mu      sync.RWMutex
	purging bool

	lru       *lru.Cache[string, entry]
	now       func() time.Time
	evictions atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache holding at most maxSize entries.
func New(maxSize int, opts ...Option) (*Cache, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	c := &Cache{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	l, err := lru.NewWithEvict(maxSize, func(string, entry) {
		if !c.purging {
			c.evictions.Add(1)
		}
	})
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// Name returns "memory".
func (c *Cache) Name() string {
	return "memory"
}

// Get returns the response for key and marks it recently used.
// Expired entries are removed and reported as misses.
func (c *Cache) Get(_ context.Context, key string) (*domain.QueryResponse, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return e.resp.Clone(), true, nil
}

// Set stores a copy of value until ttl elapses.
func (c *Cache) Set(_ context.Context, key string, value *domain.QueryResponse, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.lru.Add(key, entry{resp: value.Clone(), expiresAt: c.now().Add(ttl)})
	return nil
}

// Clear removes every entry. Purged entries do not count as evictions.
func (c *Cache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purging = true
	c.lru.Purge()
	c.purging = false
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len(_ context.Context) (int, error) {
	return c.lru.Len(), nil
}

// Sweep removes expired entries without touching recency.
func (c *Cache) Sweep(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	removed := 0
	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok && !now.Before(e.expiresAt) {
			if c.lru.Remove(key) {
				removed++
			}
		}
	}
	return removed, nil
}

// Evictions returns how many entries were dropped to respect the size
// bound or by expiry.
func (c *Cache) Evictions() int64 {
	return c.evictions.Load()
}

// Close is a no-op.
func (c *Cache) Close() error {
	return nil
}

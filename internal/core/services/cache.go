package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
	"github.com/custodia-labs/memquery/internal/logger"
)

// DefaultCacheTTL is used when no TTL is configured.
const DefaultCacheTTL = 300 * time.Second

// ResultCache wraps a cache backend with hit/miss accounting.
// Backend errors are logged and treated as misses or dropped writes,
// so a broken cache degrades to direct querying.
type ResultCache struct {
	backend driven.CacheBackend
	ttl     time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache creates a result cache. A nil backend disables caching;
// every lookup is then a miss.
func NewResultCache(backend driven.CacheBackend, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResultCache{backend: backend, ttl: ttl}
}

// Get returns a copy of the cached response for key.
// Counters are incremented exactly once per call.
func (c *ResultCache) Get(ctx context.Context, key string) (*domain.QueryResponse, bool) {
	if c.backend == nil {
		c.misses.Add(1)
		return nil, false
	}

	resp, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		logger.Warn("cache: get %s failed on %s backend: %v", shortKey(key), c.backend.Name(), err)
		c.misses.Add(1)
		return nil, false
	}
	if !ok || resp == nil {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return resp.Clone(), true
}

// Set stores a response. A non-positive ttl uses the cache default.
func (c *ResultCache) Set(ctx context.Context, key string, resp *domain.QueryResponse, ttl time.Duration) {
	if c.backend == nil || resp == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.backend.Set(ctx, key, resp.Clone(), ttl); err != nil {
		logger.Warn("cache: set %s failed on %s backend: %v", shortKey(key), c.backend.Name(), err)
	}
}

// Clear removes every cached response. Counters are kept.
func (c *ResultCache) Clear(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Clear(ctx)
}

// Sweep purges expired entries.
func (c *ResultCache) Sweep(ctx context.Context) (int, error) {
	if c.backend == nil {
		return 0, nil
	}
	return c.backend.Sweep(ctx)
}

// Stats returns the hit/miss counters and the current size.
func (c *ResultCache) Stats(ctx context.Context) domain.CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	stats := domain.CacheStats{
		Hits:          hits,
		Misses:        misses,
		TotalRequests: total,
		Backend:       "none",
	}
	if total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}

	if c.backend != nil {
		stats.Backend = c.backend.Name()
		if n, err := c.backend.Len(ctx); err == nil {
			stats.Size = n
		}
	}
	return stats
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (c *ResultCache) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// TTL returns the default entry lifetime.
func (c *ResultCache) TTL() time.Duration {
	return c.ttl
}

// Close releases the backend.
func (c *ResultCache) Close() error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

func shortKey(key string) string {
	if len(key) > 16 {
		return key[:16]
	}
	return key
}

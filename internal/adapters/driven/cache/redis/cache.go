// Package redis provides a query cache shared between memquery instances.
// Entries expire through Redis TTLs; a sorted-set index bounds the number
// of entries by evicting the least recently used.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.CacheBackend = (*Cache)(nil)

// DefaultPrefix namespaces keys when none is configured.
const DefaultPrefix = "memquery:"

// setScript stores an entry, bumps it in the recency index and evicts the
// oldest entries beyond the bound.
// KEYS[1] = entry key, KEYS[2] = recency index, KEYS[3] = sequence counter
// ARGV[1] = payload, ARGV[2] = ttl in milliseconds, ARGV[3] = max entries
var setScript = redis.NewScript(`
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("ZADD", KEYS[2], redis.call("INCR", KEYS[3]), KEYS[1])

local max = tonumber(ARGV[3])
local n = redis.call("ZCARD", KEYS[2])
local evicted = 0
if max > 0 and n > max then
    local old = redis.call("ZRANGE", KEYS[2], 0, n - max - 1)
    for _, k in ipairs(old) do
        redis.call("DEL", k)
        redis.call("ZREM", KEYS[2], k)
        evicted = evicted + 1
    end
end
return evicted
`)

// getScript reads an entry and marks it recently used.
// KEYS[1] = entry key, KEYS[2] = recency index, KEYS[3] = sequence counter
var getScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v then
    redis.call("ZADD", KEYS[2], redis.call("INCR", KEYS[3]), KEYS[1])
end
return v
`)

// Cache stores JSON-encoded responses in Redis.
type Cache struct {
	client  redis.UniversalClient
	prefix  string
	maxSize int
}

// New connects to the Redis server at url (redis://[:password@]host:port/db).
func New(ctx context.Context, url, prefix string, maxSize int) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: redis url: %w", domain.ErrInvalidInput, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}
	return NewWithClient(client, prefix, maxSize), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, prefix string, maxSize int) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Cache{client: client, prefix: prefix, maxSize: maxSize}
}

// Name returns "redis".
func (c *Cache) Name() string {
	return "redis"
}

func (c *Cache) entryKey(key string) string { return c.prefix + "q:" + key }
func (c *Cache) indexKey() string           { return c.prefix + "lru" }
func (c *Cache) seqKey() string             { return c.prefix + "seq" }

// Get returns the response for key. A missing or expired entry is a miss.
func (c *Cache) Get(ctx context.Context, key string) (*domain.QueryResponse, bool, error) {
	raw, err := getScript.Run(ctx, c.client,
		[]string{c.entryKey(key), c.indexKey(), c.seqKey()}).Text()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get: %w", domain.ErrCacheUnavailable, err)
	}

	var resp domain.QueryResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		// A corrupt entry is dropped so the next query repopulates it.
		_ = c.client.Del(ctx, c.entryKey(key)).Err()
		return nil, false, nil
	}
	return &resp, true, nil
}

// Set stores value for ttl and evicts the least recently used entries
// beyond the size bound.
func (c *Cache) Set(ctx context.Context, key string, value *domain.QueryResponse, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	ms := max(ttl.Milliseconds(), 1)

	err = setScript.Run(ctx, c.client,
		[]string{c.entryKey(key), c.indexKey(), c.seqKey()},
		string(data), ms, c.maxSize).Err()
	if err != nil {
		return fmt.Errorf("%w: set: %w", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Clear deletes every key under the prefix.
func (c *Cache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("%w: clear: %w", domain.ErrCacheUnavailable, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: clear: %w", domain.ErrCacheUnavailable, err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("%w: clear: %w", domain.ErrCacheUnavailable, err)
		}
	}
	return nil
}

// Len returns the number of live entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	if _, err := c.Sweep(ctx); err != nil {
		return 0, err
	}
	n, err := c.client.ZCard(ctx, c.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: len: %w", domain.ErrCacheUnavailable, err)
	}
	return int(n), nil
}

// Sweep drops index members whose entries Redis has already expired.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	members, err := c.client.ZRange(ctx, c.indexKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: sweep: %w", domain.ErrCacheUnavailable, err)
	}

	var stale []any
	for _, m := range members {
		n, err := c.client.Exists(ctx, m).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: sweep: %w", domain.ErrCacheUnavailable, err)
		}
		if n == 0 {
			stale = append(stale, m)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := c.client.ZRem(ctx, c.indexKey(), stale...).Err(); err != nil {
		return 0, fmt.Errorf("%w: sweep: %w", domain.ErrCacheUnavailable, err)
	}
	return len(stale), nil
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}

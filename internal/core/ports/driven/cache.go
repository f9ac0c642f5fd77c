package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

// CacheBackend stores query responses by canonical key.
// Implementations bound their size and expire entries after their TTL.
type CacheBackend interface {
	// Name identifies the backend in stats output.
	Name() string

	// Get returns the response for key. Expired entries are misses.
	Get(ctx context.Context, key string) (*domain.QueryResponse, bool, error)

	// Set stores a response for key with the given TTL.
	Set(ctx context.Context, key string, value *domain.QueryResponse, ttl time.Duration) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)

	// Sweep removes expired entries and returns how many were removed.
	Sweep(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

package driven

import (
	"context"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

// MemoryStore persists records for the local memory source.
type MemoryStore interface {
	// SaveMemory creates or replaces a memory by ID.
	SaveMemory(ctx context.Context, m *domain.Memory) error

	// GetMemory returns a memory by ID, or ErrNotFound.
	GetMemory(ctx context.Context, id string) (*domain.Memory, error)

	// SearchMemories returns memories matching the query terms,
	// best matches first.
	SearchMemories(ctx context.Context, query string, limit int) ([]domain.MemoryHit, error)

	// CountMemories returns the number of stored memories.
	CountMemories(ctx context.Context) (int, error)
}

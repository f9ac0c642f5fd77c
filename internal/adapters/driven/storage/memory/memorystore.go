package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// Ensure MemoryStore implements the interface.
var _ driven.MemoryStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory driven.MemoryStore for the local source.
type MemoryStore struct {
	mu       sync.RWMutex
	memories map[string]domain.Memory
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		memories: make(map[string]domain.Memory),
	}
}

// SaveMemory creates or replaces a memory by ID.
func (s *MemoryStore) SaveMemory(_ context.Context, m *domain.Memory) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("%w: memory requires an id", domain.ErrInvalidInput)
	}
	stored := *m
	stored.Metadata = maps.Clone(m.Metadata)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories[m.ID] = stored
	return nil
}

// GetMemory returns a memory by ID, or ErrNotFound.
func (s *MemoryStore) GetMemory(_ context.Context, id string) (*domain.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memories[id]
	if !ok {
		return nil, fmt.Errorf("memory %s: %w", id, domain.ErrNotFound)
	}
	m.Metadata = maps.Clone(m.Metadata)
	return &m, nil
}

// SearchMemories ranks memories by the fraction of query terms they
// contain, newest first on ties.
func (s *MemoryStore) SearchMemories(_ context.Context, query string, limit int) ([]domain.MemoryHit, error) {
	terms := domain.MemoryTerms(query)
	hits := []domain.MemoryHit{}
	if len(terms) == 0 || limit <= 0 {
		return hits, nil
	}

	s.mu.RLock()
	for _, m := range s.memories {
		if score := domain.TermScore(m.Content, terms); score > 0 {
			m.Metadata = maps.Clone(m.Metadata)
			hits = append(hits, domain.MemoryHit{Memory: m, Score: score})
		}
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].Memory.CreatedAt.Equal(hits[j].Memory.CreatedAt) {
			return hits[i].Memory.CreatedAt.After(hits[j].Memory.CreatedAt)
		}
		return hits[i].Memory.ID < hits[j].Memory.ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// CountMemories returns the number of stored memories.
func (s *MemoryStore) CountMemories(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.memories), nil
}

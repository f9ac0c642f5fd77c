// Package local provides an embedded memory source backed by a
// driven.MemoryStore, so memquery can answer queries with no external
// backend running.
package local

import (
	"context"
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.MemorySource = (*Source)(nil)

// Source searches memories held in a local store.
type Source struct {
	name  string
	store driven.MemoryStore
	ready atomic.Bool
}

// New creates a local source over store.
func New(cfg domain.SourceConfig, store driven.MemoryStore) *Source {
	return &Source{name: cfg.Name, store: store}
}

// Name returns the configured source name.
func (s *Source) Name() string {
	return s.name
}

// Initialize checks that the store answers.
func (s *Source) Initialize(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("%s: %w: no memory store", s.name, domain.ErrInvalidInput)
	}
	if _, err := s.store.CountMemories(ctx); err != nil {
		return fmt.Errorf("%s: %w: %w", s.name, domain.ErrSourceUnavailable, err)
	}
	s.ready.Store(true)
	return nil
}

// Shutdown marks the source unusable. The store is owned by the caller.
func (s *Source) Shutdown(_ context.Context) error {
	s.ready.Store(false)
	return nil
}

// Search delegates term matching to the store.
func (s *Source) Search(ctx context.Context, query string, params driven.SearchParams) ([]driven.RawResult, error) {
	if !s.ready.Load() {
		return nil, fmt.Errorf("%s: %w", s.name, domain.ErrNotInitialized)
	}

	hits, err := s.store.SearchMemories(ctx, query, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("%s: search: %w", s.name, err)
	}

	results := make([]driven.RawResult, 0, len(hits))
	for _, h := range hits {
		meta := maps.Clone(h.Memory.Metadata)
		if meta == nil {
			meta = make(map[string]any, 1)
		}
		meta["source"] = s.name
		results = append(results, driven.RawResult{
			ID:        h.Memory.ID,
			Content:   h.Memory.Content,
			Score:     h.Score,
			Metadata:  meta,
			Timestamp: h.Memory.CreatedAt,
		})
	}
	return results, nil
}

// Store saves content under metadata["id"] or a new UUID.
func (s *Source) Store(ctx context.Context, content string, metadata map[string]any) (string, error) {
	if !s.ready.Load() {
		return "", fmt.Errorf("%s: %w", s.name, domain.ErrNotInitialized)
	}

	id, _ := metadata["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}

	m := &domain.Memory{
		ID:        id,
		Content:   content,
		Metadata:  maps.Clone(metadata),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveMemory(ctx, m); err != nil {
		return "", fmt.Errorf("%s: save: %w", s.name, err)
	}
	return id, nil
}

// HealthCheck reports whether the store answers a count.
func (s *Source) HealthCheck(ctx context.Context) bool {
	if !s.ready.Load() {
		return false
	}
	_, err := s.store.CountMemories(ctx)
	return err == nil
}

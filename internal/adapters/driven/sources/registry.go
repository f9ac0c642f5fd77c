// Package sources maps configured source kinds to memory source adapters.
package sources

import (
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.SourceFactory = (*Registry)(nil)

// Registry maps source kinds to their builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[domain.SourceKind]driven.SourceBuilder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[domain.SourceKind]driven.SourceBuilder),
	}
}

// Register adds or replaces the builder for kind.
func (r *Registry) Register(kind domain.SourceKind, builder driven.SourceBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[kind] = builder
}

// Create builds a source for cfg.
// Returns ErrUnsupportedType if the kind is not registered.
func (r *Registry) Create(cfg domain.SourceConfig) (driven.MemorySource, error) {
	r.mu.RLock()
	builder, ok := r.builders[cfg.Kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: source kind %q", domain.ErrUnsupportedType, cfg.Kind)
	}
	return builder(cfg)
}

// SupportedKinds returns the registered kinds, sorted.
func (r *Registry) SupportedKinds() []domain.SourceKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]domain.SourceKind, 0, len(r.builders))
	for kind := range r.builders {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

package sources

import (
	"fmt"

	"github.com/custodia-labs/memquery/internal/adapters/driven/embedding"
	"github.com/custodia-labs/memquery/internal/adapters/driven/sources/cognee"
	"github.com/custodia-labs/memquery/internal/adapters/driven/sources/httpsource"
	"github.com/custodia-labs/memquery/internal/adapters/driven/sources/llamacloud"
	"github.com/custodia-labs/memquery/internal/adapters/driven/sources/local"
	"github.com/custodia-labs/memquery/internal/adapters/driven/sources/memento"
	"github.com/custodia-labs/memquery/internal/adapters/driven/sources/memos"
	"github.com/custodia-labs/memquery/internal/adapters/driven/sources/neo4jgraph"
	"github.com/custodia-labs/memquery/internal/adapters/driven/sources/qdrantvec"
	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// Dependencies are shared by the built-in builders.
type Dependencies struct {
	// MemoryStore backs the local source. Without it the local kind is
	// not registered.
	MemoryStore driven.MemoryStore

	// HTTPOptions apply to every REST source client.
	HTTPOptions []httpsource.Option
}

// RegisterDefaults registers all built-in source kinds.
func RegisterDefaults(r *Registry, deps Dependencies) {
	r.Register(domain.SourceKindCognee, func(cfg domain.SourceConfig) (driven.MemorySource, error) {
		return cognee.New(cfg, deps.HTTPOptions...), nil
	})
	r.Register(domain.SourceKindMemento, func(cfg domain.SourceConfig) (driven.MemorySource, error) {
		return memento.New(cfg, deps.HTTPOptions...), nil
	})
	r.Register(domain.SourceKindMemOS, func(cfg domain.SourceConfig) (driven.MemorySource, error) {
		return memos.New(cfg, deps.HTTPOptions...), nil
	})
	r.Register(domain.SourceKindLlamaCloud, func(cfg domain.SourceConfig) (driven.MemorySource, error) {
		return llamacloud.New(cfg, deps.HTTPOptions...), nil
	})
	r.Register(domain.SourceKindNeo4j, func(cfg domain.SourceConfig) (driven.MemorySource, error) {
		if cfg.URL == "" {
			return nil, fmt.Errorf("%w: %s requires a bolt url", domain.ErrInvalidInput, cfg.Name)
		}
		return neo4jgraph.New(cfg), nil
	})
	r.Register(domain.SourceKindQdrant, func(cfg domain.SourceConfig) (driven.MemorySource, error) {
		if cfg.URL == "" {
			return nil, fmt.Errorf("%w: %s requires an address", domain.ErrInvalidInput, cfg.Name)
		}
		embedder, err := embedding.FromSource(cfg)
		if err != nil {
			return nil, err
		}
		return qdrantvec.New(cfg, embedder), nil
	})
	if deps.MemoryStore != nil {
		store := deps.MemoryStore
		r.Register(domain.SourceKindLocal, func(cfg domain.SourceConfig) (driven.MemorySource, error) {
			return local.New(cfg, store), nil
		})
	}
}

// NewDefaultRegistry returns a registry with all built-in kinds.
func NewDefaultRegistry(deps Dependencies) *Registry {
	r := NewRegistry()
	RegisterDefaults(r, deps)
	return r
}

package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

// SearchParams carries per-call options to a memory source.
type SearchParams struct {
	// Limit is the maximum number of results to return.
	Limit int

	// Filters are forwarded to sources that support filtering.
	Filters map[string]string

	// UserID scopes the search on user-aware sources.
	UserID string
}

// RawResult is a single hit as returned by a memory source, before
// it is attributed to a source and ranked.
type RawResult struct {
	ID         string
	Content    string
	Score      float64
	Metadata   map[string]any
	Highlights []string

	// Timestamp is zero when the backend does not report one.
	Timestamp time.Time
}

// MemorySource is a retrieval backend queried by the orchestrator.
// One implementation exists per backend kind.
type MemorySource interface {
	// Name returns the configured source name.
	Name() string

	// Initialize opens connections. Called once before the first Search.
	Initialize(ctx context.Context) error

	// Shutdown releases connections.
	Shutdown(ctx context.Context) error

	// Search returns hits for the query. Must honour the context deadline.
	Search(ctx context.Context, query string, params SearchParams) ([]RawResult, error)

	// Store saves content in the backend and returns its id.
	Store(ctx context.Context, content string, metadata map[string]any) (string, error)

	// HealthCheck probes the backend. Never panics.
	HealthCheck(ctx context.Context) bool
}

// SourceBuilder creates a MemorySource from its configuration.
type SourceBuilder func(cfg domain.SourceConfig) (MemorySource, error)

// SourceFactory creates memory sources from configuration.
// It maintains a registry of source kinds and their builders.
type SourceFactory interface {
	// Create returns a MemorySource for the given configuration.
	// Returns ErrUnsupportedType if the kind is unknown.
	Create(cfg domain.SourceConfig) (MemorySource, error)

	// Register adds a builder for the given kind.
	Register(kind domain.SourceKind, builder SourceBuilder)

	// SupportedKinds returns all registered kinds.
	SupportedKinds() []domain.SourceKind
}

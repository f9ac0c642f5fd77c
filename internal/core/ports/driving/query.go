package driving

import (
	"context"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

// QueryService runs queries across memory sources.
type QueryService interface {
	// Query fans the request out and returns a merged response.
	// Returns ErrInvalidInput for malformed requests. Source failures
	// are reported in the response metadata, not as errors.
	Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error)

	// Analyze classifies a query without running it.
	Analyze(ctx context.Context, query string) domain.QueryAnalysis

	// Health probes every enabled source.
	Health(ctx context.Context) domain.HealthReport

	// Stats returns process-lifetime query statistics.
	Stats() domain.QueryStats

	// CacheStats returns result cache counters.
	CacheStats(ctx context.Context) domain.CacheStats

	// ClearCache drops all cached responses.
	ClearCache(ctx context.Context) error

	// Store saves content through the named source.
	Store(ctx context.Context, source, content string, metadata map[string]any) (string, error)

	// Sources returns the configured sources in fan-out order.
	Sources() []domain.SourceConfig

	// RankingWeights returns the active hybrid ranking weights.
	RankingWeights() domain.RankingWeights
}

package httpapi

import (
	"context"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driving"
)

// Ensure mockQueryService implements the interface.
var _ driving.QueryService = (*mockQueryService)(nil)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	resp     *domain.QueryResponse
	err      error
	lastReq  domain.QueryRequest
	analysis domain.QueryAnalysis
	health   domain.HealthReport
	stats    domain.QueryStats
	cache    domain.CacheStats
	sources  []domain.SourceConfig
	storedID string

	healthCalls   int
	cleared       bool
	analyzed      string
	storedSource  string
	storedContent string
	storedMeta    map[string]any
}

func (m *mockQueryService) Query(_ context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	m.lastReq = req
	return m.resp, m.err
}

func (m *mockQueryService) Analyze(_ context.Context, query string) domain.QueryAnalysis {
	m.analyzed = query
	return m.analysis
}

func (m *mockQueryService) Health(_ context.Context) domain.HealthReport {
	m.healthCalls++
	return m.health
}

func (m *mockQueryService) Stats() domain.QueryStats {
	return m.stats
}

func (m *mockQueryService) CacheStats(_ context.Context) domain.CacheStats {
	return m.cache
}

func (m *mockQueryService) ClearCache(_ context.Context) error {
	m.cleared = m.err == nil
	return m.err
}

func (m *mockQueryService) Store(_ context.Context, source, content string, metadata map[string]any) (string, error) {
	m.storedSource = source
	m.storedContent = content
	m.storedMeta = metadata
	return m.storedID, m.err
}

func (m *mockQueryService) Sources() []domain.SourceConfig {
	return m.sources
}

func (m *mockQueryService) RankingWeights() domain.RankingWeights {
	return domain.DefaultRankingWeights()
}

// cachingQueryService adds a remembered health report.
type cachingQueryService struct {
	*mockQueryService
	last *domain.HealthReport
}

func (m *cachingQueryService) LastHealth() (domain.HealthReport, bool) {
	if m.last == nil {
		return domain.HealthReport{}, false
	}
	return *m.last, true
}

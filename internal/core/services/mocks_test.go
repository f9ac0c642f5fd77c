package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// --- Mock memory source ---

// mockSource implements driven.MemorySource. searchFn decides each call's
// outcome; queries records every query string it was sent.
type mockSource struct {
	name string

	mu       sync.Mutex
	queries  []string
	searchFn func(ctx context.Context, query string, params driven.SearchParams) ([]driven.RawResult, error)
	healthFn func(ctx context.Context) bool
	initErr  error
	storeErr error
	stored   []string

	calls     atomic.Int32
	inits     atomic.Int32
	shutdowns atomic.Int32
}

func newMockSource(name string, results ...driven.RawResult) *mockSource {
	return &mockSource{
		name: name,
		searchFn: func(context.Context, string, driven.SearchParams) ([]driven.RawResult, error) {
			return results, nil
		},
	}
}

func failingSource(name string, err error) *mockSource {
	return &mockSource{
		name: name,
		searchFn: func(context.Context, string, driven.SearchParams) ([]driven.RawResult, error) {
			return nil, err
		},
	}
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Initialize(_ context.Context) error {
	m.inits.Add(1)
	return m.initErr
}

func (m *mockSource) Shutdown(_ context.Context) error {
	m.shutdowns.Add(1)
	return nil
}

func (m *mockSource) Search(ctx context.Context, query string, params driven.SearchParams) ([]driven.RawResult, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.queries = append(m.queries, query)
	fn := m.searchFn
	m.mu.Unlock()
	return fn(ctx, query, params)
}

func (m *mockSource) Store(_ context.Context, content string, _ map[string]any) (string, error) {
	if m.storeErr != nil {
		return "", m.storeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, content)
	return fmt.Sprintf("%s-mem-%d", m.name, len(m.stored)), nil
}

func (m *mockSource) HealthCheck(ctx context.Context) bool {
	if m.healthFn != nil {
		return m.healthFn(ctx)
	}
	return true
}

func (m *mockSource) sentQueries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// --- Mock source factory ---

// mockFactory implements driven.SourceFactory over a fixed set of sources.
type mockFactory struct {
	sources map[string]*mockSource
	failFor map[string]bool
	created atomic.Int32
}

func newMockFactory(sources ...*mockSource) *mockFactory {
	f := &mockFactory{
		sources: make(map[string]*mockSource),
		failFor: make(map[string]bool),
	}
	for _, s := range sources {
		f.sources[s.name] = s
	}
	return f
}

func (f *mockFactory) Create(cfg domain.SourceConfig) (driven.MemorySource, error) {
	if f.failFor[cfg.Name] {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, cfg.Name)
	}
	src, ok := f.sources[cfg.Name]
	if !ok {
		return nil, errors.New("no mock for " + cfg.Name)
	}
	f.created.Add(1)
	return src, nil
}

func (f *mockFactory) Register(domain.SourceKind, driven.SourceBuilder) {}

func (f *mockFactory) SupportedKinds() []domain.SourceKind {
	return []domain.SourceKind{domain.SourceKindMemento}
}

// --- Mock cache backend ---

// mockCacheBackend implements driven.CacheBackend with a plain map.
type mockCacheBackend struct {
	mu      sync.Mutex
	entries map[string]*domain.QueryResponse
	getErr  error
	setErr  error
	sets    atomic.Int32
}

func newMockCacheBackend() *mockCacheBackend {
	return &mockCacheBackend{entries: make(map[string]*domain.QueryResponse)}
}

func (c *mockCacheBackend) Name() string { return "mock" }

func (c *mockCacheBackend) Get(_ context.Context, key string) (*domain.QueryResponse, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	resp, ok := c.entries[key]
	return resp, ok, nil
}

func (c *mockCacheBackend) Set(_ context.Context, key string, value *domain.QueryResponse, _ time.Duration) error {
	c.sets.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = value
	return nil
}

func (c *mockCacheBackend) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*domain.QueryResponse)
	return nil
}

func (c *mockCacheBackend) Len(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), nil
}

func (c *mockCacheBackend) Sweep(_ context.Context) (int, error) { return 0, nil }

func (c *mockCacheBackend) Close() error { return nil }

// Ensure mocks implement interfaces
var (
	_ driven.MemorySource  = (*mockSource)(nil)
	_ driven.SourceFactory = (*mockFactory)(nil)
	_ driven.CacheBackend  = (*mockCacheBackend)(nil)
)

// --- Helpers ---

func testSourceConfig(name string) domain.SourceConfig {
	return domain.SourceConfig{
		Name:       name,
		Kind:       domain.SourceKindMemento,
		URL:        "http://" + name + ".test",
		Enabled:    true,
		Timeout:    time.Second,
		MaxRetries: 3,
	}
}

func fastRetry() domain.RetrySettings {
	return domain.RetrySettings{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      1.5,
	}
}

// newTestOrchestrator builds and initializes an orchestrator over mock
// sources, one config per source in the given order.
func newTestOrchestrator(sources ...*mockSource) (*QueryOrchestrator, *mockCacheBackend) {
	configs := make([]domain.SourceConfig, len(sources))
	for i, s := range sources {
		configs[i] = testSourceConfig(s.name)
	}
	return newTestOrchestratorWith(configs, sources...)
}

func newTestOrchestratorWith(configs []domain.SourceConfig, sources ...*mockSource) (*QueryOrchestrator, *mockCacheBackend) {
	backend := newMockCacheBackend()
	o := NewQueryOrchestrator(OrchestratorConfig{
		Version:  "test",
		Sources:  configs,
		Weights:  domain.DefaultRankingWeights(),
		Retry:    fastRetry(),
		CacheTTL: time.Minute,
	}, newMockFactory(sources...), NewResultCache(backend, time.Minute))
	_ = o.Initialize(context.Background())
	return o, backend
}

func raw(id, content string, score float64) driven.RawResult {
	return driven.RawResult{ID: id, Content: content, Score: score, Timestamp: time.Now()}
}

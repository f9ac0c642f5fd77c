package services

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
	"github.com/custodia-labs/memquery/internal/core/ports/driving"
	"github.com/custodia-labs/memquery/internal/logger"
)

// Ensure QueryOrchestrator implements the interface.
var _ driving.QueryService = (*QueryOrchestrator)(nil)

// DefaultMaxConcurrency bounds in-flight source calls per fan-out.
const DefaultMaxConcurrency = 50

// OrchestratorConfig holds the orchestrator's tuning.
type OrchestratorConfig struct {
	// ServiceName and Version are reported by health checks.
	ServiceName string
	Version     string

	// Sources is the ordered source table. Order is fan-out order.
	Sources []domain.SourceConfig

	// Weights are the hybrid ranking weights.
	Weights domain.RankingWeights

	// Retry is the per-source backoff between attempts.
	Retry domain.RetrySettings

	// MaxConcurrency bounds in-flight source calls per fan-out.
	MaxConcurrency int

	// QueryTimeout bounds a whole request when positive.
	QueryTimeout time.Duration

	// CacheTTL is the lifetime of cached responses.
	CacheTTL time.Duration
}

// OrchestratorConfigFrom builds orchestrator tuning from app settings.
func OrchestratorConfigFrom(s domain.AppSettings, version string) OrchestratorConfig {
	return OrchestratorConfig{
		ServiceName:    s.Service.Name,
		Version:        version,
		Sources:        s.Sources,
		Weights:        s.Ranking,
		Retry:          s.Retry,
		MaxConcurrency: s.Service.MaxConcurrentQueries,
		QueryTimeout:   s.Service.QueryTimeout,
		CacheTTL:       s.Cache.TTL,
	}
}

// QueryOrchestrator fans queries out to memory sources and merges the
// results. It owns the only cross-request state: the result cache and
// the statistics.
type QueryOrchestrator struct {
	factory  driven.SourceFactory
	cache    *ResultCache
	ranking  *RankingEngine
	analyzer *QueryAnalyzer
	stats    *Statistics
	health   *HealthChecker
	inst     *instruments
	flight   singleflight.Group

	retry          domain.RetrySettings
	maxConcurrency int
	queryTimeout   time.Duration
	cacheTTL       time.Duration

	mu      sync.RWMutex
	configs []domain.SourceConfig
	sources map[string]driven.MemorySource
	weights domain.RankingWeights
}

// NewQueryOrchestrator creates an orchestrator. Call Initialize before
// the first query to create and connect the source adapters.
// A nil cache disables caching.
func NewQueryOrchestrator(cfg OrchestratorConfig, factory driven.SourceFactory, cache *ResultCache) *QueryOrchestrator {
	if cache == nil {
		cache = NewResultCache(nil, cfg.CacheTTL)
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.Retry.InitialInterval <= 0 {
		cfg.Retry.InitialInterval = 2 * time.Second
	}
	if cfg.Retry.MaxInterval <= 0 {
		cfg.Retry.MaxInterval = 10 * time.Second
	}
	if cfg.Retry.Multiplier < 1 {
		cfg.Retry.Multiplier = 2
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "memquery"
	}

	return &QueryOrchestrator{
		factory:        factory,
		cache:          cache,
		ranking:        NewRankingEngine(cfg.Sources),
		analyzer:       NewQueryAnalyzer(),
		stats:          NewStatistics(),
		health:         NewHealthChecker(cfg.ServiceName, cfg.Version),
		inst:           newInstruments(),
		retry:          cfg.Retry,
		maxConcurrency: cfg.MaxConcurrency,
		queryTimeout:   cfg.QueryTimeout,
		cacheTTL:       cfg.CacheTTL,
		configs:        slices.Clone(cfg.Sources),
		sources:        make(map[string]driven.MemorySource),
		weights:        cfg.Weights,
	}
}

// Initialize creates and connects an adapter for every enabled source.
// A source whose adapter cannot be built is skipped; a source that fails
// to connect is kept so its calls and health checks report the failure.
func (o *QueryOrchestrator) Initialize(ctx context.Context) error {
	logger.Section("Initialize Sources")

	o.mu.RLock()
	configs := slices.Clone(o.configs)
	o.mu.RUnlock()

	built := make(map[string]driven.MemorySource)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		if _, dup := built[cfg.Name]; dup {
			logger.Warn("source %s: duplicate name, ignoring later entry", cfg.Name)
			continue
		}
		if src := o.connect(ctx, cfg); src != nil {
			built[cfg.Name] = src
		}
	}

	o.mu.Lock()
	o.sources = built
	o.mu.Unlock()

	logger.Info("initialized %d memory source(s)", len(built))
	return nil
}

// connect builds and initializes one adapter. Returns nil if the
// adapter cannot be built.
func (o *QueryOrchestrator) connect(ctx context.Context, cfg domain.SourceConfig) driven.MemorySource {
	if err := cfg.Validate(); err != nil {
		logger.Warn("source %s: invalid configuration: %v", cfg.Name, err)
		return nil
	}

	src, err := o.factory.Create(cfg)
	if err != nil {
		logger.Warn("source %s: create adapter: %v", cfg.Name, err)
		return nil
	}

	initCtx, cancel := context.WithTimeout(ctx, cfg.EffectiveTimeout())
	defer cancel()
	if err := src.Initialize(initCtx); err != nil {
		logger.Warn("source %s: initialize: %v", cfg.Name, err)
	} else {
		logger.Debug("source %s (%s) ready at %s", cfg.Name, cfg.Kind, cfg.URL)
	}
	return src
}

// Shutdown disconnects every adapter and closes the cache.
func (o *QueryOrchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	sources := o.sources
	o.sources = make(map[string]driven.MemorySource)
	o.mu.Unlock()

	for name, src := range sources {
		if err := src.Shutdown(ctx); err != nil {
			logger.Warn("source %s: shutdown: %v", name, err)
		}
	}
	if err := o.cache.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	return nil
}

// ApplySources replaces the source table. Adapters are created for newly
// enabled sources, rebuilt for changed ones and shut down for disabled or
// removed ones. Unchanged sources keep their connections.
func (o *QueryOrchestrator) ApplySources(ctx context.Context, configs []domain.SourceConfig) {
	o.mu.RLock()
	oldConfigs := make(map[string]domain.SourceConfig, len(o.configs))
	for _, c := range o.configs {
		oldConfigs[c.Name] = c
	}
	current := make(map[string]driven.MemorySource, len(o.sources))
	for k, v := range o.sources {
		current[k] = v
	}
	o.mu.RUnlock()

	next := make(map[string]driven.MemorySource)
	var stale []driven.MemorySource
	for _, cfg := range configs {
		if _, dup := next[cfg.Name]; dup || !cfg.Enabled {
			continue
		}
		if src, ok := current[cfg.Name]; ok && reflect.DeepEqual(oldConfigs[cfg.Name], cfg) {
			next[cfg.Name] = src
			delete(current, cfg.Name)
			continue
		}
		if src := o.connect(ctx, cfg); src != nil {
			next[cfg.Name] = src
		}
	}
	for _, src := range current {
		stale = append(stale, src)
	}

	o.mu.Lock()
	o.configs = slices.Clone(configs)
	o.sources = next
	o.mu.Unlock()
	o.ranking.SetSources(configs)

	for _, src := range stale {
		if err := src.Shutdown(ctx); err != nil {
			logger.Warn("source %s: shutdown: %v", src.Name(), err)
		}
	}
	logger.Info("source table updated: %d active source(s)", len(next))
}

// Query runs a request. Validation errors wrap ErrInvalidInput; source
// failures never fail the request and are listed in the response metadata.
// Identical concurrent requests share one execution, which is detached
// from any single caller: a caller that goes away gets its context error
// while the others still receive the response.
func (o *QueryOrchestrator) Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	mode := req.EffectiveMode()
	opts := req.EffectiveOptions()

	ctx, span := o.inst.tracer.Start(ctx, "memquery.query",
		trace.WithAttributes(attribute.String("memquery.mode", mode.String())))
	defer span.End()

	logger.Section("Query")
	logger.Debug("Query: %q mode=%s sources=%v", req.Query, mode, req.Sources)

	key, err := CacheKey(req)
	if err != nil {
		logger.Warn("cache key: %v", err)
		runCtx, cancel := o.withQueryTimeout(ctx)
		defer cancel()
		resp, _ := o.execute(runCtx, req, mode, opts, start)
		o.inst.recordQuery(ctx, mode.String(), false, time.Since(start))
		return resp, nil
	}

	if cached, ok := o.cache.Get(ctx, key); ok {
		cached.Metadata.CacheHit = true
		span.SetAttributes(attribute.Bool("memquery.cache_hit", true))
		o.inst.recordQuery(ctx, mode.String(), true, time.Since(start))
		logger.Debug("cache hit for %q", req.Query)
		return cached, nil
	}

	ch := o.flight.DoChan(key, func() (any, error) {
		runCtx, cancel := o.withQueryTimeout(context.WithoutCancel(ctx))
		defer cancel()

		resp, outcomes := o.execute(runCtx, req, mode, opts, start)
		if interrupted(runCtx, outcomes) {
			logger.Debug("query %q cut short, response not cached", req.Query)
			return resp, nil
		}
		o.cache.Set(runCtx, key, resp, o.cacheTTL)
		return resp, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("query: %w", ctx.Err())
	}

	resp := res.Val.(*domain.QueryResponse)
	if res.Shared {
		resp = resp.Clone()
	}

	o.inst.recordQuery(ctx, mode.String(), false, time.Since(start))
	return resp, nil
}

// withQueryTimeout bounds ctx by the request timeout when one is set.
func (o *QueryOrchestrator) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.queryTimeout > 0 {
		return context.WithTimeout(ctx, o.queryTimeout)
	}
	return context.WithCancel(ctx)
}

// execute runs the fan-out for a request and builds the response. The
// per-source outcomes are returned alongside it.
func (o *QueryOrchestrator) execute(
	ctx context.Context, req domain.QueryRequest, mode domain.QueryMode, opts domain.QueryOptions, start time.Time,
) (*domain.QueryResponse, []SourceOutcome) {
	targets := o.resolveSources(req.Sources)
	queried := handleNames(targets)

	resp := &domain.QueryResponse{
		Query: req.Query,
		Mode:  mode,
	}

	var (
		outcomes []SourceOutcome
		results  []domain.QueryResult
	)
	switch mode {
	case domain.QueryModeUnified:
		outcomes, results = o.runUnified(ctx, targets, req.Query, opts)
	case domain.QueryModeSequential:
		outcomes, results = o.runSequential(ctx, targets, req.Query, opts)
	case domain.QueryModeParallel:
		outcomes, resp.Grouped = o.runParallel(ctx, targets, req.Query, opts)
	case domain.QueryModeSmart:
		plan := o.planSmart(req.Query, targets)
		queried = handleNames(plan.selected)
		resp.Metadata.Analysis = &plan.analysis
		outcomes, results = o.runSmart(ctx, plan, req.Query, opts)
	}

	if mode.Ranked() {
		resp.Results = o.finalise(results, opts)
		resp.TotalResults = len(resp.Results)
		if !opts.IncludeMetadata {
			stripMetadata(resp.Results)
		}
	} else {
		for _, group := range resp.Grouped {
			resp.TotalResults += len(group)
			if !opts.IncludeMetadata {
				stripMetadata(group)
			}
		}
	}

	latency := time.Since(start)
	resp.ProcessingTime = latency.Seconds()
	resp.SourcesQueried = queried
	resp.Metadata.Timestamp = time.Now().UTC()
	resp.Metadata.RequestID = uuid.NewString()
	resp.Metadata.FailedSources = failedSources(outcomes)

	o.stats.Record(mode, queried, latency, allFailed(outcomes))

	logger.Info("query %s: %d result(s) from %d source(s) in %.3fs (failed: %v)",
		mode, resp.TotalResults, len(queried), resp.ProcessingTime, resp.Metadata.FailedSources)
	return resp, outcomes
}

// resolveSources returns the active sources for a request: the explicit
// names that are configured and enabled, in request order, or every
// active source in configured order. Unknown and disabled names are dropped.
func (o *QueryOrchestrator) resolveSources(names []string) []sourceHandle {
	o.mu.RLock()
	defer o.mu.RUnlock()

	byName := make(map[string]domain.SourceConfig, len(o.configs))
	for _, c := range o.configs {
		if _, ok := byName[c.Name]; !ok {
			byName[c.Name] = c
		}
	}

	var targets []sourceHandle
	add := func(name string) {
		cfg, ok := byName[name]
		src := o.sources[name]
		if !ok || !cfg.Enabled || src == nil {
			return
		}
		targets = append(targets, sourceHandle{cfg: cfg, source: src})
	}

	if len(names) == 0 {
		seen := make(map[string]bool, len(o.configs))
		for _, c := range o.configs {
			if !seen[c.Name] {
				seen[c.Name] = true
				add(c.Name)
			}
		}
		return targets
	}

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if seen[n] {
			continue
		}
		seen[n] = true
		add(n)
	}
	return targets
}

func handleNames(handles []sourceHandle) []string {
	names := make([]string, len(handles))
	for i, h := range handles {
		names[i] = h.cfg.Name
	}
	return names
}

// Analyze classifies a query without running it.
func (o *QueryOrchestrator) Analyze(_ context.Context, query string) domain.QueryAnalysis {
	return o.analyzer.Analyze(query)
}

// Health probes every active source.
func (o *QueryOrchestrator) Health(ctx context.Context) domain.HealthReport {
	return o.health.Check(ctx, o.resolveSources(nil))
}

// LastHealth returns the most recent health report without probing.
func (o *QueryOrchestrator) LastHealth() (domain.HealthReport, bool) {
	return o.health.Last()
}

// Stats returns process-lifetime query statistics.
func (o *QueryOrchestrator) Stats() domain.QueryStats {
	return o.stats.Snapshot(o.cache.HitRate())
}

// CacheStats returns result cache counters.
func (o *QueryOrchestrator) CacheStats(ctx context.Context) domain.CacheStats {
	return o.cache.Stats(ctx)
}

// ClearCache drops all cached responses.
func (o *QueryOrchestrator) ClearCache(ctx context.Context) error {
	if err := o.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	logger.Info("result cache cleared")
	return nil
}

// SweepCache purges expired cache entries.
func (o *QueryOrchestrator) SweepCache(ctx context.Context) (int, error) {
	return o.cache.Sweep(ctx)
}

// Store saves content through the named source.
func (o *QueryOrchestrator) Store(
	ctx context.Context, source, content string, metadata map[string]any,
) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: content must not be empty", domain.ErrInvalidInput)
	}

	o.mu.RLock()
	var (
		cfg   domain.SourceConfig
		known bool
	)
	for _, c := range o.configs {
		if c.Name == source {
			cfg, known = c, true
			break
		}
	}
	src := o.sources[source]
	o.mu.RUnlock()

	if !known {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownSource, source)
	}
	if !cfg.Enabled || src == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrSourceDisabled, source)
	}

	storeCtx, cancel := context.WithTimeout(ctx, cfg.EffectiveTimeout())
	defer cancel()

	id, err := src.Store(storeCtx, content, metadata)
	if err != nil {
		return "", fmt.Errorf("store in %s: %w", source, err)
	}
	logger.Info("stored memory %s in %s", id, source)
	return id, nil
}

// Sources returns the configured sources in fan-out order.
func (o *QueryOrchestrator) Sources() []domain.SourceConfig {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.configs)
}

// RankingWeights returns the active hybrid ranking weights.
func (o *QueryOrchestrator) RankingWeights() domain.RankingWeights {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.weights
}

// SetRankingWeights replaces the hybrid ranking weights.
func (o *QueryOrchestrator) SetRankingWeights(w domain.RankingWeights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	o.weights = w
	o.mu.Unlock()
	return nil
}

// CacheTTL returns the lifetime of cached responses.
func (o *QueryOrchestrator) CacheTTL() time.Duration {
	return o.cache.TTL()
}

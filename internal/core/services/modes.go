package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/logger"
)

// fanOut calls every source concurrently, bounded by the concurrency
// limit. Outcomes are returned in the order of targets.
func (o *QueryOrchestrator) fanOut(
	ctx context.Context, targets []sourceHandle, query string, opts domain.QueryOptions,
) []SourceOutcome {
	outcomes := make([]SourceOutcome, len(targets))

	var g errgroup.Group
	g.SetLimit(o.maxConcurrency)
	for i, h := range targets {
		g.Go(func() error {
			outcomes[i] = o.callSource(ctx, h, query, opts)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// runUnified queries all targets concurrently and merges their results.
func (o *QueryOrchestrator) runUnified(
	ctx context.Context, targets []sourceHandle, query string, opts domain.QueryOptions,
) ([]SourceOutcome, []domain.QueryResult) {
	logger.Debug("unified query across %d source(s)", len(targets))
	outcomes := o.fanOut(ctx, targets, query, opts)
	return outcomes, collect(outcomes)
}

// runSequential queries targets in order. Keywords and entities from each
// successful step are folded into the next step's query. A failed step is
// skipped and the chain continues with the context unchanged.
func (o *QueryOrchestrator) runSequential(
	ctx context.Context, targets []sourceHandle, query string, opts domain.QueryOptions,
) ([]SourceOutcome, []domain.QueryResult) {
	logger.Debug("sequential query across %d source(s)", len(targets))

	var (
		carried  queryContext
		outcomes = make([]SourceOutcome, 0, len(targets))
		results  []domain.QueryResult
	)
	for _, h := range targets {
		q := carried.enhance(query)
		if q != query {
			logger.Debug("sequential step %s: %q", h.cfg.Name, q)
		}

		out := o.callSource(ctx, h, q, opts)
		outcomes = append(outcomes, out)
		if !out.OK() {
			continue
		}
		results = append(results, out.Results...)
		carried.update(out.Results)
	}
	return outcomes, results
}

// runParallel queries all targets concurrently and groups results by
// source. Every target has a group; failed sources have an empty one.
func (o *QueryOrchestrator) runParallel(
	ctx context.Context, targets []sourceHandle, query string, opts domain.QueryOptions,
) ([]SourceOutcome, map[string][]domain.QueryResult) {
	logger.Debug("parallel query across %d source(s)", len(targets))

	outcomes := o.fanOut(ctx, targets, query, opts)
	grouped := make(map[string][]domain.QueryResult, len(outcomes))
	for _, out := range outcomes {
		if out.Results == nil {
			grouped[out.Source] = []domain.QueryResult{}
			continue
		}
		grouped[out.Source] = out.Results
	}
	return outcomes, grouped
}

// smartPlan is the routing decision for a smart query.
type smartPlan struct {
	analysis domain.QueryAnalysis
	selected []sourceHandle
}

// planSmart analyzes the query and selects sources among the targets.
func (o *QueryOrchestrator) planSmart(query string, targets []sourceHandle) smartPlan {
	analysis := o.analyzer.Analyze(query)

	available := make([]domain.SourceConfig, len(targets))
	byName := make(map[string]sourceHandle, len(targets))
	for i, h := range targets {
		available[i] = h.cfg
		byName[h.cfg.Name] = h
	}

	chosen := o.analyzer.SelectSources(analysis, available)
	selected := make([]sourceHandle, 0, len(chosen))
	for _, cfg := range chosen {
		selected = append(selected, byName[cfg.Name])
	}

	return smartPlan{analysis: analysis, selected: selected}
}

// runSmart routes by analysis: sequential when context is needed, unified
// for broad searches, otherwise the primary source first with a unified
// fan-out to the rest when it returns fewer than MaxResults. A failed
// primary counts as zero results.
func (o *QueryOrchestrator) runSmart(
	ctx context.Context, plan smartPlan, query string, opts domain.QueryOptions,
) ([]SourceOutcome, []domain.QueryResult) {
	a := plan.analysis
	logger.Debug("smart query: type=%s complexity=%s mode=%s sources=%d",
		a.QueryType, a.Complexity, a.RecommendedMode, len(plan.selected))

	switch {
	case a.RequiresContext:
		return o.runSequential(ctx, plan.selected, query, opts)
	case a.BroadSearch:
		return o.runUnified(ctx, plan.selected, query, opts)
	}

	if len(plan.selected) == 0 {
		return nil, nil
	}

	primary := o.callSource(ctx, plan.selected[0], query, opts)
	outcomes := []SourceOutcome{primary}
	results := primary.Results

	if len(results) < opts.MaxResults && len(plan.selected) > 1 {
		logger.Debug("smart query: primary %s returned %d result(s), widening", primary.Source, len(results))
		rest, more := o.runUnified(ctx, plan.selected[1:], query, opts)
		outcomes = append(outcomes, rest...)
		results = append(results, more...)
	}
	return outcomes, results
}

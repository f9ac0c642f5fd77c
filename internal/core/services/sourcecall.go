package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
	"github.com/custodia-labs/memquery/internal/logger"
)

// SourceOutcome is the result of calling one memory source: its results
// on success, or the last error once retries are exhausted.
type SourceOutcome struct {
	Source   string
	Results  []domain.QueryResult
	Err      error
	Attempts int
	Latency  time.Duration
}

// OK reports whether the call succeeded.
func (o SourceOutcome) OK() bool {
	return o.Err == nil
}

// sourceHandle pairs a source's configuration with its adapter.
type sourceHandle struct {
	cfg    domain.SourceConfig
	source driven.MemorySource
}

// callSource queries one source with a per-attempt timeout and
// exponential backoff between attempts. It never returns an error;
// failures are reported in the outcome.
func (o *QueryOrchestrator) callSource(
	ctx context.Context, h sourceHandle, query string, opts domain.QueryOptions,
) SourceOutcome {
	name := h.cfg.Name
	start := time.Now()

	ctx, span := o.inst.tracer.Start(ctx, "memquery.source.search",
		trace.WithAttributes(attribute.String("memquery.source", name)))
	defer span.End()

	params := driven.SearchParams{
		Limit:   opts.MaxResults,
		Filters: opts.Filters,
		UserID:  opts.UserID,
	}
	timeout := h.cfg.EffectiveTimeout()
	attempts := 0

	operation := func() ([]driven.RawResult, error) {
		attempts++
		o.inst.recordAttempt(ctx, name)

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		raw, err := h.source.Search(callCtx, query, params)
		if err == nil {
			return raw, nil
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %s after %s: %w", domain.ErrSourceTimeout, name, timeout, err)
		}
		if isPermanent(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	raw, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(o.newBackOff()),
		backoff.WithMaxTries(uint(h.cfg.EffectiveMaxRetries())),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Debug("source %s: attempt %d failed (%v), retrying in %s", name, attempts, err, wait)
		}),
	)

	outcome := SourceOutcome{
		Source:   name,
		Attempts: attempts,
		Latency:  time.Since(start),
	}
	if err != nil {
		outcome.Err = fmt.Errorf("query %s: %w", name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("source %s failed after %d attempt(s): %v", name, attempts, err)
	} else {
		outcome.Results = toQueryResults(name, raw, time.Now())
		span.SetAttributes(attribute.Int("memquery.results", len(outcome.Results)))
		logger.Debug("source %s: %d results in %s", name, len(outcome.Results), outcome.Latency)
	}

	o.inst.recordSource(ctx, name, err != nil, outcome.Latency)
	return outcome
}

func (o *QueryOrchestrator) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.retry.InitialInterval
	b.MaxInterval = o.retry.MaxInterval
	b.Multiplier = o.retry.Multiplier
	b.RandomizationFactor = 0
	return b
}

// isPermanent reports errors that retrying cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrUnsupportedType) ||
		errors.Is(err, domain.ErrNotImplemented) ||
		errors.Is(err, domain.ErrSourceDisabled)
}

// toQueryResults attributes raw hits to a source. Missing timestamps
// become now, scores are clamped to [0,1] and missing IDs are derived
// from the source name and position.
func toQueryResults(source string, raw []driven.RawResult, now time.Time) []domain.QueryResult {
	out := make([]domain.QueryResult, 0, len(raw))
	for i, r := range raw {
		id := r.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", source, i)
		}
		ts := r.Timestamp
		if ts.IsZero() {
			ts = now
		}
		meta := r.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		out = append(out, domain.QueryResult{
			ID:         id,
			Content:    r.Content,
			Source:     source,
			Score:      clamp01(r.Score),
			Metadata:   meta,
			Timestamp:  ts,
			Highlights: r.Highlights,
		})
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

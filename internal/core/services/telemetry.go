package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/custodia-labs/memquery/internal/core/services"

// instruments are the orchestrator's OpenTelemetry metrics. They resolve
// against the global meter provider, which is a no-op until telemetry
// is configured.
type instruments struct {
	tracer         trace.Tracer
	queries        metric.Int64Counter
	sourceCalls    metric.Int64Counter
	sourceFailures metric.Int64Counter
	cacheHits      metric.Int64Counter
	queryDuration  metric.Float64Histogram
	sourceDuration metric.Float64Histogram
}

func newInstruments() *instruments {
	meter := otel.Meter(instrumentationName)
	inst := &instruments{tracer: otel.Tracer(instrumentationName)}

	// Creation only fails on invalid names; failed instruments stay nil
	// and the record helpers skip them.
	inst.queries, _ = meter.Int64Counter("memquery.queries",
		metric.WithDescription("Queries handled"),
		metric.WithUnit("{query}"))
	inst.sourceCalls, _ = meter.Int64Counter("memquery.source.calls",
		metric.WithDescription("Memory source call attempts"),
		metric.WithUnit("{call}"))
	inst.sourceFailures, _ = meter.Int64Counter("memquery.source.failures",
		metric.WithDescription("Memory source calls that failed after retries"),
		metric.WithUnit("{call}"))
	inst.cacheHits, _ = meter.Int64Counter("memquery.cache.hits",
		metric.WithDescription("Queries served from the result cache"),
		metric.WithUnit("{query}"))
	inst.queryDuration, _ = meter.Float64Histogram("memquery.query.duration",
		metric.WithDescription("Query duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30))
	inst.sourceDuration, _ = meter.Float64Histogram("memquery.source.duration",
		metric.WithDescription("Memory source call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30))

	return inst
}

func (i *instruments) recordQuery(ctx context.Context, mode string, cacheHit bool, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("memquery.mode", mode),
		attribute.Bool("memquery.cache_hit", cacheHit),
	)
	if i.queries != nil {
		i.queries.Add(ctx, 1, attrs)
	}
	if cacheHit && i.cacheHits != nil {
		i.cacheHits.Add(ctx, 1, attrs)
	}
	if i.queryDuration != nil {
		i.queryDuration.Record(ctx, d.Seconds(), attrs)
	}
}

func (i *instruments) recordAttempt(ctx context.Context, source string) {
	if i.sourceCalls != nil {
		i.sourceCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("memquery.source", source)))
	}
}

func (i *instruments) recordSource(ctx context.Context, source string, failed bool, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("memquery.source", source))
	if failed && i.sourceFailures != nil {
		i.sourceFailures.Add(ctx, 1, attrs)
	}
	if i.sourceDuration != nil {
		i.sourceDuration.Record(ctx, d.Seconds(), attrs)
	}
}

package httpsource

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/logger"
)

// Base carries the lifecycle shared by REST memory sources. Adapters embed
// it and add Search and Store.
type Base struct {
	*Client
	ready atomic.Bool
}

// NewBase creates the shared lifecycle for cfg.
func NewBase(cfg domain.SourceConfig, opts ...Option) *Base {
	return &Base{Client: New(cfg, opts...)}
}

// Initialize checks the base URL. Connections are opened lazily.
func (b *Base) Initialize(_ context.Context) error {
	u, err := url.Parse(b.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %s has invalid url %q", domain.ErrInvalidInput, b.name, b.baseURL)
	}
	b.ready.Store(true)
	logger.Debug("%s: initialized at %s", b.name, b.baseURL)
	return nil
}

// Shutdown releases idle connections.
func (b *Base) Shutdown(_ context.Context) error {
	b.ready.Store(false)
	b.CloseIdleConnections()
	return nil
}

// Ready returns ErrNotInitialized before Initialize succeeds.
func (b *Base) Ready() error {
	if !b.ready.Load() {
		return fmt.Errorf("%s: %w", b.name, domain.ErrNotInitialized)
	}
	return nil
}

// ParseTimestamp reads RFC 3339 strings and Unix seconds or milliseconds.
// Anything else yields the zero time, which the orchestrator treats as now.
func ParseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts
			}
		}
		if n, err := strconv.ParseFloat(t, 64); err == nil {
			return unixTime(n)
		}
	case float64:
		return unixTime(t)
	case int64:
		return unixTime(float64(t))
	case int:
		return unixTime(float64(t))
	}
	return time.Time{}
}

// unixTime treats values past year 33658 in seconds as milliseconds.
func unixTime(n float64) time.Time {
	if n <= 0 {
		return time.Time{}
	}
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC()
	}
	return time.Unix(int64(n), 0).UTC()
}

// Strings converts a decoded JSON array to a string slice, skipping
// non-string items.
func Strings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

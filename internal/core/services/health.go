package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/logger"
)

// HealthChecker probes memory sources and remembers the last report.
type HealthChecker struct {
	service string
	version string
	started time.Time

	mu   sync.RWMutex
	last *domain.HealthReport
}

// NewHealthChecker creates a health checker. Uptime counts from now.
func NewHealthChecker(service, version string) *HealthChecker {
	return &HealthChecker{
		service: service,
		version: version,
		started: time.Now(),
	}
}

// Check probes every handle concurrently. Each probe is bounded by the
// source's call timeout; panics and timeouts are reported as errors.
func (h *HealthChecker) Check(ctx context.Context, handles []sourceHandle) domain.HealthReport {
	systems := make([]domain.SystemHealth, len(handles))

	var g errgroup.Group
	for i, handle := range handles {
		g.Go(func() error {
			systems[i] = probe(ctx, handle)
			return nil
		})
	}
	_ = g.Wait()

	report := domain.NewHealthReport(h.service, h.version, time.Since(h.started), systems)

	h.mu.Lock()
	h.last = &report
	h.mu.Unlock()

	return report
}

// Last returns the most recent report, if any.
func (h *HealthChecker) Last() (domain.HealthReport, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.last == nil {
		return domain.HealthReport{}, false
	}
	return *h.last, true
}

// Uptime returns time since the checker was created.
func (h *HealthChecker) Uptime() time.Duration {
	return time.Since(h.started)
}

func probe(ctx context.Context, h sourceHandle) (sh domain.SystemHealth) {
	start := time.Now()
	sh = domain.SystemHealth{Name: h.cfg.Name}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("health: %s panicked: %v", h.cfg.Name, r)
			sh.Status = domain.HealthError
			sh.Error = fmt.Sprintf("panic: %v", r)
		}
		sh.Latency = time.Since(start).Seconds()
		sh.LastCheck = time.Now().UTC()
	}()

	probeCtx, cancel := context.WithTimeout(ctx, h.cfg.EffectiveTimeout())
	defer cancel()

	ok := h.source.HealthCheck(probeCtx)
	switch {
	case ok:
		sh.Status = domain.HealthHealthy
	case probeCtx.Err() != nil:
		sh.Status = domain.HealthError
		sh.Error = probeCtx.Err().Error()
	default:
		sh.Status = domain.HealthUnhealthy
	}
	return sh
}

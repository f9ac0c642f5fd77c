package services

import (
	"maps"
	"sync"
	"time"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

// Statistics accumulates process-lifetime query counters.
type Statistics struct {
	mu         sync.Mutex
	total      int64
	failed     int64
	byMode     map[string]int64
	bySource   map[string]int64
	avgLatency float64
}

// NewStatistics creates empty statistics.
func NewStatistics() *Statistics {
	return &Statistics{
		byMode:   make(map[string]int64),
		bySource: make(map[string]int64),
	}
}

// Record adds one completed query. failed marks a query in which every
// queried source failed.
func (s *Statistics) Record(mode domain.QueryMode, sources []string, latency time.Duration, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	if failed {
		s.failed++
	}
	s.byMode[mode.String()]++
	for _, src := range sources {
		s.bySource[src]++
	}
	s.avgLatency += (latency.Seconds() - s.avgLatency) / float64(s.total)
}

// Snapshot returns a copy of the counters. cacheHitRate is supplied by
// the result cache, which owns those counters.
func (s *Statistics) Snapshot(cacheHitRate float64) domain.QueryStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := domain.QueryStats{
		TotalQueries:    s.total,
		FailedQueries:   s.failed,
		QueriesByMode:   maps.Clone(s.byMode),
		QueriesBySource: maps.Clone(s.bySource),
		AverageLatency:  s.avgLatency,
		CacheHitRate:    cacheHitRate,
	}
	if s.total > 0 {
		stats.ErrorRate = float64(s.failed) / float64(s.total)
	}
	return stats
}

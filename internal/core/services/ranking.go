package services

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

// boostRecentFactor scales the recency bonus applied by BoostRecent.
const boostRecentFactor = 0.1

// RankingEngine scores and orders merged query results.
// Source trust is read from the configured sources, falling back to
// the built-in trust table.
type RankingEngine struct {
	mu    sync.RWMutex
	trust map[string]float64
	now   func() time.Time
}

// NewRankingEngine creates a ranking engine for the given sources.
func NewRankingEngine(sources []domain.SourceConfig) *RankingEngine {
	e := &RankingEngine{now: time.Now}
	e.SetSources(sources)
	return e
}

// SetSources replaces the trust table.
func (e *RankingEngine) SetSources(sources []domain.SourceConfig) {
	trust := make(map[string]float64, len(sources))
	for _, src := range sources {
		trust[src.Name] = src.EffectiveTrust()
	}

	e.mu.Lock()
	e.trust = trust
	e.mu.Unlock()
}

// Trust returns the trust score for a source name.
func (e *RankingEngine) Trust(source string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if t, ok := e.trust[source]; ok {
		return t
	}
	return domain.DefaultTrust(source)
}

// Rank returns a new slice ordered by the strategy. The input is not modified.
// Under hybrid ranking each returned result's Score is the composite score.
// All sorts are stable, so ties keep fan-out order.
func (e *RankingEngine) Rank(
	results []domain.QueryResult,
	strategy domain.RankingStrategy,
	weights domain.RankingWeights,
	boostRecent bool,
) []domain.QueryResult {
	out := append([]domain.QueryResult(nil), results...)
	if len(out) == 0 {
		return out
	}

	now := e.now()

	switch strategy {
	case domain.RankingRelevance:
		if boostRecent {
			for i := range out {
				out[i].Score = math.Min(1, out[i].Score*(1+boostRecentFactor*recencyDecay(out[i].Timestamp, now)))
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Score > out[j].Score
		})

	case domain.RankingRecency:
		sort.SliceStable(out, func(i, j int) bool {
			return effectiveTime(out[i].Timestamp, now).After(effectiveTime(out[j].Timestamp, now))
		})

	default:
		for i := range out {
			out[i].Score = e.hybridScore(out[i], weights, now)
		}
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Score > out[j].Score
		})
	}

	return out
}

// HybridScore returns the composite score of a single result.
func (e *RankingEngine) HybridScore(r domain.QueryResult, weights domain.RankingWeights) float64 {
	return e.hybridScore(r, weights, e.now())
}

func (e *RankingEngine) hybridScore(r domain.QueryResult, w domain.RankingWeights, now time.Time) float64 {
	return r.Score*w.Relevance +
		recencyDecay(r.Timestamp, now)*w.Recency +
		e.Trust(r.Source)*w.SourceTrust +
		domain.NeutralPreference*w.UserPreference
}

// recencyDecay is exp(-age/168h). Missing and future timestamps count as now.
func recencyDecay(ts, now time.Time) float64 {
	age := now.Sub(effectiveTime(ts, now)).Hours()
	if age < 0 {
		age = 0
	}
	return math.Exp(-age / domain.RecencyTimeConstantHours)
}

func effectiveTime(ts, now time.Time) time.Time {
	if ts.IsZero() {
		return now
	}
	return ts
}

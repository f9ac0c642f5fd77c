package services

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

var rankNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixedRankingEngine(sources ...domain.SourceConfig) *RankingEngine {
	e := NewRankingEngine(sources)
	e.now = func() time.Time { return rankNow }
	return e
}

func result(id, source string, score float64, age time.Duration) domain.QueryResult {
	return domain.QueryResult{ID: id, Source: source, Content: id, Score: score, Timestamp: rankNow.Add(-age)}
}

func ids(results []domain.QueryResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestRankingEngine_Trust(t *testing.T) {
	custom := domain.SourceConfig{Name: "notes", Trust: 0.65}
	e := newFixedRankingEngine(custom, domain.SourceConfig{Name: "cognee"})

	assert.InDelta(t, 0.65, e.Trust("notes"), 1e-9)
	assert.InDelta(t, domain.DefaultTrust("cognee"), e.Trust("cognee"), 1e-9)
	assert.InDelta(t, domain.UnknownSourceTrust, e.Trust("never-configured"), 1e-9)

	e.SetSources(nil)
	assert.InDelta(t, domain.UnknownSourceTrust, e.Trust("notes"), 1e-9)
}

func TestRankingEngine_Relevance(t *testing.T) {
	e := newFixedRankingEngine()
	in := []domain.QueryResult{
		result("low", "a", 0.2, 0),
		result("high", "b", 0.9, 0),
		result("tie-first", "a", 0.5, 0),
		result("tie-second", "b", 0.5, 0),
	}

	out := e.Rank(in, domain.RankingRelevance, domain.DefaultRankingWeights(), false)

	assert.Equal(t, []string{"high", "tie-first", "tie-second", "low"}, ids(out))
	// Input untouched
	assert.Equal(t, "low", in[0].ID)
	assert.Equal(t, 0.2, out[3].Score)
}

func TestRankingEngine_RelevanceBoostRecent(t *testing.T) {
	e := newFixedRankingEngine()
	in := []domain.QueryResult{
		result("old", "a", 0.5, 365*24*time.Hour),
		result("fresh", "a", 0.5, 0),
		result("capped", "a", 0.99, 0),
	}

	out := e.Rank(in, domain.RankingRelevance, domain.DefaultRankingWeights(), true)

	require.Len(t, out, 3)
	assert.Equal(t, []string{"capped", "fresh", "old"}, ids(out))
	assert.Equal(t, 1.0, out[0].Score)
	assert.InDelta(t, 0.55, out[1].Score, 1e-9)
	assert.Less(t, out[2].Score, 0.5001)
}

func TestRankingEngine_Recency(t *testing.T) {
	e := newFixedRankingEngine()
	undated := domain.QueryResult{ID: "undated", Score: 0.1}
	in := []domain.QueryResult{
		result("week", "a", 0.9, 7*24*time.Hour),
		result("hour", "a", 0.1, time.Hour),
		undated,
	}

	out := e.Rank(in, domain.RankingRecency, domain.DefaultRankingWeights(), false)

	// A missing timestamp counts as now
	assert.Equal(t, []string{"undated", "hour", "week"}, ids(out))
	assert.Equal(t, 0.9, out[2].Score)
}

func TestRankingEngine_Hybrid(t *testing.T) {
	e := newFixedRankingEngine(
		domain.SourceConfig{Name: "trusted", Trust: 1},
		domain.SourceConfig{Name: "shaky", Trust: 0.1},
	)
	in := []domain.QueryResult{
		result("shaky", "shaky", 0.8, 0),
		result("trusted", "trusted", 0.8, 0),
	}
	w := domain.RankingWeights{Relevance: 0.4, Recency: 0.2, SourceTrust: 0.2, UserPreference: 0.2}

	out := e.Rank(in, domain.RankingHybrid, w, false)

	require.Len(t, out, 2)
	assert.Equal(t, "trusted", out[0].ID)
	// 0.8*0.4 + 1*0.2 + 1*0.2 + 0.5*0.2
	assert.InDelta(t, 0.82, out[0].Score, 1e-9)
	assert.InDelta(t, 0.64, out[1].Score, 1e-9)
}

func TestRankingEngine_HybridScore_Decay(t *testing.T) {
	e := newFixedRankingEngine()
	w := domain.RankingWeights{Recency: 1}

	week := result("x", "a", 0, time.Duration(domain.RecencyTimeConstantHours)*time.Hour)
	assert.InDelta(t, math.Exp(-1), e.HybridScore(week, w), 1e-9)

	future := result("y", "a", 0, -24*time.Hour)
	assert.InDelta(t, 1.0, e.HybridScore(future, w), 1e-9)
}

func TestRankingEngine_Empty(t *testing.T) {
	e := newFixedRankingEngine()
	out := e.Rank(nil, domain.RankingHybrid, domain.DefaultRankingWeights(), false)
	assert.Empty(t, out)
}

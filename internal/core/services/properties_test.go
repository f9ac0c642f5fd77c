package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// TestDeduplicateProperties checks dedup is idempotent and never grows.
func TestDeduplicateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	toResults := func(contents []string) []domain.QueryResult {
		out := make([]domain.QueryResult, len(contents))
		for i, c := range contents {
			out[i] = domain.QueryResult{ID: fmt.Sprint(i), Content: c}
		}
		return out
	}

	properties.Property("dedup is idempotent", prop.ForAll(
		func(contents []string) bool {
			once := deduplicate(toResults(contents))
			twice := deduplicate(once)
			if len(once) != len(twice) {
				return false
			}
			for i := range once {
				if once[i].ID != twice[i].ID {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.OneConstOf("a", "A", " a ", "b", "B ", "c", "")),
	))

	properties.Property("dedup never grows and keeps first occurrences in order", prop.ForAll(
		func(contents []string) bool {
			in := toResults(contents)
			out := deduplicate(in)
			if len(out) > len(in) {
				return false
			}
			last := -1
			for _, r := range out {
				var idx int
				_, _ = fmt.Sscan(r.ID, &idx)
				if idx <= last {
					return false
				}
				last = idx
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestHybridScoreProperties checks the composite score stays within the weight sum.
func TestHybridScoreProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	e := newFixedRankingEngine(domain.SourceConfig{Name: "trusted", Trust: 1})

	properties.Property("0 <= hybrid <= sum(weights)", prop.ForAll(
		func(score, ageHours, wRel, wRec, wTrust, wPref float64, source string) bool {
			r := domain.QueryResult{
				Source:    source,
				Score:     score,
				Timestamp: rankNow.Add(-time.Duration(ageHours * float64(time.Hour))),
			}
			w := domain.RankingWeights{Relevance: wRel, Recency: wRec, SourceTrust: wTrust, UserPreference: wPref}
			s := e.HybridScore(r, w)
			return s >= 0 && s <= w.Sum()+1e-9
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(-48, 24*365),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.OneConstOf("trusted", "cognee", "unknown"),
	))

	properties.Property("ranking preserves the result set", prop.ForAll(
		func(scores []float64) bool {
			in := make([]domain.QueryResult, len(scores))
			for i, s := range scores {
				in[i] = domain.QueryResult{ID: fmt.Sprint(i), Score: s, Timestamp: rankNow}
			}
			for _, strategy := range []domain.RankingStrategy{domain.RankingRelevance, domain.RankingRecency, domain.RankingHybrid} {
				out := e.Rank(in, strategy, domain.DefaultRankingWeights(), true)
				if len(out) != len(in) {
					return false
				}
				for i := 1; i < len(out) && strategy != domain.RankingRecency; i++ {
					if out[i-1].Score < out[i].Score {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(0, 1)),
	))

	properties.TestingRun(t)
}

// TestQueryProperties checks response invariants across modes and limits.
func TestQueryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	mk := func(name string, n int) *mockSource {
		results := make([]driven.RawResult, n)
		for i := range results {
			results[i] = raw(fmt.Sprintf("%s-%d", name, i), fmt.Sprintf("%s content %d", name, i), float64(i%10)/10)
		}
		return newMockSource(name, results...)
	}

	properties.Property("ranked responses are bounded by max_results", prop.ForAll(
		func(maxResults, perSource int, mode string) bool {
			o, _ := newTestOrchestrator(mk("cognee", perSource), mk("memento", perSource))
			req := domain.QueryRequest{
				Query:   "property",
				Mode:    domain.QueryMode(mode),
				Options: &domain.QueryOptions{MaxResults: maxResults, Deduplicate: true, IncludeMetadata: true},
			}
			resp, err := o.Query(context.Background(), req)
			if err != nil {
				return false
			}
			return resp.Results != nil &&
				len(resp.Results) <= maxResults &&
				resp.TotalResults == len(resp.Results) &&
				len(resp.Results) == min(maxResults, 2*perSource)
		},
		gen.IntRange(1, domain.MaxMaxResults),
		gen.IntRange(0, 30),
		gen.OneConstOf("unified", "sequential"),
	))

	properties.Property("parallel totals equal the sum of group sizes", prop.ForAll(
		func(a, b int) bool {
			o, _ := newTestOrchestrator(mk("cognee", a), mk("memento", b))
			resp, err := o.Query(context.Background(), domain.QueryRequest{Query: "p", Mode: domain.QueryModeParallel})
			if err != nil {
				return false
			}
			return resp.TotalResults == a+b && len(resp.Grouped) == 2
		},
		gen.IntRange(0, 20),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}

package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"strings"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

// finalise dedups, ranks and truncates merged results. The returned
// slice is never nil.
func (o *QueryOrchestrator) finalise(results []domain.QueryResult, opts domain.QueryOptions) []domain.QueryResult {
	if opts.Deduplicate {
		results = deduplicate(results)
	}
	ranked := o.ranking.Rank(results, opts.RankingStrategy, o.RankingWeights(), opts.BoostRecent)
	if ranked == nil {
		return []domain.QueryResult{}
	}
	if opts.MaxResults > 0 && len(ranked) > opts.MaxResults {
		ranked = ranked[:opts.MaxResults]
	}
	return ranked
}

// deduplicate keeps the first result for each normalised content.
// Content is compared lower-cased with surrounding space trimmed.
func deduplicate(results []domain.QueryResult) []domain.QueryResult {
	seen := make(map[[sha256.Size]byte]struct{}, len(results))
	out := make([]domain.QueryResult, 0, len(results))
	for _, r := range results {
		sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(r.Content))))
		if _, dup := seen[sum]; dup {
			continue
		}
		seen[sum] = struct{}{}
		out = append(out, r)
	}
	return out
}

// collect concatenates successful results in target order.
func collect(outcomes []SourceOutcome) []domain.QueryResult {
	var out []domain.QueryResult
	for _, o := range outcomes {
		out = append(out, o.Results...)
	}
	return out
}

// stripMetadata empties per-result metadata in place.
func stripMetadata(results []domain.QueryResult) {
	for i := range results {
		results[i].Metadata = map[string]any{}
	}
}

// failedSources names the sources whose calls failed, in target order.
func failedSources(outcomes []SourceOutcome) []string {
	var names []string
	for _, o := range outcomes {
		if !o.OK() {
			names = append(names, o.Source)
		}
	}
	return names
}

// allFailed reports whether at least one source was called and none succeeded.
func allFailed(outcomes []SourceOutcome) bool {
	if len(outcomes) == 0 {
		return false
	}
	for _, o := range outcomes {
		if o.OK() {
			return false
		}
	}
	return true
}

// interrupted reports whether a source failed because the request itself
// was cancelled or ran out of time, as opposed to the source misbehaving.
func interrupted(ctx context.Context, outcomes []SourceOutcome) bool {
	if ctx.Err() != nil {
		return true
	}
	for _, o := range outcomes {
		if o.OK() {
			continue
		}
		if errors.Is(o.Err, context.Canceled) ||
			(errors.Is(o.Err, context.DeadlineExceeded) && !errors.Is(o.Err, domain.ErrSourceTimeout)) {
			return true
		}
	}
	return false
}

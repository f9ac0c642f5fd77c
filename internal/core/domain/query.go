package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

const unknownDescription = "Unknown"

// Query limits.
const (
	// MaxQueryLength is the maximum query length in characters.
	MaxQueryLength = 1000

	// DefaultMaxResults is used when a request does not set MaxResults.
	DefaultMaxResults = 10

	// MaxMaxResults is the upper bound accepted for MaxResults.
	MaxMaxResults = 100
)

// QueryMode defines how a query is fanned out across memory sources.
type QueryMode string

// Available query modes.
const (
	// QueryModeUnified queries all sources concurrently and merges the results.
	QueryModeUnified QueryMode = "unified"

	// QueryModeSequential queries sources in order, feeding context forward.
	QueryModeSequential QueryMode = "sequential"

	// QueryModeParallel queries all sources concurrently and keeps results grouped.
	QueryModeParallel QueryMode = "parallel"

	// QueryModeSmart routes the query based on heuristic analysis.
	QueryModeSmart QueryMode = "smart"
)

// IsValid returns true if the query mode is recognised.
func (m QueryMode) IsValid() bool {
	switch m {
	case QueryModeUnified, QueryModeSequential, QueryModeParallel, QueryModeSmart:
		return true
	default:
		return false
	}
}

// Ranked returns true if results for this mode are deduplicated and ranked.
func (m QueryMode) Ranked() bool {
	return m != QueryModeParallel
}

// String returns the string representation.
func (m QueryMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m QueryMode) Description() string {
	switch m {
	case QueryModeUnified:
		return "Unified (all sources, merged ranking)"
	case QueryModeSequential:
		return "Sequential (ordered, context carried forward)"
	case QueryModeParallel:
		return "Parallel (all sources, grouped by source)"
	case QueryModeSmart:
		return "Smart (routed by query analysis)"
	default:
		return unknownDescription
	}
}

// QueryModes returns all supported modes in display order.
func QueryModes() []QueryMode {
	return []QueryMode{QueryModeUnified, QueryModeSequential, QueryModeParallel, QueryModeSmart}
}

// RankingStrategy selects how merged results are ordered.
type RankingStrategy string

// Available ranking strategies.
const (
	// RankingRelevance orders by raw relevance score.
	RankingRelevance RankingStrategy = "relevance"

	// RankingRecency orders by result timestamp, newest first.
	RankingRecency RankingStrategy = "recency"

	// RankingHybrid orders by a weighted composite score.
	RankingHybrid RankingStrategy = "hybrid"
)

// IsValid returns true if the strategy is recognised.
func (s RankingStrategy) IsValid() bool {
	switch s {
	case RankingRelevance, RankingRecency, RankingHybrid:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s RankingStrategy) String() string {
	return string(s)
}

// QueryOptions tunes a single query.
type QueryOptions struct {
	// MaxResults caps the number of ranked results, in [1,100].
	MaxResults int `json:"max_results"`

	// RankingStrategy selects the ordering of merged results.
	RankingStrategy RankingStrategy `json:"ranking_strategy"`

	// Filters are forwarded to sources that support filtering.
	Filters map[string]string `json:"filters,omitempty"`

	// Deduplicate drops results with identical normalised content.
	Deduplicate bool `json:"deduplicate"`

	// BoostRecent favours newer results under relevance ranking.
	BoostRecent bool `json:"boost_recent"`

	// IncludeMetadata keeps per-result metadata in the response.
	IncludeMetadata bool `json:"include_metadata"`

	// UserID scopes the query for user-aware sources.
	UserID string `json:"user_id,omitempty"`
}

// DefaultQueryOptions returns the options used when a request carries none.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		MaxResults:      DefaultMaxResults,
		RankingStrategy: RankingHybrid,
		Deduplicate:     true,
		IncludeMetadata: true,
	}
}

// UnmarshalJSON decodes options over the defaults, so fields absent from
// the input keep their default values.
func (o *QueryOptions) UnmarshalJSON(data []byte) error {
	type plain QueryOptions
	p := plain(DefaultQueryOptions())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = QueryOptions(p)
	return nil
}

// Normalise fills unset fields with defaults.
func (o QueryOptions) Normalise() QueryOptions {
	if o.MaxResults == 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.RankingStrategy == "" {
		o.RankingStrategy = RankingHybrid
	}
	return o
}

// Validate checks option bounds.
func (o QueryOptions) Validate() error {
	if o.MaxResults < 1 || o.MaxResults > MaxMaxResults {
		return fmt.Errorf("%w: max_results must be between 1 and %d, got %d",
			ErrInvalidInput, MaxMaxResults, o.MaxResults)
	}
	if !o.RankingStrategy.IsValid() {
		return fmt.Errorf("%w: unknown ranking strategy %q", ErrInvalidInput, o.RankingStrategy)
	}
	return nil
}

// QueryRequest is a single query against the configured memory sources.
type QueryRequest struct {
	// Query is the search text, 1 to 1000 characters.
	Query string `json:"query"`

	// Mode selects the fan-out strategy. Defaults to smart.
	Mode QueryMode `json:"mode"`

	// Sources optionally restricts the query to the named sources.
	Sources []string `json:"sources,omitempty"`

	// Options tunes ranking and result shape. Nil means defaults.
	Options *QueryOptions `json:"options,omitempty"`
}

// EffectiveMode returns the request mode, defaulting to smart.
func (r QueryRequest) EffectiveMode() QueryMode {
	if r.Mode == "" {
		return QueryModeSmart
	}
	return r.Mode
}

// EffectiveOptions returns normalised options, defaulting when nil.
func (r QueryRequest) EffectiveOptions() QueryOptions {
	if r.Options == nil {
		return DefaultQueryOptions()
	}
	return r.Options.Normalise()
}

// Validate checks the request against the query limits.
func (r QueryRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query must not be empty", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(r.Query); n > MaxQueryLength {
		return fmt.Errorf("%w: query exceeds %d characters (%d)", ErrInvalidInput, MaxQueryLength, n)
	}
	if mode := r.EffectiveMode(); !mode.IsValid() {
		return fmt.Errorf("%w: unknown query mode %q", ErrInvalidInput, mode)
	}
	return r.EffectiveOptions().Validate()
}

// QueryResult is a canonical hit from a memory source.
// Score is rewritten in place by hybrid ranking.
type QueryResult struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Source     string         `json:"source"`
	Score      float64        `json:"score"`
	Metadata   map[string]any `json:"metadata"`
	Timestamp  time.Time      `json:"timestamp"`
	Highlights []string       `json:"highlights,omitempty"`
}

// ResponseMetadata describes how a response was produced.
type ResponseMetadata struct {
	// CacheHit is true when the response was served from the result cache.
	CacheHit bool `json:"cache_hit"`

	// Timestamp is when the response was built.
	Timestamp time.Time `json:"timestamp"`

	// RequestID identifies the request that built the response.
	RequestID string `json:"request_id,omitempty"`

	// FailedSources lists sources that failed after retries.
	FailedSources []string `json:"failed_sources,omitempty"`

	// Analysis is set for smart-mode queries.
	Analysis *QueryAnalysis `json:"analysis,omitempty"`
}

// QueryResponse is the result of an orchestrated query.
// Ranked modes populate Results; parallel mode populates Grouped.
type QueryResponse struct {
	Query          string
	Mode           QueryMode
	Results        []QueryResult
	Grouped        map[string][]QueryResult
	TotalResults   int
	ProcessingTime float64
	SourcesQueried []string
	Metadata       ResponseMetadata
}

// queryResponseWire is the JSON shape shared by the HTTP API and the cache.
type queryResponseWire struct {
	Query          string           `json:"query"`
	Mode           QueryMode        `json:"mode"`
	Results        json.RawMessage  `json:"results"`
	TotalResults   int              `json:"total_results"`
	ProcessingTime float64          `json:"processing_time"`
	SourcesQueried []string         `json:"sources_queried"`
	Metadata       ResponseMetadata `json:"metadata"`
}

// MarshalJSON renders results as a list, or as an object keyed by source
// for parallel responses.
func (r QueryResponse) MarshalJSON() ([]byte, error) {
	var (
		results []byte
		err     error
	)
	if r.Grouped != nil {
		results, err = json.Marshal(r.Grouped)
	} else {
		list := r.Results
		if list == nil {
			list = []QueryResult{}
		}
		results, err = json.Marshal(list)
	}
	if err != nil {
		return nil, err
	}

	sources := r.SourcesQueried
	if sources == nil {
		sources = []string{}
	}

	return json.Marshal(queryResponseWire{
		Query:          r.Query,
		Mode:           r.Mode,
		Results:        results,
		TotalResults:   r.TotalResults,
		ProcessingTime: r.ProcessingTime,
		SourcesQueried: sources,
		Metadata:       r.Metadata,
	})
}

// UnmarshalJSON accepts both the list and the grouped result shapes.
func (r *QueryResponse) UnmarshalJSON(data []byte) error {
	var wire queryResponseWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	r.Query = wire.Query
	r.Mode = wire.Mode
	r.TotalResults = wire.TotalResults
	r.ProcessingTime = wire.ProcessingTime
	r.SourcesQueried = wire.SourcesQueried
	r.Metadata = wire.Metadata
	r.Results = nil
	r.Grouped = nil

	raw := bytes.TrimSpace(wire.Results)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '{' {
		return json.Unmarshal(raw, &r.Grouped)
	}
	return json.Unmarshal(raw, &r.Results)
}

// Clone returns a copy whose slices and maps can be modified
// without affecting the original. Metadata maps are copied one level deep.
func (r *QueryResponse) Clone() *QueryResponse {
	if r == nil {
		return nil
	}

	c := *r
	c.Results = cloneResults(r.Results)
	if r.Grouped != nil {
		c.Grouped = make(map[string][]QueryResult, len(r.Grouped))
		for k, v := range r.Grouped {
			c.Grouped[k] = cloneResults(v)
		}
	}
	c.SourcesQueried = slices.Clone(r.SourcesQueried)
	c.Metadata.FailedSources = slices.Clone(r.Metadata.FailedSources)
	if r.Metadata.Analysis != nil {
		a := *r.Metadata.Analysis
		a.RecommendedSources = slices.Clone(a.RecommendedSources)
		a.FeaturesNeeded = slices.Clone(a.FeaturesNeeded)
		c.Metadata.Analysis = &a
	}
	return &c
}

// cloneResults copies results along with their metadata maps and highlights.
func cloneResults(in []QueryResult) []QueryResult {
	out := slices.Clone(in)
	for i := range out {
		out[i].Metadata = maps.Clone(out[i].Metadata)
		out[i].Highlights = slices.Clone(out[i].Highlights)
	}
	return out
}

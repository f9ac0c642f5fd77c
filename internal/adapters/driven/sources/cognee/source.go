// Package cognee provides a memory source adapter for the Cognee semantic
// graph memory service.
package cognee

import (
	"context"
	"fmt"

	"github.com/custodia-labs/memquery/internal/adapters/driven/sources/httpsource"
	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.MemorySource = (*Source)(nil)

// Cognee API paths.
const (
	searchPath = "/api/search"
	addPath    = "/api/add"
)

// Source queries Cognee's knowledge graph.
type Source struct {
	*httpsource.Base
}

// searchRequest is the Cognee search request format.
type searchRequest struct {
	Query          string `json:"query"`
	Limit          int    `json:"limit"`
	IncludeGraph   bool   `json:"include_graph"`
	SemanticSearch bool   `json:"semantic_search"`
}

// searchResponse is the Cognee search response format.
type searchResponse struct {
	Results []struct {
		ID              string   `json:"id"`
		Content         string   `json:"content"`
		SimilarityScore float64  `json:"similarity_score"`
		GraphDepth      int      `json:"graph_depth"`
		Entities        []any    `json:"entities"`
		Relationships   []any    `json:"relationships"`
		Keywords        []string `json:"keywords"`
		Highlights      []string `json:"highlights"`
		Timestamp       any      `json:"timestamp"`
	} `json:"results"`
}

type addRequest struct {
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata"`
	ProcessGraph bool           `json:"process_graph"`
}

type addResponse struct {
	ID string `json:"id"`
}

// New creates a Cognee source.
func New(cfg domain.SourceConfig, opts ...httpsource.Option) *Source {
	return &Source{Base: httpsource.NewBase(cfg, opts...)}
}

// Search runs a semantic graph search.
func (s *Source) Search(ctx context.Context, query string, params driven.SearchParams) ([]driven.RawResult, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}

	var resp searchResponse
	err := s.PostJSON(ctx, searchPath, searchRequest{
		Query:          query,
		Limit:          params.Limit,
		IncludeGraph:   true,
		SemanticSearch: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	results := make([]driven.RawResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, driven.RawResult{
			ID:      r.ID,
			Content: r.Content,
			Score:   r.SimilarityScore,
			Metadata: map[string]any{
				"source":        s.Name(),
				"graph_depth":   r.GraphDepth,
				"entities":      nonNil(r.Entities),
				"relationships": nonNil(r.Relationships),
				"keywords":      nonNilStrings(r.Keywords),
			},
			Highlights: r.Highlights,
			Timestamp:  httpsource.ParseTimestamp(r.Timestamp),
		})
	}
	return results, nil
}

// Store adds content to the graph.
func (s *Source) Store(ctx context.Context, content string, metadata map[string]any) (string, error) {
	if err := s.Ready(); err != nil {
		return "", err
	}

	var resp addResponse
	if err := s.PostJSON(ctx, addPath, addRequest{
		Content:      content,
		Metadata:     metadata,
		ProcessGraph: true,
	}, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%s: add returned no id", s.Name())
	}
	return resp.ID, nil
}

func nonNil(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

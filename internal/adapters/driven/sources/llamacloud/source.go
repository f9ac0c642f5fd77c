// Package llamacloud provides a memory source adapter for LlamaCloud
// document indexes exposed through MCP tool endpoints.
package llamacloud

import (
	"context"
	"fmt"

	"github.com/custodia-labs/memquery/internal/adapters/driven/sources/httpsource"
	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.MemorySource = (*Source)(nil)

// DefaultIndex is queried when no index option is configured.
const DefaultIndex = "main-docs"

const ingestPath = "/api/ingest"

// Source queries a LlamaCloud index.
type Source struct {
	*httpsource.Base
	index string
}

type queryRequest struct {
	Query   string            `json:"query"`
	TopK    int               `json:"top_k"`
	Filters map[string]string `json:"filters"`
}

type queryResponse struct {
	Results []struct {
		DocID        string   `json:"doc_id"`
		Text         string   `json:"text"`
		Score        float64  `json:"score"`
		DocumentName string   `json:"document_name"`
		Page         int      `json:"page"`
		ChunkID      string   `json:"chunk_id"`
		IndexName    string   `json:"index_name"`
		Highlights   []string `json:"highlights"`
		Timestamp    any      `json:"timestamp"`
	} `json:"results"`
}

type ingestRequest struct {
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	IndexName string         `json:"index_name"`
}

type ingestResponse struct {
	DocumentID string `json:"document_id"`
}

// New creates a LlamaCloud source. The index option selects the index.
func New(cfg domain.SourceConfig, opts ...httpsource.Option) *Source {
	return &Source{
		Base:  httpsource.NewBase(cfg, opts...),
		index: cfg.Option("index", DefaultIndex),
	}
}

// Index returns the queried index name.
func (s *Source) Index() string {
	return s.index
}

// Search calls the index's query tool.
func (s *Source) Search(ctx context.Context, query string, params driven.SearchParams) ([]driven.RawResult, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}

	filters := params.Filters
	if filters == nil {
		filters = map[string]string{}
	}

	var resp queryResponse
	if err := s.PostJSON(ctx, "/mcp/tools/query_"+s.index, queryRequest{
		Query:   query,
		TopK:    params.Limit,
		Filters: filters,
	}, &resp); err != nil {
		return nil, err
	}

	results := make([]driven.RawResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		index := r.IndexName
		if index == "" {
			index = s.index
		}
		results = append(results, driven.RawResult{
			ID:      r.DocID,
			Content: r.Text,
			Score:   r.Score,
			Metadata: map[string]any{
				"source":        s.Name(),
				"document_name": r.DocumentName,
				"page":          r.Page,
				"chunk_id":      r.ChunkID,
				"index_name":    index,
			},
			Highlights: r.Highlights,
			Timestamp:  httpsource.ParseTimestamp(r.Timestamp),
		})
	}
	return results, nil
}

// Store ingests content into the index.
func (s *Source) Store(ctx context.Context, content string, metadata map[string]any) (string, error) {
	if err := s.Ready(); err != nil {
		return "", err
	}

	var resp ingestResponse
	if err := s.PostJSON(ctx, ingestPath, ingestRequest{
		Content:   content,
		Metadata:  metadata,
		IndexName: s.index,
	}, &resp); err != nil {
		return "", err
	}
	if resp.DocumentID == "" {
		return "", fmt.Errorf("%s: ingest returned no document_id", s.Name())
	}
	return resp.DocumentID, nil
}

package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Query           string   `json:"query" jsonschema:"the question or keywords to look up in memory"`
	Mode            string   `json:"mode,omitempty" jsonschema:"unified, sequential, parallel or smart (default smart)"`
	Sources         []string `json:"sources,omitempty" jsonschema:"memory sources to query (default all enabled)"`
	MaxResults      int      `json:"max_results,omitempty" jsonschema:"maximum number of results (default 10, max 100)"`
	RankingStrategy string   `json:"ranking_strategy,omitempty" jsonschema:"relevance, recency or hybrid (default hybrid)"`
	Deduplicate     *bool    `json:"deduplicate,omitempty" jsonschema:"drop results with identical content (default true)"`
	BoostRecent     bool     `json:"boost_recent,omitempty" jsonschema:"favour newer memories under relevance ranking"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Query          string                    `json:"query"`
	Mode           string                    `json:"mode"`
	Results        []ResultOutput            `json:"results,omitempty"`
	Groups         map[string][]ResultOutput `json:"groups,omitempty"`
	TotalResults   int                       `json:"total_results"`
	ProcessingTime float64                   `json:"processing_time"`
	SourcesQueried []string                  `json:"sources_queried"`
	FailedSources  []string                  `json:"failed_sources,omitempty"`
	CacheHit       bool                      `json:"cache_hit"`
}

// ResultOutput represents a single memory.
type ResultOutput struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Source     string         `json:"source"`
	Score      float64        `json:"score"`
	Timestamp  string         `json:"timestamp,omitempty"`
	Highlights []string       `json:"highlights,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// AnalyzeInput is the input schema for the analyze_query tool.
type AnalyzeInput struct {
	Query string `json:"query" jsonschema:"the query to classify"`
}

// AnalyzeOutput is the output schema for the analyze_query tool.
type AnalyzeOutput struct {
	Query              string               `json:"query"`
	Analysis           domain.QueryAnalysis `json:"analysis"`
	RecommendedMode    string               `json:"recommended_mode"`
	RecommendedSources []string             `json:"recommended_sources"`
}

// StoreInput is the input schema for the store_memory tool.
type StoreInput struct {
	Source   string         `json:"source" jsonschema:"the memory source to write to"`
	Content  string         `json:"content" jsonschema:"the text to remember"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"optional metadata stored with the memory"`
}

// StoreOutput is the output schema for the store_memory tool.
type StoreOutput struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query",
		Description: "Query every configured memory source and return ranked, deduplicated memories",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_query",
		Description: "Classify a query and recommend a query mode and memory sources without running it",
	}, s.handleAnalyze)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "store_memory",
		Description: "Store a new memory in one memory source",
	}, s.handleStore)
}

// handleQuery handles the query tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	opts := domain.DefaultQueryOptions()
	if input.MaxResults > 0 {
		opts.MaxResults = input.MaxResults
	}
	if input.RankingStrategy != "" {
		opts.RankingStrategy = domain.RankingStrategy(input.RankingStrategy)
	}
	if input.Deduplicate != nil {
		opts.Deduplicate = *input.Deduplicate
	}
	opts.BoostRecent = input.BoostRecent

	resp, err := s.ports.Query.Query(ctx, domain.QueryRequest{
		Query:   input.Query,
		Mode:    domain.QueryMode(strings.ToLower(input.Mode)),
		Sources: input.Sources,
		Options: &opts,
	})
	if err != nil {
		return nil, QueryOutput{}, err
	}

	output := QueryOutput{
		Query:          resp.Query,
		Mode:           resp.Mode.String(),
		TotalResults:   resp.TotalResults,
		ProcessingTime: resp.ProcessingTime,
		SourcesQueried: resp.SourcesQueried,
		FailedSources:  resp.Metadata.FailedSources,
		CacheHit:       resp.Metadata.CacheHit,
	}
	if output.SourcesQueried == nil {
		output.SourcesQueried = []string{}
	}

	if resp.Grouped != nil {
		output.Groups = make(map[string][]ResultOutput, len(resp.Grouped))
		for name, group := range resp.Grouped {
			output.Groups[name] = toResultOutputs(group)
		}
	} else {
		output.Results = toResultOutputs(resp.Results)
	}

	return nil, output, nil
}

// handleAnalyze handles the analyze_query tool invocation.
func (s *Server) handleAnalyze(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnalyzeInput,
) (*mcp.CallToolResult, AnalyzeOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, AnalyzeOutput{}, fmt.Errorf("%w: query must not be empty", domain.ErrInvalidInput)
	}

	analysis := s.ports.Query.Analyze(ctx, input.Query)
	return nil, AnalyzeOutput{
		Query:              input.Query,
		Analysis:           analysis,
		RecommendedMode:    analysis.RecommendedMode.String(),
		RecommendedSources: analysis.RecommendedSources,
	}, nil
}

// handleStore handles the store_memory tool invocation.
func (s *Server) handleStore(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StoreInput,
) (*mcp.CallToolResult, StoreOutput, error) {
	id, err := s.ports.Query.Store(ctx, input.Source, input.Content, input.Metadata)
	if err != nil {
		return nil, StoreOutput{}, err
	}
	return nil, StoreOutput{ID: id, Source: input.Source}, nil
}

func toResultOutputs(results []domain.QueryResult) []ResultOutput {
	out := make([]ResultOutput, len(results))
	for i, r := range results {
		out[i] = ResultOutput{
			ID:         r.ID,
			Content:    r.Content,
			Source:     r.Source,
			Score:      r.Score,
			Highlights: r.Highlights,
			Metadata:   r.Metadata,
		}
		if !r.Timestamp.IsZero() {
			out[i].Timestamp = r.Timestamp.UTC().Format(time.RFC3339)
		}
	}
	return out
}

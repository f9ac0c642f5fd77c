package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

func newTestServer(t *testing.T, q *mockQueryService) *Server {
	t.Helper()
	server, err := NewServer(&Ports{Query: q}, "test")
	require.NoError(t, err)
	return server
}

func TestServer_handleQuery(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("returns ranked results", func(t *testing.T) {
		q := &mockQueryService{resp: &domain.QueryResponse{
			Query: "deploy",
			Mode:  domain.QueryModeUnified,
			Results: []domain.QueryResult{{
				ID:         "m1",
				Content:    "deploy runbook",
				Source:     "cognee",
				Score:      0.9,
				Timestamp:  ts,
				Highlights: []string{"deploy"},
				Metadata:   map[string]any{"source": "cognee"},
			}},
			TotalResults:   1,
			SourcesQueried: []string{"cognee", "memento"},
			Metadata:       domain.ResponseMetadata{FailedSources: []string{"memento"}},
		}}
		server := newTestServer(t, q)

		_, out, err := server.handleQuery(ctx, nil, QueryInput{
			Query: "deploy", Mode: "Unified", MaxResults: 5, RankingStrategy: "recency",
		})
		require.NoError(t, err)

		assert.Equal(t, domain.QueryModeUnified, q.lastReq.Mode)
		require.NotNil(t, q.lastReq.Options)
		assert.Equal(t, 5, q.lastReq.Options.MaxResults)
		assert.Equal(t, domain.RankingRecency, q.lastReq.Options.RankingStrategy)
		assert.True(t, q.lastReq.Options.Deduplicate)

		assert.Equal(t, "unified", out.Mode)
		require.Len(t, out.Results, 1)
		assert.Equal(t, "m1", out.Results[0].ID)
		assert.Equal(t, "2025-03-01T12:00:00Z", out.Results[0].Timestamp)
		assert.Equal(t, []string{"memento"}, out.FailedSources)
		assert.Nil(t, out.Groups)
	})

	t.Run("parallel responses are grouped", func(t *testing.T) {
		q := &mockQueryService{resp: &domain.QueryResponse{
			Mode: domain.QueryModeParallel,
			Grouped: map[string][]domain.QueryResult{
				"cognee":  {{ID: "a", Source: "cognee"}},
				"memento": {},
			},
			TotalResults: 1,
		}}
		server := newTestServer(t, q)

		_, out, err := server.handleQuery(ctx, nil, QueryInput{Query: "x", Mode: "parallel"})
		require.NoError(t, err)

		assert.Empty(t, out.Results)
		assert.Len(t, out.Groups["cognee"], 1)
		assert.Empty(t, out.Groups["memento"])
		assert.Equal(t, []string{}, out.SourcesQueried)
	})

	t.Run("dedup can be turned off", func(t *testing.T) {
		q := &mockQueryService{resp: &domain.QueryResponse{Mode: domain.QueryModeUnified}}
		server := newTestServer(t, q)
		off := false

		_, _, err := server.handleQuery(ctx, nil, QueryInput{Query: "x", Deduplicate: &off, BoostRecent: true})
		require.NoError(t, err)

		require.NotNil(t, q.lastReq.Options)
		assert.False(t, q.lastReq.Options.Deduplicate)
		assert.True(t, q.lastReq.Options.BoostRecent)
		assert.True(t, q.lastReq.Options.IncludeMetadata)
	})

	t.Run("returns error on invalid request", func(t *testing.T) {
		q := &mockQueryService{err: domain.ErrInvalidInput}
		server := newTestServer(t, q)

		_, _, err := server.handleQuery(ctx, nil, QueryInput{Query: ""})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestServer_handleAnalyze(t *testing.T) {
	ctx := context.Background()
	q := &mockQueryService{analysis: domain.QueryAnalysis{
		QueryType:          domain.QueryTypeExplanatory,
		RequiresContext:    true,
		RecommendedMode:    domain.QueryModeSequential,
		RecommendedSources: []string{"cognee"},
	}}
	server := newTestServer(t, q)

	_, out, err := server.handleAnalyze(ctx, nil, AnalyzeInput{Query: "why did it fail"})
	require.NoError(t, err)
	assert.Equal(t, "sequential", out.RecommendedMode)
	assert.Equal(t, []string{"cognee"}, out.RecommendedSources)
	assert.True(t, out.Analysis.RequiresContext)

	_, _, err = server.handleAnalyze(ctx, nil, AnalyzeInput{Query: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestServer_handleStore(t *testing.T) {
	ctx := context.Background()

	t.Run("stores through the query service", func(t *testing.T) {
		q := &mockQueryService{storedID: "mem-1"}
		server := newTestServer(t, q)

		_, out, err := server.handleStore(ctx, nil, StoreInput{Source: "local", Content: "note"})
		require.NoError(t, err)
		assert.Equal(t, StoreOutput{ID: "mem-1", Source: "local"}, out)
		assert.Equal(t, "local", q.storedSource)
		assert.Equal(t, "note", q.storedContent)
	})

	t.Run("propagates errors", func(t *testing.T) {
		server := newTestServer(t, &mockQueryService{err: domain.ErrUnknownSource})

		_, _, err := server.handleStore(ctx, nil, StoreInput{Source: "nope", Content: "x"})
		assert.ErrorIs(t, err, domain.ErrUnknownSource)
	})
}

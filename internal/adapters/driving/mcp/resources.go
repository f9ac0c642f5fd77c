package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for memquery resources.
	uriScheme = "memquery://"

	statsURI   = uriScheme + "stats"
	sourcesURI = uriScheme + "sources"
	healthURI  = uriScheme + "health"
)

// StatsResource is the body of the stats resource.
type StatsResource struct {
	QueryStats domain.QueryStats `json:"query_stats"`
	CacheStats domain.CacheStats `json:"cache_stats"`
}

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         statsURI,
		Name:        "stats",
		Description: "Query and cache statistics since the server started",
		MIMEType:    "application/json",
	}, s.handleStatsResource)

	s.server.AddResource(&mcp.Resource{
		URI:         sourcesURI,
		Name:        "sources",
		Description: "Configured memory sources in fan-out order",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)

	s.server.AddResource(&mcp.Resource{
		URI:         healthURI,
		Name:        "health",
		Description: "Health of every enabled memory source",
		MIMEType:    "application/json",
	}, s.handleHealthResource)
}

// handleStatsResource returns query and cache statistics.
func (s *Server) handleStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, StatsResource{
		QueryStats: s.ports.Query.Stats(),
		CacheStats: s.ports.Query.CacheStats(ctx),
	})
}

// handleSourcesResource returns the configured sources without secrets.
func (s *Server) handleSourcesResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	sources := s.ports.Query.Sources()
	infos := make([]domain.SourceConfig, len(sources))
	for i, src := range sources {
		infos[i] = src.Redacted()
	}
	return jsonResource(req.Params.URI, infos)
}

// handleHealthResource probes every enabled source.
func (s *Server) handleHealthResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, s.ports.Query.Health(ctx))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

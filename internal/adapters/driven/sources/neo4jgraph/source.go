// Package neo4jgraph provides a memory source that reads and writes Memory
// nodes in a Neo4j graph directly over Bolt.
package neo4jgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
	"github.com/custodia-labs/memquery/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.MemorySource = (*Source)(nil)

// Defaults for connection options.
const (
	DefaultUsername = "neo4j"
	DefaultDatabase = "neo4j"
)

// searchCypher scores Memory nodes by how many query terms their content
// contains and collects their direct neighbours.
const searchCypher = `
MATCH (m:Memory)
WITH m, size([t IN $terms WHERE toLower(m.content) CONTAINS t]) AS hits
WHERE hits > 0
OPTIONAL MATCH (m)-[r]-(n)
RETURN m.id AS id, m.content AS content, m.created_at AS created_at, hits,
       collect(DISTINCT type(r)) AS relationships,
       collect(DISTINCT coalesce(n.name, n.id)) AS entities
ORDER BY hits DESC, created_at DESC
LIMIT $limit`

const storeCypher = `
CREATE (m:Memory {id: $id, content: $content, created_at: $created_at, metadata: $metadata})
RETURN m.id AS id`

// runner executes Cypher and returns the records as maps.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any, mode neo4j.AccessMode) ([]map[string]any, error)
	Verify(ctx context.Context) error
	Close(ctx context.Context) error
}

// Source queries Memory nodes in Neo4j.
type Source struct {
	cfg       domain.SourceConfig
	newRunner func(cfg domain.SourceConfig) (runner, error)

	mu     sync.RWMutex
	runner runner
}

// New creates a Neo4j source. Options: username, password (or the api
// key), database.
func New(cfg domain.SourceConfig) *Source {
	return &Source{cfg: cfg, newRunner: newDriverRunner}
}

// Name returns the configured source name.
func (s *Source) Name() string {
	return s.cfg.Name
}

// Initialize opens the driver and verifies connectivity.
func (s *Source) Initialize(ctx context.Context) error {
	r, err := s.newRunner(s.cfg)
	if err != nil {
		return fmt.Errorf("%s: create driver: %w", s.cfg.Name, err)
	}
	if err := r.Verify(ctx); err != nil {
		_ = r.Close(ctx)
		return fmt.Errorf("%s: %w: %w", s.cfg.Name, domain.ErrSourceUnavailable, err)
	}

	s.mu.Lock()
	s.runner = r
	s.mu.Unlock()
	logger.Debug("%s: connected to %s", s.cfg.Name, s.cfg.URL)
	return nil
}

// Shutdown closes the driver.
func (s *Source) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	r := s.runner
	s.runner = nil
	s.mu.Unlock()

	if r == nil {
		return nil
	}
	return r.Close(ctx)
}

// Search matches query terms against Memory content. The score is the
// fraction of terms found.
func (s *Source) Search(ctx context.Context, query string, params driven.SearchParams) ([]driven.RawResult, error) {
	r, err := s.active()
	if err != nil {
		return nil, err
	}

	terms := domain.MemoryTerms(query)
	if len(terms) == 0 {
		return []driven.RawResult{}, nil
	}

	rows, err := r.Run(ctx, searchCypher, map[string]any{
		"terms": terms,
		"limit": int64(params.Limit),
	}, neo4j.AccessModeRead)
	if err != nil {
		return nil, fmt.Errorf("%s: search: %w: %w", s.cfg.Name, domain.ErrSourceUnavailable, err)
	}

	results := make([]driven.RawResult, 0, len(rows))
	for _, row := range rows {
		id, _ := row["id"].(string)
		content, _ := row["content"].(string)
		hits, _ := row["hits"].(int64)

		var ts time.Time
		if ms, ok := row["created_at"].(int64); ok && ms > 0 {
			ts = time.UnixMilli(ms).UTC()
		}

		results = append(results, driven.RawResult{
			ID:      id,
			Content: content,
			Score:   float64(hits) / float64(len(terms)),
			Metadata: map[string]any{
				"source":        s.cfg.Name,
				"entities":      stringList(row["entities"]),
				"relationships": stringList(row["relationships"]),
				"graph_depth":   1,
			},
			Timestamp: ts,
		})
	}
	return results, nil
}

// Store creates a Memory node with a new UUID. Metadata is kept as a JSON
// string property because Neo4j cannot store nested maps.
func (s *Source) Store(ctx context.Context, content string, metadata map[string]any) (string, error) {
	r, err := s.active()
	if err != nil {
		return "", err
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("%s: %w: metadata: %w", s.cfg.Name, domain.ErrInvalidInput, err)
	}

	id := uuid.NewString()
	_, err = r.Run(ctx, storeCypher, map[string]any{
		"id":         id,
		"content":    content,
		"created_at": time.Now().UnixMilli(),
		"metadata":   string(meta),
	}, neo4j.AccessModeWrite)
	if err != nil {
		return "", fmt.Errorf("%s: store: %w: %w", s.cfg.Name, domain.ErrSourceUnavailable, err)
	}
	return id, nil
}

// HealthCheck verifies connectivity.
func (s *Source) HealthCheck(ctx context.Context) bool {
	r, err := s.active()
	if err != nil {
		return false
	}
	return r.Verify(ctx) == nil
}

func (s *Source) active() (runner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.runner == nil {
		return nil, fmt.Errorf("%s: %w", s.cfg.Name, domain.ErrNotInitialized)
	}
	return s.runner, nil
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// driverRunner runs Cypher through a neo4j driver session per call.
type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func newDriverRunner(cfg domain.SourceConfig) (runner, error) {
	password := cfg.Option("password", cfg.APIKey)
	driver, err := neo4j.NewDriverWithContext(
		cfg.URL,
		neo4j.BasicAuth(cfg.Option("username", DefaultUsername), password, ""),
	)
	if err != nil {
		return nil, err
	}
	return &driverRunner{driver: driver, database: cfg.Option("database", DefaultDatabase)}, nil
}

func (d *driverRunner) Run(
	ctx context.Context,
	cypher string,
	params map[string]any,
	mode neo4j.AccessMode,
) ([]map[string]any, error) {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: d.database,
		AccessMode:   mode,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	for result.Next(ctx) {
		rows = append(rows, result.Record().AsMap())
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *driverRunner) Verify(ctx context.Context) error {
	return d.driver.VerifyConnectivity(ctx)
}

func (d *driverRunner) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

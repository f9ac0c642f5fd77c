// Package memento provides a memory source adapter for the Memento
// key-value memory service.
package memento

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/custodia-labs/memquery/internal/adapters/driven/sources/httpsource"
	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.MemorySource = (*Source)(nil)

// Memento API paths.
const (
	searchPath = "/search"
	storePath  = "/store"
)

// Source queries Memento's key-value store.
type Source struct {
	*httpsource.Base
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Memories []struct {
		Key       string   `json:"key"`
		Value     string   `json:"value"`
		Relevance float64  `json:"relevance"`
		Timestamp any      `json:"timestamp"`
		Tags      []string `json:"tags"`
	} `json:"memories"`
}

type storeRequest struct {
	Key      string         `json:"key"`
	Value    string         `json:"value"`
	Metadata map[string]any `json:"metadata"`
}

// New creates a Memento source.
func New(cfg domain.SourceConfig, opts ...httpsource.Option) *Source {
	return &Source{Base: httpsource.NewBase(cfg, opts...)}
}

// Search looks up memories by relevance.
func (s *Source) Search(ctx context.Context, query string, params driven.SearchParams) ([]driven.RawResult, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := s.PostJSON(ctx, searchPath, searchRequest{Query: query, Limit: params.Limit}, &resp); err != nil {
		return nil, err
	}

	results := make([]driven.RawResult, 0, len(resp.Memories))
	for _, m := range resp.Memories {
		tags := m.Tags
		if tags == nil {
			tags = []string{}
		}
		results = append(results, driven.RawResult{
			ID:      m.Key,
			Content: m.Value,
			Score:   m.Relevance,
			Metadata: map[string]any{
				"source":    s.Name(),
				"timestamp": m.Timestamp,
				"tags":      tags,
				"keywords":  tags,
			},
			Timestamp: httpsource.ParseTimestamp(m.Timestamp),
		})
	}
	return results, nil
}

// Store saves content under metadata["key"], or under a key derived from
// the content hash. Returns the key.
func (s *Source) Store(ctx context.Context, content string, metadata map[string]any) (string, error) {
	if err := s.Ready(); err != nil {
		return "", err
	}

	key, _ := metadata["key"].(string)
	if key == "" {
		key = ContentKey(content)
	}

	if err := s.PostJSON(ctx, storePath, storeRequest{Key: key, Value: content, Metadata: metadata}, nil); err != nil {
		return "", err
	}
	return key, nil
}

// ContentKey derives a stable key from content.
func ContentKey(content string) string {
	sum := sha256.Sum256([]byte(content))
	return "memory_" + hex.EncodeToString(sum[:8])
}

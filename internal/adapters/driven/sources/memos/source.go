// Package memos provides a memory source adapter for MemOS, which serves
// textual and activation memories per user.
package memos

import (
	"context"
	"fmt"

	"github.com/custodia-labs/memquery/internal/adapters/driven/sources/httpsource"
	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.MemorySource = (*Source)(nil)

// MemOS API paths.
const (
	searchPath = "/api/search"
	addPath    = "/api/add"
)

// DefaultUserID scopes searches when neither the request nor the
// configuration names a user.
const DefaultUserID = "default"

// Memory types reported in result metadata.
const (
	MemoryTypeText       = "text"
	MemoryTypeActivation = "activation"
)

// Source queries MemOS memory cubes.
type Source struct {
	*httpsource.Base
	userID string
}

type searchRequest struct {
	Query       string   `json:"query"`
	UserID      string   `json:"user_id"`
	Limit       int      `json:"limit"`
	MemoryTypes []string `json:"memory_types"`
}

type searchResponse struct {
	TextMem []struct {
		ID        string  `json:"id"`
		Content   string  `json:"content"`
		Score     float64 `json:"score"`
		CubeID    string  `json:"cube_id"`
		Timestamp any     `json:"timestamp"`
	} `json:"text_mem"`
	ActMem []struct {
		ID            string  `json:"id"`
		Summary       string  `json:"summary"`
		Score         float64 `json:"score"`
		KVData        any     `json:"kv_data"`
		ContextLength int     `json:"context_length"`
	} `json:"act_mem"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type addRequest struct {
	Messages []message      `json:"messages"`
	UserID   string         `json:"user_id"`
	Metadata map[string]any `json:"metadata"`
}

type addResponse struct {
	MemoryID string `json:"memory_id"`
}

// New creates a MemOS source. The user_id option sets the default user.
func New(cfg domain.SourceConfig, opts ...httpsource.Option) *Source {
	return &Source{
		Base:   httpsource.NewBase(cfg, opts...),
		userID: cfg.Option("user_id", DefaultUserID),
	}
}

// Search queries text and activation memories. Text memories come first.
func (s *Source) Search(ctx context.Context, query string, params driven.SearchParams) ([]driven.RawResult, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}

	var resp searchResponse
	err := s.PostJSON(ctx, searchPath, searchRequest{
		Query:       query,
		UserID:      s.user(params.UserID),
		Limit:       params.Limit,
		MemoryTypes: []string{"text_mem", "act_mem"},
	}, &resp)
	if err != nil {
		return nil, err
	}

	results := make([]driven.RawResult, 0, len(resp.TextMem)+len(resp.ActMem))
	for _, m := range resp.TextMem {
		results = append(results, driven.RawResult{
			ID:      m.ID,
			Content: m.Content,
			Score:   m.Score,
			Metadata: map[string]any{
				"source":      s.Name(),
				"memory_type": MemoryTypeText,
				"cube_id":     m.CubeID,
			},
			Timestamp: httpsource.ParseTimestamp(m.Timestamp),
		})
	}
	for _, m := range resp.ActMem {
		results = append(results, driven.RawResult{
			ID:      m.ID,
			Content: m.Summary,
			Score:   m.Score,
			Metadata: map[string]any{
				"source":         s.Name(),
				"memory_type":    MemoryTypeActivation,
				"kv_data":        m.KVData,
				"context_length": m.ContextLength,
			},
		})
	}
	return results, nil
}

// Store adds content as a system message for the configured user.
// metadata["user_id"] overrides the user.
func (s *Source) Store(ctx context.Context, content string, metadata map[string]any) (string, error) {
	if err := s.Ready(); err != nil {
		return "", err
	}

	userID, _ := metadata["user_id"].(string)
	var resp addResponse
	if err := s.PostJSON(ctx, addPath, addRequest{
		Messages: []message{{Role: "system", Content: content}},
		UserID:   s.user(userID),
		Metadata: metadata,
	}, &resp); err != nil {
		return "", err
	}
	if resp.MemoryID == "" {
		return "", fmt.Errorf("%s: add returned no memory_id", s.Name())
	}
	return resp.MemoryID, nil
}

func (s *Source) user(requested string) string {
	if requested != "" {
		return requested
	}
	return s.userID
}

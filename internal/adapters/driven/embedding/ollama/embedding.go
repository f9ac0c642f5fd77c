// Package ollama embeds text with a local Ollama server.
package ollama

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/memquery/internal/adapters/driven/sources/httpsource"
	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768 // nomic-embed-text
)

// Config configures the service. Zero values take the defaults.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

// EmbeddingService calls /api/embed once per text.
type EmbeddingService struct {
	api        *httpsource.Client
	model      string
	dimensions int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func NewEmbeddingService(cfg Config) *EmbeddingService {
	return &EmbeddingService{
		api: httpsource.New(
			domain.SourceConfig{Name: "ollama", URL: cmp.Or(cfg.BaseURL, DefaultBaseURL)},
			httpsource.WithHTTPClient(&http.Client{Timeout: cmp.Or(cfg.Timeout, DefaultTimeout)}),
		),
		model:      cmp.Or(cfg.Model, DefaultModel),
		dimensions: cmp.Or(cfg.Dimensions, DefaultDimensions),
	}
}

// Embed rejects vectors of the wrong size since they could not be stored
// in the collection.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	if err := s.api.PostJSON(ctx, "/api/embed", embedRequest{Model: s.model, Input: []string{text}}, &resp); err != nil {
		return nil, classify(err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama: %w: empty embed response", domain.ErrSourceUnavailable)
	}

	raw := resp.Embeddings[0]
	if len(raw) != s.dimensions {
		return nil, fmt.Errorf("%w: ollama %s gave %d dimensions, want %d",
			domain.ErrInvalidInput, s.model, len(raw), s.dimensions)
	}
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (s *EmbeddingService) Dimensions() int { return s.dimensions }

func (s *EmbeddingService) ModelName() string { return s.model }

// Ping lists local models via /api/tags.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return classify(s.api.GetJSON(ctx, "/api/tags", nil))
}

func (s *EmbeddingService) Close() error {
	s.api.CloseIdleConnections()
	return nil
}

// classify reports an unpulled model (404) as misconfiguration.
func classify(err error) error {
	if errors.Is(err, domain.ErrNotImplemented) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return err
}

// Package openai embeds text through the OpenAI embeddings API or any
// server that speaks the same protocol.
package openai

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/memquery/internal/adapters/driven/sources/httpsource"
	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second

	fallbackDimensions = 1536
)

// nativeDimensions are the vector sizes models produce unshortened.
var nativeDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config configures the service. Only APIKey is required.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// Dimensions shortens text-embedding-3 vectors. Other models must
	// produce exactly this many dimensions.
	Dimensions int
}

// EmbeddingService requests one embedding per call.
type EmbeddingService struct {
	api        *httpsource.Client
	model      string
	dimensions int
	shortens   bool
}

type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// NewEmbeddingService returns ErrInvalidInput without an API key.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai embeddings require an api key", domain.ErrInvalidInput)
	}
	model := cmp.Or(cfg.Model, DefaultModel)
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = nativeDimensions[model]
		if dims == 0 {
			dims = fallbackDimensions
		}
	}

	api := httpsource.New(
		domain.SourceConfig{Name: "openai", URL: cmp.Or(cfg.BaseURL, DefaultBaseURL), APIKey: cfg.APIKey},
		httpsource.WithHTTPClient(&http.Client{Timeout: cmp.Or(cfg.Timeout, DefaultTimeout)}),
	)
	return &EmbeddingService{
		api:        api,
		model:      model,
		dimensions: dims,
		shortens:   strings.HasPrefix(model, "text-embedding-3-"),
	}, nil
}

func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	req := embeddingsRequest{Model: s.model, Input: []string{text}}
	if s.shortens {
		req.Dimensions = s.dimensions
	}

	var resp embeddingsResponse
	if err := s.api.PostJSON(ctx, "/embeddings", req, &resp); err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai: %w: empty embeddings response", domain.ErrSourceUnavailable)
	}

	raw := resp.Data[0].Embedding
	if len(raw) != s.dimensions {
		return nil, fmt.Errorf("%w: openai %s gave %d dimensions, want %d",
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

// Ping lists models, which checks the key without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return classify(s.api.GetJSON(ctx, "/models", nil))
}

func (s *EmbeddingService) Close() error {
	s.api.CloseIdleConnections()
	return nil
}

// classify treats a missing endpoint or model as misconfiguration.
func classify(err error) error {
	if errors.Is(err, domain.ErrNotImplemented) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return err
}

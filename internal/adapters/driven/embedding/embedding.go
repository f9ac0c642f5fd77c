// Package embedding selects the embedding service a vector source uses.
package embedding

import (
	"fmt"
	"strconv"

	"github.com/custodia-labs/memquery/internal/adapters/driven/embedding/hash"
	"github.com/custodia-labs/memquery/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/memquery/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

// Embedder names accepted by the "embedder" source option.
const (
	Hash   = "hash"
	Ollama = "ollama"
	OpenAI = "openai"
)

// Source options read by FromSource.
const (
	optEmbedder   = "embedder"
	optModel      = "embedding_model"
	optURL        = "embedding_url"
	optAPIKey     = "embedding_api_key"
	optVectorSize = "vector_size"
)

// FromSource builds the embedder configured for a source. Without an
// "embedder" option the local hashing embedder is used.
func FromSource(cfg domain.SourceConfig) (driven.EmbeddingService, error) {
	size := 0
	if raw := cfg.Option(optVectorSize, ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %s: vector_size %q", domain.ErrInvalidInput, cfg.Name, raw)
		}
		size = n
	}

	switch kind := cfg.Option(optEmbedder, Hash); kind {
	case Hash:
		return hash.New(size), nil
	case Ollama:
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.Option(optURL, ""),
			Model:      cfg.Option(optModel, ""),
			Dimensions: size,
		}), nil
	case OpenAI:
		return openai.NewEmbeddingService(openai.Config{
			APIKey:     cfg.Option(optAPIKey, ""),
			BaseURL:    cfg.Option(optURL, ""),
			Model:      cfg.Option(optModel, ""),
			Dimensions: size,
		})
	default:
		return nil, fmt.Errorf("%w: %s: unknown embedder %q", domain.ErrInvalidInput, cfg.Name, kind)
	}
}

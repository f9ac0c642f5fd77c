package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memquery/internal/adapters/driven/embedding/hash"
	"github.com/custodia-labs/memquery/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/memquery/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/memquery/internal/core/domain"
)

func source(options map[string]string) domain.SourceConfig {
	return domain.SourceConfig{Name: "vectors", Kind: domain.SourceKindQdrant, Options: options}
}

func TestFromSource_DefaultsToHash(t *testing.T) {
	e, err := FromSource(source(nil))
	require.NoError(t, err)

	assert.IsType(t, &hash.Embedder{}, e)
	assert.Equal(t, hash.DefaultDimensions, e.Dimensions())
}

func TestFromSource_HashSize(t *testing.T) {
	e, err := FromSource(source(map[string]string{"vector_size": "64"}))
	require.NoError(t, err)
	assert.Equal(t, 64, e.Dimensions())
}

func TestFromSource_Ollama(t *testing.T) {
	e, err := FromSource(source(map[string]string{
		"embedder":        "ollama",
		"embedding_model": "mxbai-embed-large",
		"embedding_url":   "http://ollama:11434",
		"vector_size":     "1024",
	}))
	require.NoError(t, err)

	assert.IsType(t, &ollama.EmbeddingService{}, e)
	assert.Equal(t, "mxbai-embed-large", e.ModelName())
	assert.Equal(t, 1024, e.Dimensions())
}

func TestFromSource_OpenAI(t *testing.T) {
	e, err := FromSource(source(map[string]string{
		"embedder":          "openai",
		"embedding_api_key": "sk-test",
	}))
	require.NoError(t, err)

	assert.IsType(t, &openai.EmbeddingService{}, e)
	assert.Equal(t, openai.DefaultModel, e.ModelName())
}

func TestFromSource_Errors(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]string
	}{
		{"unknown embedder", map[string]string{"embedder": "bert"}},
		{"bad size", map[string]string{"vector_size": "wide"}},
		{"openai without key", map[string]string{"embedder": "openai"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromSource(source(tt.options))
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

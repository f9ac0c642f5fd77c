package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

func TestNewEmbeddingService_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewEmbeddingService_Dimensions(t *testing.T) {
	tests := []struct {
		model string
		dims  int
		want  int
	}{
		{"", 0, 1536},
		{"text-embedding-3-large", 0, 3072},
		{"text-embedding-3-large", 256, 256},
		{"custom-model", 0, 1536},
	}

	for _, tt := range tests {
		s, err := NewEmbeddingService(Config{APIKey: "sk", Model: tt.model, Dimensions: tt.dims})
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.Dimensions(), "model %q", tt.model)
	}
}

func TestEmbed_ShortensV3Models(t *testing.T) {
	var got embeddingsRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5,0.25],"index":0}]}`))
	}))
	defer ts.Close()

	s, err := NewEmbeddingService(Config{APIKey: "sk-test", BaseURL: ts.URL + "/v1/", Dimensions: 2})
	require.NoError(t, err)

	v, err := s.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, v)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, []string{"hello"}, got.Input)
	assert.Equal(t, 2, got.Dimensions)
}

func TestEmbed_OmitsDimensionsForOtherModels(t *testing.T) {
	var raw map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0,0]}]}`))
	}))
	defer ts.Close()

	s, err := NewEmbeddingService(Config{APIKey: "sk", BaseURL: ts.URL, Model: "bge-small", Dimensions: 3})
	require.NoError(t, err)

	_, err = s.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.NotContains(t, raw, "dimensions")
	assert.Equal(t, "bge-small", s.ModelName())
}

func TestEmbed_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"bad key", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, domain.ErrInvalidInput},
		{"unknown model", http.StatusNotFound, `{"error":{"message":"no such model"}}`, domain.ErrInvalidInput},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, domain.ErrRateLimited},
		{"server error", http.StatusBadGateway, `upstream`, domain.ErrSourceUnavailable},
		{"empty data", http.StatusOK, `{"data":[]}`, domain.ErrSourceUnavailable},
		{"wrong size", http.StatusOK, `{"data":[{"embedding":[1]}]}`, domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			s, err := NewEmbeddingService(Config{APIKey: "sk", BaseURL: ts.URL, Dimensions: 2})
			require.NoError(t, err)

			_, err = s.Embed(context.Background(), "x")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))

	good, err := NewEmbeddingService(Config{APIKey: "good", BaseURL: ts.URL})
	require.NoError(t, err)
	assert.NoError(t, good.Ping(context.Background()))

	bad, err := NewEmbeddingService(Config{APIKey: "bad", BaseURL: ts.URL})
	require.NoError(t, err)
	assert.ErrorIs(t, bad.Ping(context.Background()), domain.ErrInvalidInput)

	ts.Close()
	assert.ErrorIs(t, good.Ping(context.Background()), domain.ErrSourceUnavailable)
	assert.NoError(t, good.Close())
}

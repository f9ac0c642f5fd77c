package ollama

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

func TestNewEmbeddingService_Defaults(t *testing.T) {
	s := NewEmbeddingService(Config{})
	assert.Equal(t, DefaultBaseURL, s.api.BaseURL())
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, DefaultDimensions, s.Dimensions())
}

func TestEmbed(t *testing.T) {
	var got embedRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{0.1, 0.2, 0.3}}})
	}))
	defer ts.Close()

	s := NewEmbeddingService(Config{BaseURL: ts.URL + "/", Model: "all-minilm", Dimensions: 3})
	v, err := s.Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
	assert.Equal(t, "all-minilm", got.Model)
	assert.Equal(t, []string{"hello"}, got.Input)
}

func TestEmbed_WrongDimensions(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{0.1, 0.2}}})
	}))
	defer ts.Close()

	_, err := NewEmbeddingService(Config{BaseURL: ts.URL, Dimensions: 3}).Embed(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEmbed_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrInvalidInput},
		{http.StatusBadRequest, domain.ErrInvalidInput},
		{http.StatusInternalServerError, domain.ErrSourceUnavailable},
	}

	for _, tt := range tests {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not found", tt.status)
		}))

		_, err := NewEmbeddingService(Config{BaseURL: ts.URL}).Embed(context.Background(), "x")
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		assert.Contains(t, err.Error(), "model not found")
		ts.Close()
	}
}

func TestEmbed_EmptyResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer ts.Close()

	_, err := NewEmbeddingService(Config{BaseURL: ts.URL}).Embed(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestPing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	s := NewEmbeddingService(Config{BaseURL: ts.URL})
	assert.NoError(t, s.Ping(context.Background()))

	ts.Close()
	assert.ErrorIs(t, s.Ping(context.Background()), domain.ErrSourceUnavailable)
	assert.NoError(t, s.Close())
}

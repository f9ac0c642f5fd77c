package httpsource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

func testConfig(url string) domain.SourceConfig {
	return domain.SourceConfig{Name: "test", Kind: domain.SourceKindMemento, URL: url, APIKey: "secret"}
}

func TestClient_PostJSON(t *testing.T) {
	var gotAuth, gotType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL + "/"))
	var out struct {
		Value string `json:"value"`
	}
	err := c.PostJSON(context.Background(), "/search", map[string]any{"query": "q"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "ok", out.Value)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "q", gotBody["query"])
	assert.Equal(t, srv.URL, c.BaseURL())
}

func TestClient_PostJSON_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var out map[string]any
	err := New(testConfig(srv.URL)).PostJSON(context.Background(), "/store", struct{}{}, &out)
	assert.NoError(t, err)
}

func TestClient_PostJSON_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, domain.ErrInvalidInput},
		{http.StatusUnauthorized, domain.ErrInvalidInput},
		{http.StatusNotFound, domain.ErrNotImplemented},
		{http.StatusMethodNotAllowed, domain.ErrNotImplemented},
		{http.StatusNotImplemented, domain.ErrNotImplemented},
		{http.StatusInternalServerError, domain.ErrSourceUnavailable},
		{http.StatusServiceUnavailable, domain.ErrSourceUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", tt.status)
			}))
			defer srv.Close()

			err := New(testConfig(srv.URL)).PostJSON(context.Background(), "/x", struct{}{}, nil)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, "boom", se.Body)
			assert.Contains(t, err.Error(), "test: API returned status")
		})
	}
}

func TestClient_PostJSON_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	err := c.PostJSON(context.Background(), "/x", struct{}{}, nil)

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.False(t, c.limiter.Allow(), "limiter should back off after 429")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = c.PostJSON(ctx, "/x", struct{}{}, nil)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestClient_PostJSON_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(testConfig(url)).PostJSON(context.Background(), "/x", struct{}{}, nil)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestClient_PostJSON_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	var out map[string]any
	err := New(testConfig(srv.URL)).PostJSON(context.Background(), "/x", struct{}{}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/models", r.URL.Path)
		assert.Empty(t, r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"id":"m1"}]}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "/models", &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, "m1", out.Data[0].ID)

	assert.NoError(t, c.GetJSON(context.Background(), "/models", nil))
}

func TestClient_GetJSON_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := New(testConfig(srv.URL)).GetJSON(context.Background(), "/models", nil)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "bad key", statusErr.Body)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestClient_HealthCheck(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, HealthPath, r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	assert.True(t, c.HealthCheck(context.Background()))

	healthy = false
	assert.False(t, c.HealthCheck(context.Background()))

	srv.Close()
	assert.False(t, c.HealthCheck(context.Background()))
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryAfter(""))
	assert.Equal(t, 5*time.Second, retryAfter("5"))
	assert.Equal(t, time.Duration(0), retryAfter("soon"))

	at := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	d := retryAfter(at)
	assert.Greater(t, d, 50*time.Second)
}

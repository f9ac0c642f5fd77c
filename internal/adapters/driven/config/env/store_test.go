package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memquery/internal/adapters/driven/storage/memory"
)

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "MEMQUERY_SOURCES_COGNEE_API_KEY", EnvVar("sources.cognee.api_key"))
	assert.Equal(t, "MEMQUERY_CACHE_TTL", EnvVar("cache.ttl"))
	assert.Equal(t, "MEMQUERY_SOURCES_MY_GRAPH_URL", EnvVar("sources.my-graph.url"))
}

func TestStore_EnvironmentWins(t *testing.T) {
	base := memory.NewConfigStore(map[string]any{
		"service.port":       8505,
		"cache.backend":      "memory",
		"sources.cognee.url": "http://file:8000",
	})
	t.Setenv("MEMQUERY_SERVICE_PORT", "9000")
	t.Setenv("MEMQUERY_SOURCES_COGNEE_URL", "http://env:8000")

	s := New(base)

	assert.Equal(t, 9000, s.GetInt("service.port"))
	assert.Equal(t, "http://env:8000", s.GetString("sources.cognee.url"))
	assert.Equal(t, "memory", s.GetString("cache.backend"))

	val, ok := s.Get("service.port")
	assert.True(t, ok)
	assert.Equal(t, "9000", val)
}

func TestStore_TypedEnvironmentValues(t *testing.T) {
	t.Setenv("MEMQUERY_TELEMETRY_ENABLED", "true")
	t.Setenv("MEMQUERY_SOURCES_ORDER", "memento, cognee")
	t.Setenv("MEMQUERY_RANKING_RELEVANCE", "0.7")

	s := New(memory.NewConfigStore())

	assert.True(t, s.GetBool("telemetry.enabled"))
	assert.Equal(t, []string{"memento", "cognee"}, s.GetStringSlice("sources.order"))
	assert.Equal(t, "0.7", s.GetString("ranking.relevance"))
}

func TestStore_MissingKey(t *testing.T) {
	s := New(memory.NewConfigStore())

	val, ok := s.Get("cache.redis_url")
	assert.False(t, ok)
	assert.Nil(t, val)
	assert.Empty(t, s.GetString("cache.redis_url"))
}

func TestStore_DelegatesWrites(t *testing.T) {
	base := memory.NewConfigStore()
	s := New(base)

	require.NoError(t, s.Set("cache.ttl", "60s"))
	require.NoError(t, s.Save())
	require.NoError(t, s.Load())

	assert.Equal(t, "60s", base.GetString("cache.ttl"))
	assert.Equal(t, ":memory:", s.Path())
	assert.Same(t, base, s.Base())
	assert.Equal(t, []string{"cache.ttl"}, s.Keys("cache."))
}

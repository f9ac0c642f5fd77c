package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheBackendKind(t *testing.T) {
	for _, k := range AllCacheBackends() {
		assert.True(t, k.IsValid())
		assert.NotEqual(t, unknownDescription, k.Description())
	}
	assert.False(t, CacheBackendKind("memcached").IsValid())
	assert.Equal(t, unknownDescription, CacheBackendKind("memcached").Description())
}

func TestStorageBackendKind(t *testing.T) {
	assert.True(t, StorageBackendSQLite.IsValid())
	assert.True(t, StorageBackendMemory.IsValid())
	assert.False(t, StorageBackendKind("postgres").IsValid())
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, 8505, s.Service.Port)
	assert.Equal(t, 50, s.Service.MaxConcurrentQueries)
	assert.Equal(t, time.Duration(0), s.Service.QueryTimeout)
	assert.Equal(t, CacheBackendMemory, s.Cache.Backend)
	assert.Equal(t, 300*time.Second, s.Cache.TTL)
	assert.Equal(t, 1000, s.Cache.MaxSize)
	assert.Equal(t, DefaultRankingWeights(), s.Ranking)
	assert.Equal(t, 2*time.Second, s.Retry.InitialInterval)
	assert.Equal(t, 10*time.Second, s.Retry.MaxInterval)
	assert.False(t, s.Telemetry.Enabled)
	assert.True(t, s.Scheduler.Enabled)
	assert.Equal(t, StorageBackendSQLite, s.Storage.Backend)
}

func TestAppSettings_EnabledSources(t *testing.T) {
	s := AppSettings{Sources: []SourceConfig{
		{Name: "a", Enabled: true},
		{Name: "b"},
		{Name: "c", Enabled: true},
	}}

	enabled := s.EnabledSources()
	assert.Len(t, enabled, 2)
	assert.Equal(t, "a", enabled[0].Name)
	assert.Equal(t, "c", enabled[1].Name)

	assert.Len(t, DefaultAppSettings().EnabledSources(), 4)
}

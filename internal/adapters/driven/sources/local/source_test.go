package local

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/memquery/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/ports/driven"
)

type brokenStore struct {
	*memory.MemoryStore
}

func (brokenStore) CountMemories(context.Context) (int, error) {
	return 0, errors.New("disk full")
}

func newTestSource(t *testing.T) (*Source, *memory.MemoryStore) {
	t.Helper()
	store := memory.NewMemoryStore()
	s := New(domain.SourceConfig{Name: "local", Kind: domain.SourceKindLocal}, store)
	require.NoError(t, s.Initialize(context.Background()))
	return s, store
}

func TestSource_StoreThenSearch(t *testing.T) {
	s, _ := newTestSource(t)
	ctx := context.Background()

	id, err := s.Store(ctx, "redis cache eviction policy", map[string]any{"topic": "cache"})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	_, err = s.Store(ctx, "unrelated note", nil)
	require.NoError(t, err)

	results, err := s.Search(ctx, "cache eviction", driven.SearchParams{Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "local", results[0].Metadata["source"])
	assert.Equal(t, "cache", results[0].Metadata["topic"])
	assert.False(t, results[0].Timestamp.IsZero())
}

func TestSource_StoreWithExplicitID(t *testing.T) {
	s, store := newTestSource(t)

	id, err := s.Store(context.Background(), "pinned", map[string]any{"id": "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", id)

	m, err := store.GetMemory(context.Background(), "fixed")
	require.NoError(t, err)
	assert.Equal(t, "pinned", m.Content)
}

func TestSource_SearchDoesNotLeakSourceIntoStore(t *testing.T) {
	s, store := newTestSource(t)
	ctx := context.Background()

	id, err := s.Store(ctx, "cache note", map[string]any{"topic": "x"})
	require.NoError(t, err)
	_, err = s.Search(ctx, "cache", driven.SearchParams{Limit: 1})
	require.NoError(t, err)

	m, err := store.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.NotContains(t, m.Metadata, "source")
}

func TestSource_Lifecycle(t *testing.T) {
	s, _ := newTestSource(t)
	assert.True(t, s.HealthCheck(context.Background()))

	require.NoError(t, s.Shutdown(context.Background()))
	assert.False(t, s.HealthCheck(context.Background()))

	_, err := s.Search(context.Background(), "x", driven.SearchParams{Limit: 1})
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	_, err = s.Store(context.Background(), "x", nil)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
}

func TestSource_InitializeFailures(t *testing.T) {
	s := New(domain.SourceConfig{Name: "local"}, nil)
	assert.ErrorIs(t, s.Initialize(context.Background()), domain.ErrInvalidInput)

	s = New(domain.SourceConfig{Name: "local"}, brokenStore{memory.NewMemoryStore()})
	assert.ErrorIs(t, s.Initialize(context.Background()), domain.ErrSourceUnavailable)
}

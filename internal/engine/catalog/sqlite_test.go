package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentcore/server/internal/engine/model"
)

func TestSQLiteCatalogPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	cat, err := OpenSQLite(ctx, path)
	require.NoError(t, err)

	require.NoError(t, cat.UpsertExamples(ctx, model.IntentWISMO, []Example{
		{Text: "where is my order", Embedding: []float32{0.25, -1.5, 3}},
		{Text: "order status please", Embedding: []float32{0.5, 0.5, 0}},
	}))
	require.NoError(t, cat.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	snap, err := reopened.Store().Snapshot()
	require.NoError(t, err)
	require.Equal(t, 2, snap.Len())

	candidates, err := snap.Search([]float32{0.25, -1.5, 3}, 5)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, model.IntentWISMO, candidates[0].IntentCode)
	assert.InDelta(t, 1.0, candidates[0].Similarity, 0.0001)
	assert.Equal(t, "where is my order", candidates[0].MatchedExample)
}

func TestSQLiteUpsertReplacesStoredExamples(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	cat, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer cat.Close()

	require.NoError(t, cat.UpsertExamples(ctx, model.IntentStock, []Example{
		{Text: "old example", Embedding: []float32{1, 0}},
	}))
	require.NoError(t, cat.UpsertExamples(ctx, model.IntentStock, []Example{
		{Text: "new example", Embedding: []float32{1, 0}},
	}))

	snap, err := cat.Store().Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())

	candidates, err := snap.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "new example", candidates[0].MatchedExample)
}

func TestEmbeddingRoundTrip(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, 3.14159}
	assert.Equal(t, vec, decodeEmbedding(encodeEmbedding(vec)))
}

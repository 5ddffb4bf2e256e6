package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/intentcore/server/internal/core/error"
	"github.com/intentcore/server/internal/engine/model"
)

func TestSnapshotBeforeFirstLoad(t *testing.T) {
	store := NewStore()

	_, err := store.Snapshot()
	assert.ErrorIs(t, err, errx.ErrIndexUnavailable)
}

func TestSearchEmptySnapshot(t *testing.T) {
	store := NewStore()
	store.Replace(nil)

	snap, err := store.Snapshot()
	require.NoError(t, err)

	_, err = snap.Search([]float32{1, 0}, 5)
	assert.ErrorIs(t, err, errx.ErrCatalogEmpty)
}

func TestSearchRanksBySimilarity(t *testing.T) {
	store := NewStore()
	store.Replace([]Example{
		{IntentCode: model.IntentWISMO, Text: "where is my order", Embedding: []float32{1, 0, 0}},
		{IntentCode: model.IntentCancelOrder, Text: "cancel my order", Embedding: []float32{0, 1, 0}},
		{IntentCode: model.IntentStock, Text: "is this in stock", Embedding: []float32{0, 0, 1}},
	})

	snap, err := store.Snapshot()
	require.NoError(t, err)

	candidates, err := snap.Search([]float32{1, 0.2, 0}, 2)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, model.IntentWISMO, candidates[0].IntentCode)
	assert.Equal(t, model.IntentCancelOrder, candidates[1].IntentCode)
	assert.Greater(t, candidates[0].Similarity, candidates[1].Similarity)
	assert.Equal(t, "where is my order", candidates[0].MatchedExample)
}

func TestSearchCollapsesToOneCandidatePerIntent(t *testing.T) {
	store := NewStore()
	store.Replace([]Example{
		{IntentCode: model.IntentWISMO, Text: "where is my order", Embedding: []float32{1, 0}},
		{IntentCode: model.IntentWISMO, Text: "order status please", Embedding: []float32{0.9, 0.1}},
		{IntentCode: model.IntentCancelOrder, Text: "cancel it", Embedding: []float32{0, 1}},
	})

	snap, err := store.Snapshot()
	require.NoError(t, err)

	candidates, err := snap.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, candidates, 2, "two examples of the same intent collapse to one candidate")
	assert.Equal(t, model.IntentWISMO, candidates[0].IntentCode)
	assert.Equal(t, "where is my order", candidates[0].MatchedExample)
}

func TestUpsertExamplesReplacesIntent(t *testing.T) {
	store := NewStore()
	store.UpsertExamples(model.IntentWISMO, []Example{
		{Text: "where is my order", Embedding: []float32{1, 0}},
		{Text: "order status", Embedding: []float32{1, 0}},
	})
	store.UpsertExamples(model.IntentStock, []Example{
		{Text: "in stock?", Embedding: []float32{0, 1}},
	})

	snap, err := store.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Len())

	// Re-upserting an intent replaces that intent's examples only.
	store.UpsertExamples(model.IntentWISMO, []Example{
		{Text: "package status", Embedding: []float32{1, 0}},
	})

	snap, err = store.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())

	candidates, err := snap.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, "package status", candidates[0].MatchedExample)
}

func TestUpsertExamplesFillsCodeAndCategory(t *testing.T) {
	store := NewStore()
	snap := store.UpsertExamples(model.IntentReturnInitiate, []Example{
		{Text: "send it back", Embedding: []float32{1}},
	})

	require.Equal(t, 1, snap.Len())
	assert.Equal(t, model.IntentReturnInitiate, snap.examples[0].IntentCode)
	assert.Equal(t, model.CategoryReturnExchange, snap.examples[0].Category)
}

func TestSnapshotImmutableUnderUpdate(t *testing.T) {
	store := NewStore()
	store.Replace([]Example{
		{IntentCode: model.IntentWISMO, Text: "a", Embedding: []float32{1, 0}},
	})

	pinned, err := store.Snapshot()
	require.NoError(t, err)
	require.Equal(t, 1, pinned.Len())
	require.Equal(t, uint64(1), pinned.Version())

	store.UpsertExamples(model.IntentStock, []Example{
		{Text: "b", Embedding: []float32{0, 1}},
	})

	// The pinned snapshot is untouched; the fresh one carries the update.
	assert.Equal(t, 1, pinned.Len())
	fresh, err := store.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Len())
	assert.Equal(t, uint64(2), fresh.Version())
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 0}, []float32{2, 0}), 0.0001)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 0.0001)
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 0}))
}

//go:build integration
// +build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 768

// setupTestStore creates a Qdrant-backed store and ensures the collection
// exists. Skips the test if Qdrant is not running.
func setupTestStore(t *testing.T) *QdrantStore {
	store, err := NewQdrantStore("localhost", 6334, testDimension)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	err = store.EnsureCollection(context.Background())
	require.NoError(t, err, "Failed to ensure collection")

	return store
}

func testVector(fill float32) []float32 {
	vec := make([]float32, testDimension)
	for i := range vec {
		vec[i] = fill
	}
	return vec
}

func TestQdrantDocumentRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	doc := &Document{
		URL:       "https://example.com/roundtrip",
		Title:     "Roundtrip",
		Content:   "roundtrip content",
		Vector:    testVector(0.1),
		IndexedAt: now,
	}
	require.NoError(t, store.Upsert(ctx, []*Document{doc}))

	got, err := store.Get(ctx, doc.URL)
	require.NoError(t, err)
	assert.Equal(t, doc.URL, got.URL)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, doc.Vector, got.Vector)
	assert.WithinDuration(t, now, got.IndexedAt, time.Second)
}

// TestQdrantUpsertReplacesByURL verifies re-ingesting a URL overwrites the
// same point instead of adding a new one.
func TestQdrantUpsertReplacesByURL(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	url := "https://example.com/replace"

	require.NoError(t, store.Upsert(ctx, []*Document{
		{URL: url, Content: "first snapshot", Vector: testVector(0.1), IndexedAt: time.Now().UTC()},
	}))
	require.NoError(t, store.Upsert(ctx, []*Document{
		{URL: url, Content: "second snapshot", Vector: testVector(0.2), IndexedAt: time.Now().UTC()},
	}))

	got, err := store.Get(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, "second snapshot", got.Content)
}

func TestQdrantQueryNearest(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	doc := &Document{
		URL:       "https://example.com/nearest",
		Content:   "nearest content",
		Vector:    testVector(0.3),
		IndexedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Upsert(ctx, []*Document{doc}))

	results, err := store.QueryNearest(ctx, testVector(0.3), 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	found := false
	for _, hit := range results {
		if hit.Document.URL == doc.URL {
			found = true
			assert.InDelta(t, 1.0, hit.Score, 0.01)
		}
	}
	assert.True(t, found, "upserted document should be in nearest results")
}

func TestQdrantDimensionValidation(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	err := store.Upsert(ctx, []*Document{
		{URL: "https://example.com/wrong", Content: "x", Vector: make([]float32, 8)},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = store.QueryNearest(ctx, make([]float32, 8), 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

// TestQdrantDocumentWithoutVector verifies documents can be stored before
// their embedding exists and come back vectorless.
func TestQdrantDocumentWithoutVector(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	url := "https://example.com/no-vector"

	require.NoError(t, store.Upsert(ctx, []*Document{
		{URL: url, Content: "pending embedding", IndexedAt: time.Now().UTC()},
	}))

	got, err := store.Get(ctx, url)
	require.NoError(t, err)
	assert.Empty(t, got.Vector)
}

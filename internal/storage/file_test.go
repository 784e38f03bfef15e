package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	return store, path
}

func TestFileStore_EmptyCorpus(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	docs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = store.Get(ctx, "https://example.com/missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestFileStore_UpsertRoundTrip(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	doc := &Document{
		URL:       "https://example.com/a",
		Title:     "Page A",
		Content:   "content of page a",
		Vector:    []float32{0.1, 0.2, 0.3},
		IndexedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Upsert(ctx, []*Document{doc}))

	got, err := store.Get(ctx, doc.URL)
	require.NoError(t, err)
	assert.Equal(t, doc.URL, got.URL)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, doc.Vector, got.Vector)
	assert.WithinDuration(t, doc.IndexedAt, got.IndexedAt, time.Second)
}

// TestFileStore_MergePreservesInsertionOrder verifies re-upserting a URL
// replaces it in place while new URLs append.
func TestFileStore_MergePreservesInsertionOrder(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []*Document{
		{URL: "u1", Content: "one"},
		{URL: "u2", Content: "two"},
	}))
	require.NoError(t, store.Upsert(ctx, []*Document{
		{URL: "u1", Content: "one updated"},
		{URL: "u3", Content: "three"},
	}))

	docs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "u1", docs[0].URL)
	assert.Equal(t, "one updated", docs[0].Content)
	assert.Equal(t, "u2", docs[1].URL)
	assert.Equal(t, "u3", docs[2].URL)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

// TestFileStore_Persistence verifies documents survive reopening the store.
func TestFileStore_Persistence(t *testing.T) {
	store, path := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []*Document{
		{URL: "https://example.com/persist", Content: "persisted", Vector: []float32{1, 2}},
	}))
	require.NoError(t, store.Close())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	got, err := reopened.Get(ctx, "https://example.com/persist")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Content)
	assert.Equal(t, []float32{1, 2}, got.Vector)
}

func TestFileStore_RejectsEmptyContent(t *testing.T) {
	store, _ := newTestFileStore(t)

	err := store.Upsert(context.Background(), []*Document{{URL: "u1", Content: ""}})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

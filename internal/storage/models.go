// Package storage persists the document corpus. Two backends implement the
// same Store contract: a flat JSON file with load-all/save-all semantics, and
// a Qdrant collection with native upsert and nearest-neighbor query.
package storage

import (
	"context"
	"time"
)

// Document is one ingested page or file.
// URL is the unique key within a corpus. Vector is the cached embedding for
// the current content snapshot; re-ingesting the same URL with new content
// replaces it.
type Document struct {
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Vector    []float32 `json:"vector,omitempty"`
	IndexedAt time.Time `json:"indexed_at"`
}

// ScoredDocument pairs a document with a retrieval score.
type ScoredDocument struct {
	Document *Document
	Score    float64
}

// Store is the persistence contract the corpus adapter works against.
type Store interface {
	// Upsert inserts or replaces documents keyed by URL.
	Upsert(ctx context.Context, docs []*Document) error
	// Get returns the document for url, or ErrDocumentNotFound.
	Get(ctx context.Context, url string) (*Document, error)
	// List returns every document in insertion order.
	List(ctx context.Context) ([]*Document, error)
	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)
	// Close releases any underlying resources.
	Close() error
}

// NearestQuerier is implemented by stores with native vector search.
// Stores lacking it are ranked entirely by the hybrid scorer.
type NearestQuerier interface {
	QueryNearest(ctx context.Context, vector []float32, k int) ([]*ScoredDocument, error)
}

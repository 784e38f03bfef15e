// Package corpus is the append/merge layer over the persisted document set.
// It owns all corpus mutation: components upstream hand it pages, components
// downstream only read from it.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docent-ai/docent/internal/crawler"
	"github.com/docent-ai/docent/internal/storage"
)

// Embedder supplies vectors for new or changed content. A nil vector means
// the remote service had no signal; the document is stored without one and
// ranking degrades to lexical scoring.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Corpus adapts a storage.Store with embedding backfill on ingestion.
type Corpus struct {
	store    storage.Store
	embedder Embedder
	logger   *slog.Logger
}

// New creates a corpus adapter over store.
func New(store storage.Store, embedder Embedder, logger *slog.Logger) *Corpus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Corpus{
		store:    store,
		embedder: embedder,
		logger:   logger,
	}
}

// Ingest merges crawled pages into the corpus and returns how many documents
// were written. Pages with empty content are skipped. A page whose content
// is unchanged keeps its cached vector and is not re-embedded; changed
// content invalidates the cache and gets a fresh embedding.
func (c *Corpus) Ingest(ctx context.Context, pages []crawler.Page) (int, error) {
	var docs []*storage.Document

	for _, page := range pages {
		if page.Content == "" {
			continue
		}

		existing, err := c.store.Get(ctx, page.URL)
		if err != nil && !errors.Is(err, storage.ErrDocumentNotFound) {
			return 0, fmt.Errorf("lookup %s: %w", page.URL, err)
		}
		if existing != nil && existing.Content == page.Content && len(existing.Vector) > 0 {
			c.logger.Debug("content unchanged, keeping cached vector", "url", page.URL)
			continue
		}

		docs = append(docs, &storage.Document{
			URL:       page.URL,
			Title:     page.Title,
			Content:   page.Content,
			Vector:    c.embedder.Embed(ctx, page.Content),
			IndexedAt: time.Now().UTC(),
		})
	}

	if len(docs) == 0 {
		return 0, nil
	}

	if err := c.store.Upsert(ctx, docs); err != nil {
		return 0, fmt.Errorf("upsert documents: %w", err)
	}

	c.logger.Info("indexed documents", "count", len(docs))
	return len(docs), nil
}

// Documents returns every document in the corpus.
func (c *Corpus) Documents(ctx context.Context) ([]*storage.Document, error) {
	return c.store.List(ctx)
}

// Count returns the corpus size.
func (c *Corpus) Count(ctx context.Context) (int, error) {
	return c.store.Count(ctx)
}

// Store exposes the underlying store for capability checks
// (storage.NearestQuerier in particular).
func (c *Corpus) Store() storage.Store {
	return c.store
}

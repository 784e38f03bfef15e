package rag

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/docent-ai/docent/internal/crawler"
)

// IngestFile indexes uploaded file text as a corpus document and returns the
// synthetic URL it was stored under. Each upload gets a random suffix so
// re-uploading the same filename adds a new snapshot instead of overwriting.
func (p *Pipeline) IngestFile(ctx context.Context, filename, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("no text could be extracted from %s", filename)
	}

	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate upload id: %w", err)
	}
	fileURL := fmt.Sprintf("file://%s-%s", filename, hex.EncodeToString(suffix))

	if _, err := p.corpus.Ingest(ctx, []crawler.Page{{
		URL:     fileURL,
		Title:   filename,
		Content: text,
	}}); err != nil {
		return "", fmt.Errorf("index uploaded file: %w", err)
	}

	p.logger.Info("indexed uploaded file", "filename", filename, "url", fileURL)
	return fileURL, nil
}

// Package embedding converts text into fixed-length vectors via a remote
// OpenAI-compatible embeddings service.
package embedding

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// DefaultMaxChars bounds the text sent to the remote service per call.
	DefaultMaxChars = 9000

	// retryInterval and maxRetries bound the rate-limit retry loop.
	retryInterval = 500 * time.Millisecond
	maxRetries    = 3
)

// Embedder generates embeddings with a bounded input budget. Remote failures
// are absorbed: callers receive a nil vector and must treat it as "no
// semantic signal available".
type Embedder struct {
	client   *Client
	model    string
	maxChars int
	logger   *slog.Logger
}

// NewEmbedder creates an Embedder for the given model. If maxChars is 0,
// DefaultMaxChars is used.
func NewEmbedder(client *Client, model string, maxChars int, logger *slog.Logger) *Embedder {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		client:   client,
		model:    model,
		maxChars: maxChars,
		logger:   logger,
	}
}

// Embed returns the embedding vector for text, or nil on failure.
// The input is truncated to the configured character budget before the remote
// call. Rate-limit errors are retried with a constant short backoff a fixed
// number of times; every other failure is permanent. Errors never propagate
// to the caller.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	if text == "" {
		return nil
	}
	if len(text) > e.maxChars {
		cut := e.maxChars
		// Back up to a rune boundary so the request stays valid UTF-8.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	vec, err := e.embedWithRetry(ctx, text)
	if err != nil {
		e.logger.Error("embedding failed", "error", err)
		return nil
	}
	return vec
}

// embedWithRetry performs the remote call, retrying only on rate-limit
// errors (HTTP 429).
func (e *Embedder) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var vec []float32

	operation := func() error {
		resp, err := e.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: []string{text},
			},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err // Will retry with backoff
			}
			return backoff.Permanent(err) // Don't retry
		}
		if len(resp.Data) == 0 {
			return backoff.Permanent(errors.New("empty embedding response"))
		}
		vec = toFloat32(resp.Data[0].Embedding)
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), maxRetries)
	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return vec, err
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts []float64 to []float32.
// The API returns float64, but storage uses float32 for memory efficiency.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}

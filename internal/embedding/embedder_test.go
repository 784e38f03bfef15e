package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingsStub struct {
	requests   int
	lastInput  string
	vector     []float64
	statusCode int
}

func (s *embeddingsStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.requests++

		var body struct {
			Input []string `json:"input"`
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		if len(body.Input) > 0 {
			s.lastInput = body.Input[0]
		}

		if s.statusCode != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(s.statusCode)
			fmt.Fprint(w, `{"error":{"message":"nope","type":"api_error"}}`)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"object": "list",
			"model":  "test-embed",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": s.vector},
			},
			"usage": map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func newStubEmbedder(t *testing.T, stub *embeddingsStub, maxChars int) *Embedder {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "test-key")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEmbedder(client, "test-embed", maxChars, logger)
}

func TestEmbed(t *testing.T) {
	stub := &embeddingsStub{vector: []float64{0.25, -0.5, 1}}
	e := newStubEmbedder(t, stub, 0)

	vec := e.Embed(context.Background(), "some document text")

	assert.Equal(t, []float32{0.25, -0.5, 1}, vec)
	assert.Equal(t, "some document text", stub.lastInput)
	assert.Equal(t, 1, stub.requests)
}

// TestEmbed_TruncatesInput verifies the remote service only ever sees the
// configured character budget.
func TestEmbed_TruncatesInput(t *testing.T) {
	stub := &embeddingsStub{vector: []float64{1}}
	e := newStubEmbedder(t, stub, 16)

	e.Embed(context.Background(), strings.Repeat("x", 100))

	assert.Len(t, stub.lastInput, 16)
}

// TestEmbed_TruncationKeepsValidUTF8 verifies the byte budget never splits a
// multi-byte rune.
func TestEmbed_TruncationKeepsValidUTF8(t *testing.T) {
	stub := &embeddingsStub{vector: []float64{1}}
	e := newStubEmbedder(t, stub, 15)

	e.Embed(context.Background(), strings.Repeat("é", 20))

	assert.True(t, utf8.ValidString(stub.lastInput))
	// "é" is two bytes; an odd budget must back up to the rune boundary.
	assert.Len(t, stub.lastInput, 14)
}

func TestEmbed_EmptyText(t *testing.T) {
	stub := &embeddingsStub{vector: []float64{1}}
	e := newStubEmbedder(t, stub, 0)

	vec := e.Embed(context.Background(), "")

	assert.Nil(t, vec)
	assert.Equal(t, 0, stub.requests, "empty text must not reach the remote service")
}

// TestEmbed_ServerErrorIsNil verifies remote failures surface as a nil
// vector instead of an error.
func TestEmbed_ServerErrorIsNil(t *testing.T) {
	if testing.Short() {
		t.Skip("client retry backoff sleeps")
	}

	stub := &embeddingsStub{statusCode: http.StatusBadRequest}
	e := newStubEmbedder(t, stub, 0)

	vec := e.Embed(context.Background(), "text")

	assert.Nil(t, vec)
	assert.Equal(t, 1, stub.requests, "4xx responses must not be retried")
}

// TestEmbed_RateLimitRetries verifies 429 responses are retried until the
// service recovers.
func TestEmbed_RateLimitRetries(t *testing.T) {
	if testing.Short() {
		t.Skip("retry backoff sleeps")
	}

	stub := &embeddingsStub{vector: []float64{0.5}}
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
			return
		}
		stub.handler()(w, r)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "test-key")
	require.NoError(t, err)
	e := NewEmbedder(client, "test-embed", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	vec := e.Embed(context.Background(), "text")

	assert.Equal(t, []float32{0.5}, vec)
	assert.GreaterOrEqual(t, calls, 2)
}

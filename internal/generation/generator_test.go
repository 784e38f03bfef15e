package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGenerator(credentials []string) *Generator {
	return New("http://chat.invalid/v1", "test-model", credentials, 0, 0, discardLogger())
}

// TestGenerate_ShortCircuit verifies credentials after the first success are
// never invoked.
func TestGenerate_ShortCircuit(t *testing.T) {
	g := testGenerator([]string{"key-0", "key-1", "key-2"})

	var attempted []string
	g.complete = func(ctx context.Context, apiKey string, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
		attempted = append(attempted, apiKey)
		return "the answer", nil
	}

	got := g.Generate(context.Background(), "system", nil, "query")

	assert.Equal(t, "the answer", got)
	assert.Equal(t, []string{"key-0"}, attempted)
}

// TestGenerate_RotatesOnFailure verifies failed credentials are skipped in
// pool order until one succeeds.
func TestGenerate_RotatesOnFailure(t *testing.T) {
	g := testGenerator([]string{"key-0", "key-1", "key-2"})

	var attempted []string
	g.complete = func(ctx context.Context, apiKey string, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
		attempted = append(attempted, apiKey)
		if apiKey != "key-2" {
			return "", errors.New("rate limited")
		}
		return "recovered", nil
	}

	got := g.Generate(context.Background(), "system", nil, "query")

	assert.Equal(t, "recovered", got)
	assert.Equal(t, []string{"key-0", "key-1", "key-2"}, attempted)
}

// TestGenerate_Exhaustion verifies every credential is attempted exactly
// once and the fixed sentinel comes back when all fail.
func TestGenerate_Exhaustion(t *testing.T) {
	credentials := []string{"key-0", "key-1", "key-2"}
	g := testGenerator(credentials)

	attempts := 0
	g.complete = func(ctx context.Context, apiKey string, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
		attempts++
		return "", errors.New("boom")
	}

	got := g.Generate(context.Background(), "system", nil, "query")

	assert.Equal(t, ExhaustedAnswer, got)
	assert.Equal(t, len(credentials), attempts)
}

// TestGenerate_EmptyContentIsFailure verifies a successful call with empty
// content still rotates to the next credential.
func TestGenerate_EmptyContentIsFailure(t *testing.T) {
	g := testGenerator([]string{"key-0", "key-1"})

	var attempted []string
	g.complete = func(ctx context.Context, apiKey string, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
		attempted = append(attempted, apiKey)
		if apiKey == "key-0" {
			return "", nil
		}
		return "filled in", nil
	}

	got := g.Generate(context.Background(), "system", nil, "query")

	assert.Equal(t, "filled in", got)
	assert.Len(t, attempted, 2)
}

// TestGenerate_EmptyPool verifies an empty credential pool immediately
// yields the sentinel.
func TestGenerate_EmptyPool(t *testing.T) {
	g := testGenerator(nil)

	got := g.Generate(context.Background(), "system", nil, "query")
	assert.Equal(t, ExhaustedAnswer, got)
}

// TestBuildMessages_Shape verifies ordering: system first, history in the
// middle, the query as the final user turn.
func TestBuildMessages_Shape(t *testing.T) {
	g := testGenerator([]string{"key-0"})

	history := []Turn{
		{Role: "user", Content: "hi"},
		{Role: "ai", Content: "hello"},
	}
	messages := g.buildMessages("system prompt", history, "the query")

	require.Len(t, messages, 4)
	assert.NotNil(t, messages[0].OfSystem)
	assert.NotNil(t, messages[1].OfUser)
	assert.NotNil(t, messages[2].OfAssistant)
	assert.NotNil(t, messages[3].OfUser)
}

// TestBuildMessages_RoleNormalization verifies the external "ai" tag and the
// plain "assistant" tag both map to assistant turns; anything else is user.
func TestBuildMessages_RoleNormalization(t *testing.T) {
	g := testGenerator([]string{"key-0"})

	history := []Turn{
		{Role: "ai", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "user", Content: "c"},
		{Role: "human", Content: "d"},
	}
	messages := g.buildMessages("system", history, "q")

	require.Len(t, messages, 6)
	assert.NotNil(t, messages[1].OfAssistant)
	assert.NotNil(t, messages[2].OfAssistant)
	assert.NotNil(t, messages[3].OfUser)
	assert.NotNil(t, messages[4].OfUser)
}

// TestBuildMessages_HistoryWindow verifies only the most recent turns are
// kept.
func TestBuildMessages_HistoryWindow(t *testing.T) {
	g := New("http://chat.invalid/v1", "test-model", []string{"key-0"}, 0, 2, discardLogger())

	history := []Turn{
		{Role: "user", Content: "turn-1"},
		{Role: "ai", Content: "turn-2"},
		{Role: "user", Content: "turn-3"},
		{Role: "ai", Content: "turn-4"},
	}
	messages := g.buildMessages("system", history, "q")

	// system + last 2 turns + query
	require.Len(t, messages, 4)
	assert.NotNil(t, messages[1].OfUser)
	assert.Equal(t, "turn-3", messages[1].OfUser.Content.OfString.Value)
	assert.NotNil(t, messages[2].OfAssistant)
}

// Package generation synthesizes answers through an OpenAI-compatible chat
// service, rotating across an ordered credential pool on failure.
package generation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// ExhaustedAnswer is returned when every credential in the pool failed.
	// It is a user-safe answer, never an error.
	ExhaustedAnswer = "Rate limit exceeded on all available API keys. Please try again later."

	// DefaultHistoryWindow is how many trailing conversation turns are kept
	// when building the completion request.
	DefaultHistoryWindow = 4

	// DefaultTemperature keeps answers grounded in the supplied context.
	DefaultTemperature = 0.2
)

// Turn is one prior message in the conversation. The external role tag "ai"
// is accepted and normalized to the assistant role.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// completionFunc issues a single chat completion with one credential.
// It is a field so tests can count and fail attempts deterministically.
type completionFunc func(ctx context.Context, apiKey string, messages []openai.ChatCompletionMessageParamUnion) (string, error)

// Generator rotates through the credential pool on each call, always starting
// from index 0. There is no sticky failure state across requests: the pool is
// small and exhaustion is retried naturally on the next user request.
type Generator struct {
	baseURL       string
	model         string
	temperature   float64
	credentials   []string
	historyWindow int
	logger        *slog.Logger
	complete      completionFunc
}

// New creates a Generator for the chat endpoint at baseURL. Zero values for
// temperature and historyWindow select the defaults.
func New(baseURL, model string, credentials []string, temperature float64, historyWindow int, logger *slog.Logger) *Generator {
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{
		baseURL:       baseURL,
		model:         model,
		temperature:   temperature,
		credentials:   credentials,
		historyWindow: historyWindow,
		logger:        logger,
	}
	g.complete = g.completeOnce
	return g
}

// Generate builds the message list (system context, role-normalized trailing
// history, the query as the final user turn) and tries each credential in
// order. The first non-empty completion wins; credentials after it are never
// tried. If the whole pool fails, the fixed exhaustion answer is returned -
// this boundary never raises.
func (g *Generator) Generate(ctx context.Context, systemPrompt string, history []Turn, query string) string {
	messages := g.buildMessages(systemPrompt, history, query)

	for i, key := range g.credentials {
		answer, err := g.complete(ctx, key, messages)
		if err != nil {
			g.logger.Warn("chat completion failed, trying next credential", "credential_index", i, "error", err)
			continue
		}
		if answer == "" {
			g.logger.Warn("chat completion returned empty content, trying next credential", "credential_index", i)
			continue
		}
		return answer
	}

	g.logger.Warn("all chat credentials exhausted", "pool_size", len(g.credentials))
	return ExhaustedAnswer
}

// buildMessages assembles the ordered message list for one request.
func (g *Generator) buildMessages(systemPrompt string, history []Turn, query string) []openai.ChatCompletionMessageParamUnion {
	if len(history) > g.historyWindow {
		history = history[len(history)-g.historyWindow:]
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(systemPrompt))

	for _, turn := range history {
		switch turn.Role {
		case "ai", "assistant":
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}

	return append(messages, openai.UserMessage(query))
}

// completeOnce issues one completion request authenticated with apiKey.
func (g *Generator) completeOnce(ctx context.Context, apiKey string, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(g.baseURL),
	)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(g.model),
		Temperature: openai.Float(g.temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

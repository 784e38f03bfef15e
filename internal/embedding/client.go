package embedding

import (
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps an OpenAI-compatible embeddings endpoint. The base URL selects
// the provider (Gemini's OpenAI surface by default); the key authenticates it.
type Client struct {
	client *openai.Client
}

// NewClient creates a client for the embeddings endpoint at baseURL.
// It returns an error if the API key is missing.
func NewClient(baseURL, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key not set")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)

	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI-compatible client.
func (c *Client) Client() *openai.Client {
	return c.client
}

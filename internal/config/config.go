// Package config builds the service configuration from the environment.
// All knobs live in one explicit struct that is constructed once at startup
// and passed by reference into each component - no ambient globals.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store backends selectable via STORE_BACKEND.
const (
	BackendFile   = "file"
	BackendQdrant = "qdrant"
)

// Config carries every tunable the pipeline needs.
type Config struct {
	Port string

	// Storage
	StoreBackend string
	CorpusPath   string
	QdrantHost   string
	QdrantPort   int

	// Embedding service (OpenAI-compatible endpoint)
	EmbedBaseURL   string
	EmbedAPIKey    string
	EmbedModel     string
	EmbedDimension int
	EmbedMaxChars  int

	// Chat service (OpenAI-compatible endpoint)
	ChatBaseURL string
	ChatModel   string
	// Credentials is the ordered pool tried in sequence on each request.
	Credentials []string
	Temperature float64

	// Retrieval weights
	SemanticWeight float64
	LexicalWeight  float64
	RarityBonus    float64
	TopK           int

	// Crawling
	MaxCrawlDepth int
	CrawlFanout   int
	FetchTimeout  time.Duration

	// Generation context shaping
	HistoryWindow   int
	ContextDocChars int
}

// Load reads configuration from the environment, applying defaults for
// everything except the API credentials.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8000"),
		StoreBackend:    getEnv("STORE_BACKEND", BackendFile),
		CorpusPath:      getEnv("CORPUS_PATH", "corpus.json"),
		QdrantHost:      getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:      getEnvInt("QDRANT_PORT", 6334),
		EmbedBaseURL:    getEnv("EMBED_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
		EmbedAPIKey:     os.Getenv("GEMINI_API_KEY"),
		EmbedModel:      getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDimension:  getEnvInt("EMBED_DIMENSION", 768),
		EmbedMaxChars:   getEnvInt("EMBED_MAX_CHARS", 9000),
		ChatBaseURL:     getEnv("CHAT_BASE_URL", "https://api.groq.com/openai/v1"),
		ChatModel:       getEnv("CHAT_MODEL", "llama-3.3-70b-versatile"),
		Temperature:     getEnvFloat("CHAT_TEMPERATURE", 0.2),
		SemanticWeight:  getEnvFloat("W_SEM", 70),
		LexicalWeight:   getEnvFloat("W_LEX", 30),
		RarityBonus:     getEnvFloat("RARITY_BONUS", 10),
		TopK:            getEnvInt("TOP_K", 3),
		MaxCrawlDepth:   getEnvInt("MAX_CRAWL_DEPTH", 2),
		CrawlFanout:     getEnvInt("CRAWL_FANOUT", 10),
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		HistoryWindow:   getEnvInt("HISTORY_WINDOW", 4),
		ContextDocChars: getEnvInt("CONTEXT_DOC_CHARS", 8000),
	}

	// Ordered credential pool: GROQ_API_KEY1, GROQ_API_KEY2, ... with gaps
	// ending the sequence. Order here is the rotation order.
	for i := 1; ; i++ {
		key := os.Getenv(fmt.Sprintf("GROQ_API_KEY%d", i))
		if key == "" {
			break
		}
		cfg.Credentials = append(cfg.Credentials, key)
	}

	if cfg.EmbedAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	if len(cfg.Credentials) == 0 {
		return nil, fmt.Errorf("no chat credentials configured (set GROQ_API_KEY1)")
	}
	if cfg.StoreBackend != BackendFile && cfg.StoreBackend != BackendQdrant {
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

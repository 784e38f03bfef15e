// Package main provides the docent CLI for corpus management and one-shot
// questions against a local corpus.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/corpus"
	"github.com/docent-ai/docent/internal/crawler"
	"github.com/docent-ai/docent/internal/embedding"
	"github.com/docent-ai/docent/internal/generation"
	"github.com/docent-ai/docent/internal/rag"
	"github.com/docent-ai/docent/internal/retrieval"
	"github.com/docent-ai/docent/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "docent",
	Short: "Docent retrieval-augmented QA tool",
	Long:  "CLI for crawling sites into the Docent corpus and asking questions against it",
}

var crawlDepth int

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Crawl a site into the corpus",
	Long: `Crawls the given URL within its own domain up to the depth bound and
indexes the extracted pages.

Environment variables:
  GEMINI_API_KEY  API key for the embedding service (required)
  GROQ_API_KEY1   First chat credential (required; GROQ_API_KEY2... extend the pool)
  STORE_BACKEND   "file" (default) or "qdrant"
  CORPUS_PATH     Corpus file path for the file backend (default: corpus.json)
  QDRANT_HOST     Qdrant hostname (default: localhost)
  QDRANT_PORT     Qdrant gRPC port (default: 6334)`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question against the corpus",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show corpus size",
	RunE:  runStatus,
}

func init() {
	crawlCmd.Flags().IntVar(&crawlDepth, "depth", 0, "crawl depth bound (default from MAX_CRAWL_DEPTH)")
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildPipeline wires the full component stack from the environment.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*rag.Pipeline, storage.Store, error) {
	var store storage.Store
	if cfg.StoreBackend == config.BackendQdrant {
		qdrantStore, err := storage.NewQdrantStore(cfg.QdrantHost, cfg.QdrantPort, cfg.EmbedDimension)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to Qdrant: %w", err)
		}
		if err := qdrantStore.EnsureCollection(context.Background()); err != nil {
			qdrantStore.Close()
			return nil, nil, fmt.Errorf("ensure collection: %w", err)
		}
		store = qdrantStore
	} else {
		fileStore, err := storage.NewFileStore(cfg.CorpusPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open corpus file: %w", err)
		}
		store = fileStore
	}

	embeddingClient, err := embedding.NewClient(cfg.EmbedBaseURL, cfg.EmbedAPIKey)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, cfg.EmbedModel, cfg.EmbedMaxChars, logger)

	crawl := crawler.New(cfg.FetchTimeout, cfg.CrawlFanout, logger)
	docs := corpus.New(store, embedder, logger)
	weights := retrieval.Weights{
		Semantic: cfg.SemanticWeight,
		Lexical:  cfg.LexicalWeight,
		Rarity:   cfg.RarityBonus,
	}
	retriever := retrieval.New(store, embedder, weights, logger)
	generator := generation.New(cfg.ChatBaseURL, cfg.ChatModel, cfg.Credentials, cfg.Temperature, cfg.HistoryWindow, logger)

	return rag.NewPipeline(crawl, docs, retriever, generator, cfg.TopK, cfg.ContextDocChars, logger), store, nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pipeline, store, err := buildPipeline(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer store.Close()

	depth := crawlDepth
	if depth <= 0 {
		depth = cfg.MaxCrawlDepth
	}

	fmt.Printf("Crawling %s (depth %d)...\n", args[0], depth)
	count, err := pipeline.Crawl(cmd.Context(), args[0], depth)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	total, err := pipeline.Count(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d pages (%d documents in corpus)\n", count, total)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pipeline, store, err := buildPipeline(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer store.Close()

	answer := pipeline.Answer(cmd.Context(), args[0], nil, "")

	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, source := range answer.Sources {
			fmt.Printf("  - %s\n", source)
		}
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pipeline, store, err := buildPipeline(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := pipeline.Count(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Documents in corpus: %d\n", count)
	return nil
}

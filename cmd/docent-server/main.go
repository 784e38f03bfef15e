// Package main provides the Docent HTTP API server entry point.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/corpus"
	"github.com/docent-ai/docent/internal/crawler"
	"github.com/docent-ai/docent/internal/embedding"
	"github.com/docent-ai/docent/internal/generation"
	"github.com/docent-ai/docent/internal/rag"
	"github.com/docent-ai/docent/internal/retrieval"
	"github.com/docent-ai/docent/internal/server"
	"github.com/docent-ai/docent/internal/storage"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Storage backend
	var store storage.Store
	switch cfg.StoreBackend {
	case config.BackendQdrant:
		qdrantStore, err := storage.NewQdrantStore(cfg.QdrantHost, cfg.QdrantPort, cfg.EmbedDimension)
		if err != nil {
			log.Fatalf("failed to connect to Qdrant: %v", err)
		}
		if err := qdrantStore.EnsureCollection(ctx); err != nil {
			log.Fatalf("failed to ensure collection: %v", err)
		}
		store = qdrantStore
	default:
		fileStore, err := storage.NewFileStore(cfg.CorpusPath)
		if err != nil {
			log.Fatalf("failed to open corpus file: %v", err)
		}
		store = fileStore
	}
	defer store.Close()

	// Embedding client
	embeddingClient, err := embedding.NewClient(cfg.EmbedBaseURL, cfg.EmbedAPIKey)
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, cfg.EmbedModel, cfg.EmbedMaxChars, logger)

	// Pipeline components
	crawl := crawler.New(cfg.FetchTimeout, cfg.CrawlFanout, logger)
	docs := corpus.New(store, embedder, logger)
	weights := retrieval.Weights{
		Semantic: cfg.SemanticWeight,
		Lexical:  cfg.LexicalWeight,
		Rarity:   cfg.RarityBonus,
	}
	retriever := retrieval.New(store, embedder, weights, logger)
	generator := generation.New(cfg.ChatBaseURL, cfg.ChatModel, cfg.Credentials, cfg.Temperature, cfg.HistoryWindow, logger)

	pipeline := rag.NewPipeline(crawl, docs, retriever, generator, cfg.TopK, cfg.ContextDocChars, logger)

	srv, err := server.New(pipeline, &server.Config{
		Port:          cfg.Port,
		MaxCrawlDepth: cfg.MaxCrawlDepth,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("http server stopped", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// Package rag wires the crawl-and-ingest and retrieve-and-answer flows.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/docent-ai/docent/internal/corpus"
	"github.com/docent-ai/docent/internal/crawler"
	"github.com/docent-ai/docent/internal/generation"
	"github.com/docent-ai/docent/internal/retrieval"
)

const (
	// NoInformationAnswer is returned when neither retrieval nor an uploaded
	// file supplies any context. No generation call is spent on it.
	NoInformationAnswer = "I do not have that information in my database."

	// autoCrawlDepth is the depth used when a URL is detected inside a query.
	autoCrawlDepth = 2

	// DefaultContextDocChars bounds each retrieved document's contribution to
	// the generation context.
	DefaultContextDocChars = 8000

	// uploadedFileSource labels file context in the sources list.
	uploadedFileSource = "Uploaded File"
)

const systemPromptFormat = "You are Docent AI. You are a strict RAG system. " +
	"If the answer is not in the CONTEXT, strictly say: 'I do not have that information in my database.' " +
	"IMPORTANT: Format ALL code snippets using Markdown code blocks with the correct language identifier. " +
	"Example: ```python\nprint('hello')\n```" +
	"\n\nCONTEXT:\n%s"

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// Answer is the outward result of a retrieve-and-answer call.
type Answer struct {
	Text    string
	Sources []string
}

// Pipeline orchestrates crawler, corpus, retriever, and generator per
// external request. It holds no request state of its own.
type Pipeline struct {
	crawler         *crawler.Crawler
	corpus          *corpus.Corpus
	retriever       *retrieval.Retriever
	generator       *generation.Generator
	topK            int
	contextDocChars int
	logger          *slog.Logger
}

// NewPipeline creates a Pipeline. Zero values for topK and contextDocChars
// select the defaults.
func NewPipeline(
	crawl *crawler.Crawler,
	store *corpus.Corpus,
	retriever *retrieval.Retriever,
	generator *generation.Generator,
	topK int,
	contextDocChars int,
	logger *slog.Logger,
) *Pipeline {
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	if contextDocChars <= 0 {
		contextDocChars = DefaultContextDocChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		crawler:         crawl,
		corpus:          store,
		retriever:       retriever,
		generator:       generator,
		topK:            topK,
		contextDocChars: contextDocChars,
		logger:          logger,
	}
}

// Crawl traverses from seedURL and ingests the extracted pages, returning
// how many documents were newly indexed.
func (p *Pipeline) Crawl(ctx context.Context, seedURL string, maxDepth int) (int, error) {
	p.logger.Info("crawl requested", "url", seedURL, "depth", maxDepth)
	pages := p.crawler.Crawl(ctx, seedURL, maxDepth)
	count, err := p.corpus.Ingest(ctx, pages)
	if err != nil {
		return 0, fmt.Errorf("ingest crawled pages: %w", err)
	}
	return count, nil
}

// Count returns the corpus size.
func (p *Pipeline) Count(ctx context.Context) (int, error) {
	return p.corpus.Count(ctx)
}

// Answer runs the retrieve-and-answer flow. A URL inside the query triggers
// an auto-crawl before retrieval. fileContext, when present, is prepended to
// the retrieved context so a just-uploaded file outranks the stored corpus.
//
// Failures inside the flow degrade the answer's quality, never its
// availability: retrieval errors fall back to the no-context path, and
// generation exhaustion surfaces as its sentinel answer.
func (p *Pipeline) Answer(ctx context.Context, query string, history []generation.Turn, fileContext string) Answer {
	p.logger.Info("query received", "query", query)

	if found := urlPattern.FindString(query); found != "" {
		if _, err := p.Crawl(ctx, found, autoCrawlDepth); err != nil {
			p.logger.Warn("auto-crawl failed", "url", found, "error", err)
		}
	}

	var contextText strings.Builder
	var sources []string

	if fileContext != "" {
		contextText.WriteString("\n=== CURRENTLY UPLOADED FILE CONTENT ===\n")
		contextText.WriteString(fileContext)
		contextText.WriteString("\n=======================================\n")
		sources = append(sources, uploadedFileSource)
	}

	results, err := p.retriever.Retrieve(ctx, query, p.topK)
	if err != nil {
		p.logger.Error("retrieval failed, answering without corpus context", "error", err)
		results = nil
	}

	for _, result := range results {
		content := truncateRunes(result.Document.Content, p.contextDocChars)
		fmt.Fprintf(&contextText, "\nSOURCE: %s\nCONTENT:\n%s\n---\n", result.Document.URL, content)
		sources = append(sources, result.Document.URL)
	}

	if contextText.Len() == 0 {
		p.logger.Info("no context available for query")
		return Answer{Text: NoInformationAnswer}
	}

	prompt := fmt.Sprintf(systemPromptFormat, contextText.String())
	text := p.generator.Generate(ctx, prompt, history, query)

	return Answer{Text: text, Sources: dedupe(sources)}
}

// truncateRunes shortens s to at most max bytes without splitting a rune,
// backing up to the nearest boundary so the result stays valid UTF-8.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// dedupe removes duplicate sources while preserving first-seen order.
func dedupe(sources []string) []string {
	seen := make(map[string]struct{}, len(sources))
	out := sources[:0]
	for _, s := range sources {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

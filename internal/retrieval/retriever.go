// Package retrieval ranks corpus documents against a query with a weighted
// blend of vector similarity, keyword overlap, and a rare-term boost.
//
// Pure embedding similarity under-ranks distinctive identifiers (names, API
// symbols) that matter disproportionately to technical queries, while pure
// keyword matching misses paraphrase. The weighted sum is a deliberately
// simple, auditable compromise rather than a learned ranker.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/docent-ai/docent/internal/similarity"
	"github.com/docent-ai/docent/internal/storage"
)

const (
	// DefaultTopK is the shortlist size returned when the caller passes 0.
	DefaultTopK = 3

	// rarityMinLength and rarityMaxCount gate the rare-term boost: a matched
	// token longer than rarityMinLength occurring fewer than rarityMaxCount
	// times in a document earns the flat bonus. Policy constants, not derived.
	rarityMinLength = 4
	rarityMaxCount  = 5

	// shortlistFactor and shortlistFloor size the nearest-neighbor candidate
	// set fetched from vector-capable stores before hybrid re-ranking.
	shortlistFactor = 8
	shortlistFloor  = 24
)

// Weights are the scoring blend coefficients.
type Weights struct {
	Semantic float64 // multiplies cosine similarity
	Lexical  float64 // multiplies the matched-token fraction
	Rarity   float64 // flat bonus per rare matched token
}

// DefaultWeights favors the semantic term roughly 70/30 over the lexical one.
var DefaultWeights = Weights{Semantic: 70, Lexical: 30, Rarity: 10}

// Source lists the candidate documents. Stores that also implement
// storage.NearestQuerier get their native search used for candidate
// pre-selection when a query vector is available.
type Source interface {
	List(ctx context.Context) ([]*storage.Document, error)
}

// Embedder supplies the query vector; nil means no semantic signal.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Retriever scores and ranks documents for queries.
type Retriever struct {
	source    Source
	embedder  Embedder
	weights   Weights
	stopWords map[string]struct{}
	logger    *slog.Logger
}

// New creates a Retriever. Zero-value weights select DefaultWeights.
func New(source Source, embedder Embedder, weights Weights, logger *slog.Logger) *Retriever {
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		source:    source,
		embedder:  embedder,
		weights:   weights,
		stopWords: defaultStopWords,
		logger:    logger,
	}
}

// Retrieve returns up to topK documents ranked by composite score, highest
// first. Documents scoring zero or below are dropped, ties keep corpus
// order, and an empty corpus yields an empty result without error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]*storage.ScoredDocument, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	tokens := r.filterTokens(query)
	queryVector := r.embedder.Embed(ctx, query)

	docs, err := r.candidates(ctx, queryVector, topK)
	if err != nil {
		return nil, err
	}

	scored := make([]*storage.ScoredDocument, 0, len(docs))
	for _, doc := range docs {
		score := r.score(tokens, queryVector, doc)
		if score <= 0 {
			continue
		}
		scored = append(scored, &storage.ScoredDocument{Document: doc, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}

	r.logger.Debug("retrieval complete", "query_tokens", len(tokens), "results", len(scored))
	return scored, nil
}

// candidates selects the documents to score. Vector-capable stores narrow to
// a nearest-neighbor shortlist when the query has a vector; everything else
// scores the full corpus listing.
func (r *Retriever) candidates(ctx context.Context, queryVector []float32, topK int) ([]*storage.Document, error) {
	if nq, ok := r.source.(storage.NearestQuerier); ok && len(queryVector) > 0 {
		k := topK * shortlistFactor
		if k < shortlistFloor {
			k = shortlistFloor
		}
		shortlist, err := nq.QueryNearest(ctx, queryVector, k)
		if err != nil {
			return nil, fmt.Errorf("nearest-neighbor shortlist: %w", err)
		}
		docs := make([]*storage.Document, len(shortlist))
		for i, hit := range shortlist {
			docs[i] = hit.Document
		}
		return docs, nil
	}

	docs, err := r.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}
	return docs, nil
}

// score computes the composite ranking score for one document.
func (r *Retriever) score(tokens []string, queryVector []float32, doc *storage.Document) float64 {
	score := similarity.Cosine(queryVector, doc.Vector) * r.weights.Semantic

	if len(tokens) == 0 {
		return score
	}

	content := strings.ToLower(doc.Content)
	matched := 0
	for _, token := range tokens {
		if !strings.Contains(content, token) {
			continue
		}
		matched++
		if len(token) > rarityMinLength && strings.Count(content, token) < rarityMaxCount {
			score += r.weights.Rarity
		}
	}

	return score + float64(matched)/float64(len(tokens))*r.weights.Lexical
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// filterTokens lowercases the query, splits it into word tokens, and drops
// stop words.
func (r *Retriever) filterTokens(query string) []string {
	var tokens []string
	for _, token := range wordPattern.FindAllString(strings.ToLower(query), -1) {
		if _, stop := r.stopWords[token]; stop {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

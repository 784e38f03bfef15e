package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// CollectionName is the single Qdrant collection holding the corpus.
const CollectionName = "documents"

// vectorName is the named vector carrying the content embedding. Documents
// whose embedding has not been computed yet are stored without it.
const vectorName = "content"

// QdrantStore is the vector-capable Store backend. Point IDs are derived
// deterministically from the document URL, so Upsert replaces re-ingested
// pages in place.
type QdrantStore struct {
	client    *qdrant.Client
	host      string
	port      int
	dimension uint64
}

// NewQdrantStore creates a Qdrant-backed store with health validation.
// It performs a health check with retry on startup and fails fast if Qdrant
// is unreachable.
func NewQdrantStore(host string, port, dimension int) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	store := &QdrantStore{
		client:    client,
		host:      host,
		port:      port,
		dimension: uint64(dimension),
	}

	ctx := context.Background()
	if err := store.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return store, nil
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the documents collection if it does not exist,
// configured with a named cosine-distance vector of the embedding dimension.
// Idempotent - safe to call multiple times.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     s.dimension,
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Index the URL field so Get filters stay fast as the corpus grows.
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: CollectionName,
		FieldName:      "url",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create url index: %w", err)
	}

	return nil
}

// PointID derives the deterministic Qdrant point ID for a document URL.
func PointID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

// Upsert stores documents, replacing any previous version of the same URL.
func (s *QdrantStore) Upsert(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		if doc.Content == "" {
			return fmt.Errorf("%w: %s", ErrEmptyContent, doc.URL)
		}

		vectors := map[string]*qdrant.Vector{}
		if len(doc.Vector) > 0 {
			if uint64(len(doc.Vector)) != s.dimension {
				return fmt.Errorf("%w: %s has %d dimensions, expected %d",
					ErrDimensionMismatch, doc.URL, len(doc.Vector), s.dimension)
			}
			vectors[vectorName] = qdrant.NewVector(doc.Vector...)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(doc.URL)),
			Vectors: qdrant.NewVectorsMap(vectors),
			Payload: qdrant.NewValueMap(map[string]any{
				"url":        doc.URL,
				"title":      doc.Title,
				"content":    doc.Content,
				"indexed_at": doc.IndexedAt.Format(time.RFC3339),
			}),
		})
	}

	return s.upsertWithRetry(ctx, points)
}

// upsertWithRetry performs the upsert with exponential backoff retry.
func (s *QdrantStore) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// Get retrieves a document by URL. Returns ErrDocumentNotFound if no point
// exists for it.
func (s *QdrantStore) Get(ctx context.Context, url string) (*Document, error) {
	result, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: CollectionName,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(PointID(url))},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if len(result) == 0 {
		return nil, ErrDocumentNotFound
	}

	return pointToDocument(result[0].Payload, result[0].Vectors), nil
}

// List returns every stored document using the Scroll API.
// Qdrant does not preserve insertion order; documents come back in point-ID
// order, which is stable across calls.
func (s *QdrantStore) List(ctx context.Context) ([]*Document, error) {
	var docs []*Document
	var offset *qdrant.PointId

	batchSize := uint32(100)

	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: CollectionName,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll documents: %w", err)
		}

		for _, result := range results {
			docs = append(docs, pointToDocument(result.Payload, result.Vectors))
		}

		if uint32(len(results)) < batchSize {
			break
		}
		offset = results[len(results)-1].Id
	}

	return docs, nil
}

// Count returns the number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	collection, err := s.client.GetCollectionInfo(ctx, CollectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection: %w", err)
	}
	return int(collection.GetPointsCount()), nil
}

// QueryNearest performs native vector search, returning the k most similar
// documents with their cosine scores.
func (s *QdrantStore) QueryNearest(ctx context.Context, vector []float32, k int) ([]*ScoredDocument, error) {
	if uint64(len(vector)) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}

	using := vectorName
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Using:          &using,
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	scored := make([]*ScoredDocument, 0, len(results))
	for _, result := range results {
		scored = append(scored, &ScoredDocument{
			Document: pointToDocument(result.Payload, result.Vectors),
			Score:    float64(result.Score),
		})
	}
	return scored, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// pointToDocument rebuilds a Document from a point's payload and vectors.
func pointToDocument(payload map[string]*qdrant.Value, vectors *qdrant.VectorsOutput) *Document {
	indexedAt, err := time.Parse(time.RFC3339, payload["indexed_at"].GetStringValue())
	if err != nil {
		indexedAt = time.Time{} // Use zero time if parse fails
	}

	doc := &Document{
		URL:       payload["url"].GetStringValue(),
		Title:     payload["title"].GetStringValue(),
		Content:   payload["content"].GetStringValue(),
		IndexedAt: indexedAt,
	}

	if vectors != nil {
		if named := vectors.GetVectors(); named != nil {
			if v, ok := named.GetVectors()[vectorName]; ok {
				doc.Vector = v.GetData()
			}
		}
	}

	return doc
}

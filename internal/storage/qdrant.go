package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// pointNamespace derives deterministic point ids from chunk ids, so
// re-exporting the same index overwrites instead of duplicating.
var pointNamespace = uuid.MustParse("6f1d3c1e-8a0b-4c55-9a57-5be3c1f0a2d4")

// upsertBatchSize is the number of points sent per upsert.
const upsertBatchSize = 100

// ScoredChunk is a chunk returned from a Qdrant search with its score.
type ScoredChunk struct {
	Chunk ContextualChunk
	Score float64
}

// QdrantStorage wraps the Qdrant client with connection management and health checks.
type QdrantStorage struct {
	client     *qdrant.Client
	host       string
	port       int
	collection string
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStorage(host string, port int, collection string) (*QdrantStorage, error) {
	if collection == "" {
		collection = DefaultCollectionName
	}

	// Create Qdrant client using gRPC
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client:     client,
		host:       host,
		port:       port,
		collection: collection,
	}

	err = storage.healthCheckWithRetry(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return storage, nil
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return retryable(s.Health(ctx))
	}, backoff.WithContext(newBackoff(), ctx))
}

// retryable marks errors that another attempt cannot fix as permanent, so
// backoff.Retry returns them at once.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists,
		codes.PermissionDenied, codes.Unauthenticated, codes.FailedPrecondition,
		codes.OutOfRange, codes.Unimplemented, codes.Canceled:
		return backoff.Permanent(err)
	}
	return err
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

// Collection returns the collection name entries are exported to.
func (s *QdrantStorage) Collection() string {
	return s.collection
}

// EnsureCollection creates the collection with dot-product distance for
// vectors of the given dimension. Idempotent.
func (s *QdrantStorage) EnsureCollection(ctx context.Context, dim int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Dot,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	for _, field := range []string{"doc_id", "chunk_id"} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// ClearCollection deletes the collection and recreates it empty.
func (s *QdrantStorage) ClearCollection(ctx context.Context, dim int) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.EnsureCollection(ctx, dim)
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// PointID is the deterministic Qdrant point id for a chunk.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func (s *QdrantStorage) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return retryable(err)
	}

	return backoff.Retry(operation, backoff.WithContext(newBackoff(), ctx))
}

// UpsertEntries stores index-aligned embeddings and records, in batches of 100.
func (s *QdrantStorage) UpsertEntries(ctx context.Context, embeddings [][]float32, metadata []ContextualChunk) error {
	if len(embeddings) != len(metadata) {
		return fmt.Errorf("%w: %d embeddings, %d records",
			ErrMisalignedSnapshot, len(embeddings), len(metadata))
	}

	for i := 0; i < len(metadata); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(metadata))

		points := make([]*qdrant.PointStruct, 0, end-i)
		for j := i; j < end; j++ {
			m := metadata[j]
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(PointID(m.ChunkID)),
				Vectors: qdrant.NewVectors(embeddings[j]...),
				Payload: qdrant.NewValueMap(payloadFor(m)),
			})
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

func payloadFor(m ContextualChunk) map[string]any {
	return map[string]any{
		"doc_id":                 m.DocID,
		"original_uuid":          m.OriginalUUID,
		"chunk_id":               m.ChunkID,
		"original_index":         m.OriginalIndex,
		"original_content":       m.OriginalContent,
		"contextualized_content": m.ContextualizedContent,
	}
}

func chunkFromPayload(payload map[string]*qdrant.Value) ContextualChunk {
	return ContextualChunk{
		DocID:                 payload["doc_id"].GetStringValue(),
		OriginalUUID:          payload["original_uuid"].GetStringValue(),
		ChunkID:               payload["chunk_id"].GetStringValue(),
		OriginalIndex:         int(payload["original_index"].GetIntegerValue()),
		OriginalContent:       payload["original_content"].GetStringValue(),
		ContextualizedContent: payload["contextualized_content"].GetStringValue(),
	}
}

// SearchEntries returns the top limit chunks by dot-product score.
func (s *QdrantStorage) SearchEntries(ctx context.Context, embedding []float32, limit int) ([]*ScoredChunk, error) {
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	scored := make([]*ScoredChunk, 0, len(results))
	for _, result := range results {
		scored = append(scored, &ScoredChunk{
			Chunk: chunkFromPayload(result.Payload),
			Score: float64(result.Score),
		})
	}

	return scored, nil
}

// CollectionInfo contains collection statistics.
type CollectionInfo struct {
	PointsCount uint64
}

// GetCollectionInfo retrieves collection statistics including total points count.
func (s *QdrantStorage) GetCollectionInfo(ctx context.Context) (*CollectionInfo, error) {
	collection, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	return &CollectionInfo{
		PointsCount: collection.GetPointsCount(),
	}, nil
}

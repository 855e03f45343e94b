package embedding

import (
	"context"
	"fmt"

	"github.com/bull/contextual-rag/internal/provider"
)

const (
	// DefaultModel is the OpenAI model used for generating embeddings.
	DefaultModel = "text-embedding-3-small"

	// MaxBatchSize is the maximum number of texts sent in one embedding request.
	MaxBatchSize = 128
)

// Embedder converts texts into vectors via a remote embedding endpoint,
// splitting the input into requests of at most MaxBatchSize texts.
type Embedder struct {
	client    provider.EmbeddingCreator
	model     string
	batchSize int
}

// NewEmbedder creates a new Embedder. An empty model selects DefaultModel and
// a batchSize outside 1..MaxBatchSize selects MaxBatchSize.
func NewEmbedder(client provider.EmbeddingCreator, model string, batchSize int) *Embedder {
	if model == "" {
		model = DefaultModel
	}
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &Embedder{
		client:    client,
		model:     model,
		batchSize: batchSize,
	}
}

// Model returns the embedding model id.
func (e *Embedder) Model() string {
	return e.model
}

// EmbedBatch returns one vector per text, result[i] being the embedding of texts[i].
// Partitions are requested sequentially; any failure aborts the whole call and
// no partial result is returned.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	allEmbeddings := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch := texts[i:end]

		embeddings, err := e.client.CreateEmbeddings(ctx, provider.EmbeddingRequest{
			Model:  e.model,
			Inputs: batch,
		})
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end,
				provider.Errorf("embed batch", "got %d vectors for %d texts", len(embeddings), len(batch)))
		}
		allEmbeddings = append(allEmbeddings, embeddings...)
	}

	return allEmbeddings, nil
}

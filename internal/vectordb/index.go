// Package vectordb holds the embedded corpus in memory and answers exact
// top-k similarity queries against it.
package vectordb

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/bull/contextual-rag/internal/provider"
	"github.com/bull/contextual-rag/internal/storage"
)

// DefaultK is the number of results returned when callers don't choose.
const DefaultK = 20

// Embedder converts texts into order-aligned vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFactory returns an embedder for an embedding model. It is used when
// a restored snapshot was built with a different embedding model.
type EmbedderFactory func(model string) Embedder

// SearchResult is one ranked entry.
type SearchResult struct {
	Metadata   storage.ContextualChunk `json:"metadata"`
	Similarity float64                 `json:"similarity"`
}

// SearchResponse carries the outcome of SearchAsync.
type SearchResponse struct {
	Results []SearchResult
	Err     error
}

// Index is an in-memory vector index. embeddings[i] always belongs to
// metadata[i]; both are replaced together or not at all.
type Index struct {
	newEmbedder EmbedderFactory
	logger      *slog.Logger

	mu         sync.RWMutex
	embedder   Embedder
	config     storage.IndexConfig
	embeddings [][]float32
	metadata   []storage.ContextualChunk

	cacheMu    sync.Mutex
	queryCache map[string][]float32
}

// NewIndex creates an empty index whose embedder is newEmbedder(cfg.EmbeddingModel).
func NewIndex(newEmbedder EmbedderFactory, cfg storage.IndexConfig, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		newEmbedder: newEmbedder,
		logger:      logger,
		embedder:    newEmbedder(cfg.EmbeddingModel),
		config:      cfg,
		queryCache:  make(map[string][]float32),
	}
}

// Loaded reports whether the index holds any entries.
func (ix *Index) Loaded() bool {
	return ix.Len() > 0
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.embeddings)
}

// Config returns the generation configuration of the indexed corpus.
func (ix *Index) Config() storage.IndexConfig {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.config
}

// CachedQueries returns the number of cached query embeddings.
func (ix *Index) CachedQueries() int {
	ix.cacheMu.Lock()
	defer ix.cacheMu.Unlock()
	return len(ix.queryCache)
}

// Populate embeds original_content + "\n\n" + contextualized_content for each
// record in one ordered batch and stores the result. It is a no-op when the
// index is already loaded.
func (ix *Index) Populate(ctx context.Context, records []storage.ContextualChunk) error {
	if ix.Loaded() {
		ix.logger.Info("Vector database is already loaded, skipping populate")
		return nil
	}
	if len(records) == 0 {
		return ErrEmptyCorpus
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.EmbeddingText()
	}

	ix.mu.RLock()
	embedder := ix.embedder
	ix.mu.RUnlock()

	embeddings, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		ix.logger.Error("Embedding corpus failed", "records", len(records), "error", err)
		return fmt.Errorf("embed corpus: %w", err)
	}
	if len(embeddings) != len(records) {
		return fmt.Errorf("embed corpus: %w",
			provider.Errorf("embed batch", "got %d vectors for %d records", len(embeddings), len(records)))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if len(ix.embeddings) > 0 {
		// Lost a race with a concurrent populate.
		return nil
	}
	ix.embeddings = embeddings
	ix.metadata = append([]storage.ContextualChunk(nil), records...)

	ix.logger.Info("Populated vector index", "entries", len(records))
	return nil
}

// Restore replaces the whole index state, query cache included, with snap.
// The embedder is switched when the snapshot used another embedding model.
func (ix *Index) Restore(snap *storage.Snapshot) error {
	if len(snap.Embeddings) != len(snap.Metadata) {
		return fmt.Errorf("%w: %d embeddings, %d records",
			storage.ErrMisalignedSnapshot, len(snap.Embeddings), len(snap.Metadata))
	}

	cache := make(map[string][]float32, len(snap.QueryCache))
	for k, v := range snap.QueryCache {
		cache[k] = v
	}

	ix.mu.Lock()
	if snap.Config.EmbeddingModel != ix.config.EmbeddingModel {
		ix.logger.Info("Using snapshot embedding model",
			"configured", ix.config.EmbeddingModel,
			"snapshot", snap.Config.EmbeddingModel,
		)
		ix.embedder = ix.newEmbedder(snap.Config.EmbeddingModel)
	}
	ix.config = snap.Config
	ix.embeddings = snap.Embeddings
	ix.metadata = snap.Metadata
	ix.mu.Unlock()

	ix.cacheMu.Lock()
	ix.queryCache = cache
	ix.cacheMu.Unlock()

	return nil
}

// Snapshot returns a copy of the index state for persistence.
func (ix *Index) Snapshot() *storage.Snapshot {
	ix.mu.RLock()
	snap := &storage.Snapshot{
		Embeddings: append([][]float32(nil), ix.embeddings...),
		Metadata:   append([]storage.ContextualChunk(nil), ix.metadata...),
		Config:     ix.config,
	}
	ix.mu.RUnlock()

	ix.cacheMu.Lock()
	snap.QueryCache = make(map[string][]float32, len(ix.queryCache))
	for k, v := range ix.queryCache {
		snap.QueryCache[k] = v
	}
	ix.cacheMu.Unlock()

	return snap
}

// queryEmbedding returns the cached vector for query, embedding and caching it
// on first use. Concurrent first uses may both call the embedder; the first
// stored vector wins.
func (ix *Index) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	ix.cacheMu.Lock()
	vec, ok := ix.queryCache[query]
	ix.cacheMu.Unlock()
	if ok {
		return vec, nil
	}

	ix.mu.RLock()
	embedder := ix.embedder
	ix.mu.RUnlock()

	vectors, err := embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: %w",
			provider.Errorf("embed batch", "got %d vectors for 1 query", len(vectors)))
	}

	ix.cacheMu.Lock()
	defer ix.cacheMu.Unlock()
	if existing, ok := ix.queryCache[query]; ok {
		return existing, nil
	}
	ix.queryCache[query] = vectors[0]
	return vectors[0], nil
}

// Search returns the k entries with the highest dot-product similarity to
// query, ties going to the earlier entry. k is clamped to the corpus size and
// k <= 0 yields no results.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if !ix.Loaded() {
		return nil, ErrEmptyIndex
	}
	if k <= 0 {
		return []SearchResult{}, nil
	}

	qv, err := ix.queryEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	scores := make([]float64, len(ix.embeddings))
	for i, v := range ix.embeddings {
		if len(v) != len(qv) {
			return nil, fmt.Errorf("%w: query has %d dimensions, entry %d has %d",
				storage.ErrDimensionMismatch, len(qv), i, len(v))
		}
		scores[i] = dot(qv, v)
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	k = min(k, len(order))
	results := make([]SearchResult, k)
	for n, idx := range order[:k] {
		results[n] = SearchResult{
			Metadata:   ix.metadata[idx],
			Similarity: scores[idx],
		}
	}
	return results, nil
}

// SearchAsync runs Search in a goroutine and delivers its outcome on the
// returned channel, which is closed afterwards.
func (ix *Index) SearchAsync(ctx context.Context, query string, k int) <-chan SearchResponse {
	ch := make(chan SearchResponse, 1)
	go func() {
		defer close(ch)
		results, err := ix.Search(ctx, query, k)
		ch <- SearchResponse{Results: results, Err: err}
	}()
	return ch
}

// dot accumulates in float64. Vectors are expected to be normalized by the
// embedding model, so this approximates cosine similarity.
func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// Package indexer enriches every chunk of a dataset with situating context
// under bounded concurrency.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bull/contextual-rag/internal/provider"
	"github.com/bull/contextual-rag/internal/storage"
)

// DefaultParallelRequests is the in-flight request limit when none is configured.
const DefaultParallelRequests = 5

// ContextGenerator produces the situating context for one chunk.
type ContextGenerator interface {
	Generate(ctx context.Context, document, chunk string) (string, provider.Usage, error)
}

// ProgressFunc is called after each completed chunk. Calls are serialized.
type ProgressFunc func(done, total int)

// Pipeline orchestrates context generation across all (document, chunk) pairs.
type Pipeline struct {
	generator ContextGenerator
	parallel  int
	logger    *slog.Logger

	progressMu sync.Mutex
	progress   ProgressFunc
}

// NewPipeline creates a pipeline running at most parallelRequests generator
// calls at once.
func NewPipeline(generator ContextGenerator, parallelRequests int, logger *slog.Logger) *Pipeline {
	if parallelRequests <= 0 {
		parallelRequests = DefaultParallelRequests
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		generator: generator,
		parallel:  parallelRequests,
		logger:    logger,
	}
}

// SetProgress installs a progress callback. It does not affect control flow.
func (p *Pipeline) SetProgress(fn ProgressFunc) {
	p.progressMu.Lock()
	defer p.progressMu.Unlock()
	p.progress = fn
}

// task is one (document, chunk) pair at a fixed position in the flattened list.
type task struct {
	doc   *storage.Document
	chunk *storage.Chunk
}

// flatten lists pairs in document order, then chunk order.
func flatten(docs []storage.Document) []task {
	var tasks []task
	for i := range docs {
		for j := range docs[i].Chunks {
			tasks = append(tasks, task{doc: &docs[i], chunk: &docs[i].Chunks[j]})
		}
	}
	return tasks
}

// Build generates context for every chunk and returns one record per chunk in
// flattened task order, independent of completion order. The first failure
// stops new calls from being issued; calls already in flight finish, then the
// error is returned and no records are.
func (p *Pipeline) Build(ctx context.Context, docs []storage.Document) ([]storage.ContextualChunk, error) {
	start := time.Now()
	tasks := flatten(docs)
	results := make([]storage.ContextualChunk, len(tasks))
	total := len(tasks)

	p.logger.Info("Generating chunk context",
		"documents", len(docs),
		"chunks", total,
		"parallel", p.parallel,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)

	p.progressMu.Lock()
	progress := p.progress
	p.progressMu.Unlock()

	var (
		doneMu sync.Mutex
		done   int
	)
	complete := func() {
		doneMu.Lock()
		defer doneMu.Unlock()
		done++
		if progress != nil {
			progress(done, total)
		}
	}

	for i, t := range tasks {
		// Stop issuing work once a task has failed.
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			// In-flight calls use the parent context so they drain on failure.
			text, _, err := p.generator.Generate(ctx, t.doc.Content, t.chunk.Content)
			if err != nil {
				p.logger.Error("Context generation failed",
					"doc_id", t.doc.DocID,
					"chunk_id", t.chunk.ChunkID,
					"error", err,
				)
				return fmt.Errorf("doc %s chunk %s: %w", t.doc.DocID, t.chunk.ChunkID, err)
			}

			results[i] = storage.ContextualChunk{
				DocID:                 t.doc.DocID,
				OriginalUUID:          t.doc.OriginalUUID,
				ChunkID:               t.chunk.ChunkID,
				OriginalIndex:         t.chunk.OriginalIndex,
				OriginalContent:       t.chunk.Content,
				ContextualizedContent: text,
			}

			complete()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Cancellation can stop the loop before any task observes it.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Info("Chunk context complete",
		"chunks", total,
		"duration", time.Since(start),
	)

	return results, nil
}

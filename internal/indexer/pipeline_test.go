package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/contextual-rag/internal/provider"
	"github.com/bull/contextual-rag/internal/storage"
)

// fakeGenerator returns "ctx:<chunk>" after a per-chunk delay.
type fakeGenerator struct {
	delay    func(chunk string) time.Duration
	fail     map[string]error
	calls    atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, chunk string) (string, provider.Usage, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.delay != nil {
		time.Sleep(f.delay(chunk))
	}
	if err, ok := f.fail[chunk]; ok {
		return "", provider.Usage{}, err
	}
	return "ctx:" + chunk, provider.Usage{}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeDocs(nDocs, nChunks int) []storage.Document {
	docs := make([]storage.Document, nDocs)
	for d := range docs {
		docs[d] = storage.Document{
			DocID:        fmt.Sprintf("doc_%d", d),
			OriginalUUID: fmt.Sprintf("uuid-%d", d),
			Content:      fmt.Sprintf("document %d", d),
		}
		for c := 0; c < nChunks; c++ {
			docs[d].Chunks = append(docs[d].Chunks, storage.Chunk{
				ChunkID:       fmt.Sprintf("doc_%d_chunk_%d", d, c),
				OriginalIndex: c,
				Content:       fmt.Sprintf("d%dc%d", d, c),
			})
		}
	}
	return docs
}

func TestBuild_PreservesTaskOrder(t *testing.T) {
	docs := makeDocs(4, 5)
	// Later chunks finish first.
	gen := &fakeGenerator{delay: func(chunk string) time.Duration {
		var d, c int
		fmt.Sscanf(chunk, "d%dc%d", &d, &c)
		return time.Duration(20-(d*5+c)) * time.Millisecond
	}}

	p := NewPipeline(gen, 8, quietLogger())
	records, err := p.Build(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, records, 20)

	i := 0
	for _, doc := range docs {
		for _, chunk := range doc.Chunks {
			r := records[i]
			assert.Equal(t, doc.DocID, r.DocID)
			assert.Equal(t, doc.OriginalUUID, r.OriginalUUID)
			assert.Equal(t, chunk.ChunkID, r.ChunkID)
			assert.Equal(t, chunk.OriginalIndex, r.OriginalIndex)
			assert.Equal(t, chunk.Content, r.OriginalContent)
			assert.Equal(t, "ctx:"+chunk.Content, r.ContextualizedContent)
			i++
		}
	}
}

func TestBuild_BoundsConcurrency(t *testing.T) {
	gen := &fakeGenerator{delay: func(string) time.Duration { return 5 * time.Millisecond }}

	p := NewPipeline(gen, 3, quietLogger())
	_, err := p.Build(context.Background(), makeDocs(3, 6))
	require.NoError(t, err)

	assert.LessOrEqual(t, gen.peak.Load(), int64(3))
	assert.Equal(t, int64(18), gen.calls.Load())
}

func TestBuild_FailureAbortsWithoutResults(t *testing.T) {
	boom := &provider.Error{Op: "chat completion", Err: errors.New("boom")}
	gen := &fakeGenerator{fail: map[string]error{"d0c1": boom}}

	p := NewPipeline(gen, 1, quietLogger())
	records, err := p.Build(context.Background(), makeDocs(5, 5))
	require.Error(t, err)
	assert.Nil(t, records)
	assert.ErrorIs(t, err, provider.ErrProvider)
	assert.Contains(t, err.Error(), "doc_0_chunk_1")

	// With one worker nothing is issued after the failing call.
	assert.Equal(t, int64(2), gen.calls.Load())
}

func TestBuild_NoMemoization(t *testing.T) {
	gen := &fakeGenerator{}
	p := NewPipeline(gen, 4, quietLogger())
	docs := makeDocs(2, 3)

	_, err := p.Build(context.Background(), docs)
	require.NoError(t, err)
	_, err = p.Build(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, int64(12), gen.calls.Load())
}

func TestBuild_ReportsProgress(t *testing.T) {
	p := NewPipeline(&fakeGenerator{}, 4, quietLogger())

	var mu sync.Mutex
	var seen []int
	p.SetProgress(func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 6, total)
		seen = append(seen, done)
	})

	_, err := p.Build(context.Background(), makeDocs(2, 3))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, seen)
}

func TestBuild_EmptyDataset(t *testing.T) {
	gen := &fakeGenerator{}
	records, err := NewPipeline(gen, 0, nil).Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int64(0), gen.calls.Load())
}

func TestBuild_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &fakeGenerator{}
	records, err := NewPipeline(gen, 2, quietLogger()).Build(ctx, makeDocs(2, 2))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, records)
	assert.Equal(t, int64(0), gen.calls.Load())
}

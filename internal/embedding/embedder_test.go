package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/contextual-rag/internal/provider"
)

// fakeEmbeddings encodes each input's position in the overall call sequence
// so ordering can be checked.
type fakeEmbeddings struct {
	requests [][]string
	failOn   int // 1-based request number to fail, 0 for never
	short    bool
}

func (f *fakeEmbeddings) CreateEmbeddings(_ context.Context, req provider.EmbeddingRequest) ([][]float32, error) {
	f.requests = append(f.requests, req.Inputs)
	if f.failOn == len(f.requests) {
		return nil, &provider.Error{Op: "create embeddings", Err: errors.New("rate limited")}
	}
	n := len(req.Inputs)
	if f.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		var id float32
		fmt.Sscanf(req.Inputs[i], "t%f", &id)
		out[i] = []float32{id}
	}
	return out, nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("t%d", i)
	}
	return out
}

func TestEmbedBatch_PartitionsAndPreservesOrder(t *testing.T) {
	fake := &fakeEmbeddings{}
	e := NewEmbedder(fake, "", 0)

	in := texts(300)
	got, err := e.EmbedBatch(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, fake.requests, 3)
	assert.Len(t, fake.requests[0], 128)
	assert.Len(t, fake.requests[1], 128)
	assert.Len(t, fake.requests[2], 44)

	require.Len(t, got, 300)
	for i, v := range got {
		assert.Equal(t, float32(i), v[0], "vector %d out of order", i)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	fake := &fakeEmbeddings{}
	e := NewEmbedder(fake, "m", 0)

	got, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, fake.requests)
}

func TestEmbedBatch_FailureAbortsWholeBatch(t *testing.T) {
	fake := &fakeEmbeddings{failOn: 2}
	e := NewEmbedder(fake, "m", 0)

	got, err := e.EmbedBatch(context.Background(), texts(200))
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, provider.ErrProvider)
	assert.Len(t, fake.requests, 2)
}

func TestEmbedBatch_ShortResponseIsProviderError(t *testing.T) {
	e := NewEmbedder(&fakeEmbeddings{short: true}, "m", 0)

	_, err := e.EmbedBatch(context.Background(), texts(3))
	assert.ErrorIs(t, err, provider.ErrProvider)
}

func TestNewEmbedder_Defaults(t *testing.T) {
	e := NewEmbedder(&fakeEmbeddings{}, "", 1000)
	assert.Equal(t, DefaultModel, e.Model())
	assert.Equal(t, MaxBatchSize, e.batchSize)

	e = NewEmbedder(&fakeEmbeddings{}, "custom", 16)
	assert.Equal(t, "custom", e.Model())
	assert.Equal(t, 16, e.batchSize)
}

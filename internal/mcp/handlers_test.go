package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/contextual-rag/internal/storage"
	"github.com/bull/contextual-rag/internal/vectordb"
)

type fakeIndex struct {
	results []vectordb.SearchResult
	err     error
	gotK    int
	gotQ    string
	cached  int
}

func (f *fakeIndex) Search(_ context.Context, query string, k int) ([]vectordb.SearchResult, error) {
	f.gotQ, f.gotK = query, k
	if f.err != nil {
		return nil, f.err
	}
	if k <= 0 {
		return []vectordb.SearchResult{}, nil
	}
	return f.results[:min(k, len(f.results))], nil
}

func intPtr(n int) *int { return &n }

func (f *fakeIndex) Loaded() bool                { return len(f.results) > 0 }
func (f *fakeIndex) Len() int                    { return len(f.results) }
func (f *fakeIndex) CachedQueries() int          { return f.cached }
func (f *fakeIndex) Config() storage.IndexConfig { return storage.DefaultIndexConfig() }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadedIndex() *fakeIndex {
	return &fakeIndex{
		cached: 3,
		results: []vectordb.SearchResult{
			{
				Metadata: storage.ContextualChunk{
					DocID: "doc_1", ChunkID: "doc_1_chunk_2", OriginalIndex: 2,
					OriginalContent: "Permafrost thaw", ContextualizedContent: "Arctic report, section 3",
				},
				Similarity: 0.91,
			},
			{
				Metadata:   storage.ContextualChunk{DocID: "doc_2", ChunkID: "doc_2_chunk_0"},
				Similarity: 0.40,
			},
		},
	}
}

func TestSearchHandler(t *testing.T) {
	index := loadedIndex()
	handler := makeSearchHandler(index, quietLogger())

	_, out, err := handler(context.Background(), nil, SearchInput{Query: "permafrost", K: intPtr(1)})
	require.NoError(t, err)

	assert.Equal(t, "permafrost", index.gotQ)
	assert.Equal(t, 1, index.gotK)
	require.Len(t, out.Results, 1)
	assert.Equal(t, SearchResult{
		DocID:                 "doc_1",
		ChunkID:               "doc_1_chunk_2",
		OriginalIndex:         2,
		OriginalContent:       "Permafrost thaw",
		ContextualizedContent: "Arctic report, section 3",
		Similarity:            0.91,
	}, out.Results[0])
	assert.Empty(t, out.Message)
}

func TestSearchHandler_KDefaults(t *testing.T) {
	index := loadedIndex()
	handler := makeSearchHandler(index, quietLogger())

	_, _, err := handler(context.Background(), nil, SearchInput{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, vectordb.DefaultK, index.gotK)

	_, _, err = handler(context.Background(), nil, SearchInput{Query: "q", K: intPtr(5000)})
	require.NoError(t, err)
	assert.Equal(t, maxK, index.gotK)
}

func TestSearchHandler_ExplicitZeroKReturnsNothing(t *testing.T) {
	index := loadedIndex()
	handler := makeSearchHandler(index, quietLogger())

	for _, k := range []int{0, -3} {
		_, out, err := handler(context.Background(), nil, SearchInput{Query: "q", K: intPtr(k)})
		require.NoError(t, err)
		assert.Equal(t, k, index.gotK)
		assert.Empty(t, out.Results)
		assert.NotNil(t, out.Results)
	}
}

func TestSearchHandler_EmptyQuery(t *testing.T) {
	handler := makeSearchHandler(loadedIndex(), quietLogger())

	_, _, err := handler(context.Background(), nil, SearchInput{})
	assert.Error(t, err)
}

func TestSearchHandler_EmptyIndex(t *testing.T) {
	handler := makeSearchHandler(&fakeIndex{err: vectordb.ErrEmptyIndex}, quietLogger())

	_, out, err := handler(context.Background(), nil, SearchInput{Query: "q"})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.NotNil(t, out.Results)
	assert.Contains(t, out.Message, "empty")
}

func TestSearchHandler_ProviderFailure(t *testing.T) {
	boom := errors.New("provider unavailable")
	handler := makeSearchHandler(&fakeIndex{err: boom}, quietLogger())

	_, _, err := handler(context.Background(), nil, SearchInput{Query: "q"})
	assert.ErrorIs(t, err, boom)
}

func TestStatusHandler(t *testing.T) {
	_, out, err := makeStatusHandler(loadedIndex())(context.Background(), nil, StatusInput{})
	require.NoError(t, err)

	assert.Equal(t, StatusOutput{
		Loaded:        true,
		Entries:       2,
		CachedQueries: 3,
		Config:        storage.DefaultIndexConfig(),
	}, out)
}

func TestNewServer(t *testing.T) {
	srv := NewServer(&Config{Index: loadedIndex(), Logger: quietLogger()})
	assert.NotNil(t, srv.MCPServer())
	assert.NotNil(t, NewHTTPHandler(srv, &HTTPHandlerOptions{Stateless: true}))
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		index      *fakeIndex
		wantStatus int
		wantBody   string
	}{
		{"loaded", loadedIndex(), http.StatusOK, "healthy"},
		{"empty", &fakeIndex{}, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.index)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantBody, body.Status)
			assert.Equal(t, tt.index.Len(), body.Entries)
		})
	}
}

func TestLandingHandler(t *testing.T) {
	handler := NewLandingHandler(loadedIndex())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "text-embedding-3-small")
	assert.Contains(t, rec.Body.String(), "<dd>2</dd>")

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewMux_Routes(t *testing.T) {
	srv := NewServer(&Config{Index: &fakeIndex{}, Logger: quietLogger()})
	mux := NewMux(srv, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<dd>0</dd>")
}

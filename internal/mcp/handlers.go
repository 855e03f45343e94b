package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/contextual-rag/internal/storage"
	"github.com/bull/contextual-rag/internal/vectordb"
)

// maxK caps the k a client may request.
const maxK = 100

// Index is the part of vectordb.Index the tools need.
type Index interface {
	Search(ctx context.Context, query string, k int) ([]vectordb.SearchResult, error)
	Loaded() bool
	Len() int
	CachedQueries() int
	Config() storage.IndexConfig
}

// makeSearchHandler creates the search tool handler.
func makeSearchHandler(index Index, logger *slog.Logger) func(
	context.Context, *mcp.CallToolRequest, SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
		*mcp.CallToolResult, SearchOutput, error,
	) {
		if input.Query == "" {
			return nil, SearchOutput{}, errors.New("query must not be empty")
		}
		k := vectordb.DefaultK
		if input.K != nil {
			k = min(*input.K, maxK)
		}

		hits, err := index.Search(ctx, input.Query, k)
		if err != nil {
			if errors.Is(err, vectordb.ErrEmptyIndex) {
				return nil, SearchOutput{
					Results: []SearchResult{},
					Message: "The index is empty. Run the build command first.",
				}, nil
			}
			logger.Error("Search failed", "query", input.Query, "k", k, "error", err)
			return nil, SearchOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]SearchResult, len(hits))
		for i, h := range hits {
			results[i] = SearchResult{
				DocID:                 h.Metadata.DocID,
				ChunkID:               h.Metadata.ChunkID,
				OriginalIndex:         h.Metadata.OriginalIndex,
				OriginalContent:       h.Metadata.OriginalContent,
				ContextualizedContent: h.Metadata.ContextualizedContent,
				Similarity:            h.Similarity,
			}
		}
		if len(results) == 0 {
			return nil, SearchOutput{Results: results, Message: "No matching chunks found."}, nil
		}
		return nil, SearchOutput{Results: results}, nil
	}
}

// makeStatusHandler creates the index_status tool handler.
func makeStatusHandler(index Index) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		return nil, StatusOutput{
			Loaded:        index.Loaded(),
			Entries:       index.Len(),
			CachedQueries: index.CachedQueries(),
			Config:        index.Config(),
		}, nil
	}
}

// Package mcp exposes the contextual vector index as Model Context Protocol tools.
package mcp

import "github.com/bull/contextual-rag/internal/storage"

// SearchInput defines the input parameters for the search tool.
type SearchInput struct {
	// Query is the natural-language search query.
	Query string `json:"query" jsonschema:"the natural-language query to search the indexed chunks for"`
	// K is the number of chunks to return. Nil selects vectordb.DefaultK.
	K *int `json:"k,omitempty" jsonschema:"number of chunks to return (max 100); 20 when omitted, none when 0 or negative"`
}

// SearchOutput contains the ranked chunks.
type SearchOutput struct {
	Results []SearchResult `json:"results"`
	// Message provides informational context (e.g., "No matching chunks found").
	Message string `json:"message,omitempty"`
}

// SearchResult is one ranked chunk.
type SearchResult struct {
	DocID                 string  `json:"doc_id"`
	ChunkID               string  `json:"chunk_id"`
	OriginalIndex         int     `json:"original_index"`
	OriginalContent       string  `json:"original_content"`
	ContextualizedContent string  `json:"contextualized_content"`
	Similarity            float64 `json:"similarity"`
}

// StatusInput takes no parameters.
type StatusInput struct{}

// StatusOutput describes the loaded index.
type StatusOutput struct {
	Loaded        bool                `json:"loaded"`
	Entries       int                 `json:"entries"`
	CachedQueries int                 `json:"cached_queries"`
	Config        storage.IndexConfig `json:"config"`
}

package storage

// Document is a source document and its ordered chunks.
type Document struct {
	DocID        string  `json:"doc_id"`
	OriginalUUID string  `json:"original_uuid"`
	Content      string  `json:"content"` // Full document body
	Chunks       []Chunk `json:"chunks"`
}

// Chunk is a contiguous span of a document's text.
type Chunk struct {
	ChunkID       string `json:"chunk_id"`
	OriginalIndex int    `json:"original_index"`
	Content       string `json:"content"`
}

// ContextualChunk is one enriched chunk: the original text plus the
// LLM-generated context situating it within its document.
type ContextualChunk struct {
	DocID                 string `json:"doc_id"`
	OriginalUUID          string `json:"original_uuid"`
	ChunkID               string `json:"chunk_id"`
	OriginalIndex         int    `json:"original_index"`
	OriginalContent       string `json:"original_content"`
	ContextualizedContent string `json:"contextualized_content"`
}

// EmbeddingText is the text embedded for this chunk: original content,
// a blank line, then the generated context.
func (c ContextualChunk) EmbeddingText() string {
	return c.OriginalContent + "\n\n" + c.ContextualizedContent
}

// IndexConfig is the generation configuration persisted alongside an index.
type IndexConfig struct {
	Model          string  `json:"model" yaml:"model"`
	EmbeddingModel string  `json:"embedding_model" yaml:"embedding_model"`
	Temperature    float64 `json:"temperature" yaml:"temperature"`
	MaxTokens      int     `json:"max_tokens" yaml:"max_tokens"`
}

// DefaultIndexConfig is restored for snapshots written without a config section.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		Model:          "gpt-4o",
		EmbeddingModel: "text-embedding-3-small",
		Temperature:    0.0,
		MaxTokens:      1000,
	}
}

// Snapshot is the persisted form of a vector index.
// Embeddings[i] belongs to Metadata[i].
type Snapshot struct {
	Embeddings [][]float32
	Metadata   []ContextualChunk
	QueryCache map[string][]float32
	Config     IndexConfig
}

// SnapshotFileName is the artifact name inside the database directory.
const SnapshotFileName = "contextual_vector_db.bin"

// DefaultCollectionName is the Qdrant collection used by export.
const DefaultCollectionName = "contextual_chunks"

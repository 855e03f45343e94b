package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSONL = `{"doc_id":"doc_1","original_uuid":"u1","content":"Permafrost thaw releases carbon.","chunks":[{"chunk_id":"doc_1_chunk_0","original_index":0,"content":"Permafrost thaw"}]}

{"doc_id":"doc_2","original_uuid":"u2","content":"Second.","chunks":[{"chunk_id":"doc_2_chunk_0","original_index":0,"content":"a"},{"chunk_id":"doc_2_chunk_1","original_index":1,"content":"b"}]}
{"doc_id":"doc_3","original_uuid":"u3","content":"Third.","chunks":[]}
`

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "processed_documents.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSONL(t *testing.T) {
	docs, err := LoadJSONL(writeDataset(t, sampleJSONL), 0)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "doc_1", docs[0].DocID)
	assert.Equal(t, "u1", docs[0].OriginalUUID)
	assert.Equal(t, "Permafrost thaw releases carbon.", docs[0].Content)
	require.Len(t, docs[1].Chunks, 2)
	assert.Equal(t, "doc_2_chunk_1", docs[1].Chunks[1].ChunkID)
	assert.Equal(t, 1, docs[1].Chunks[1].OriginalIndex)
	assert.Equal(t, "b", docs[1].Chunks[1].Content)
	assert.Empty(t, docs[2].Chunks)
}

func TestLoadJSONL_Limit(t *testing.T) {
	docs, err := LoadJSONL(writeDataset(t, sampleJSONL), 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc_2", docs[1].DocID)
}

func TestLoadJSONL_Errors(t *testing.T) {
	_, err := LoadJSONL(filepath.Join(t.TempDir(), "missing.jsonl"), 0)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadJSONL(writeDataset(t, "\n\n"), 0)
	assert.ErrorIs(t, err, ErrNoDocuments)

	_, err = LoadJSONL(writeDataset(t, "{not json}\n"), 0)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = LoadJSONL(writeDataset(t, `{"content":"no id"}`+"\n"), 0)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	dup := `{"doc_id":"d","chunks":[{"chunk_id":"c"},{"chunk_id":"c"}]}` + "\n"
	_, err = LoadJSONL(writeDataset(t, dup), 0)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

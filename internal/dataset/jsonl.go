// Package dataset loads documents and their chunks from local sources.
package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/bull/contextual-rag/internal/storage"
)

// DefaultJSONLPath is where the preprocessed corpus lives by default.
const DefaultJSONLPath = "my_data/processed_documents.jsonl"

// maxLineSize bounds a single JSONL record.
const maxLineSize = 64 << 20

// LoadJSONL reads one Document per line. When limit > 0 only the first limit
// documents are returned. Blank lines are skipped.
func LoadJSONL(path string, limit int) ([]storage.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var docs []storage.Document
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		if limit > 0 && len(docs) >= limit {
			break
		}

		var doc storage.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrInvalidRecord, path, line, err)
		}
		if err := validate(doc); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDocuments, path)
	}
	return docs, nil
}

func validate(doc storage.Document) error {
	if doc.DocID == "" {
		return fmt.Errorf("%w: missing doc_id", ErrInvalidRecord)
	}
	seen := make(map[string]struct{}, len(doc.Chunks))
	for _, c := range doc.Chunks {
		if c.ChunkID == "" {
			return fmt.Errorf("%w: doc %s has a chunk without chunk_id", ErrInvalidRecord, doc.DocID)
		}
		if _, dup := seen[c.ChunkID]; dup {
			return fmt.Errorf("%w: doc %s repeats chunk %s", ErrInvalidRecord, doc.DocID, c.ChunkID)
		}
		seen[c.ChunkID] = struct{}{}
	}
	return nil
}

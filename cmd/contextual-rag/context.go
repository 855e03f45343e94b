package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bull/contextual-rag/internal/contextual"
	"github.com/bull/contextual-rag/internal/storage"
	"github.com/bull/contextual-rag/internal/usage"
)

var contextCmd = &cobra.Command{
	Use:   "context DOC_ID CHUNK_ID",
	Short: "Generate the situating context for one chunk",
	Args:  cobra.ExactArgs(2),
	RunE:  runContext,
}

func runContext(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	docID, chunkID := args[0], args[1]

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	docs, err := a.loadDataset()
	if err != nil {
		return err
	}
	doc, chunk, err := findChunk(docs, docID, chunkID)
	if err != nil {
		return err
	}

	client, err := a.providerClient()
	if err != nil {
		return err
	}
	counters := usage.NewCounters()
	generator := contextual.NewGenerator(client, counters, contextual.Config{
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	})

	text, _, err := generator.Generate(ctx, doc.Content, chunk.Content)
	if err != nil {
		return fmt.Errorf("Context generation failed: %w", err)
	}

	fmt.Println(text)
	fmt.Println()
	printUsage(counters.Snapshot())
	return nil
}

func findChunk(docs []storage.Document, docID, chunkID string) (*storage.Document, *storage.Chunk, error) {
	for i := range docs {
		if docs[i].DocID != docID {
			continue
		}
		for j := range docs[i].Chunks {
			if docs[i].Chunks[j].ChunkID == chunkID {
				return &docs[i], &docs[i].Chunks[j], nil
			}
		}
		return nil, nil, fmt.Errorf("chunk %s not found in document %s", chunkID, docID)
	}
	return nil, nil, fmt.Errorf("document %s not found", docID)
}

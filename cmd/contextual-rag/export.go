package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/contextual-rag/internal/storage"
)

var exportClear bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the saved index to a Qdrant collection",
	Long: `Restores the snapshot and upserts every entry into a Qdrant collection
using dot-product distance. Point ids are derived from chunk ids, so exporting
twice updates points in place.

Environment variables:
  QDRANT_HOST       Qdrant hostname (default: localhost)
  QDRANT_PORT       Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION Collection name (default: contextual_chunks)`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportClear, "clear", false, "drop and recreate the collection first")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	// 1. Restore the snapshot; export never embeds.
	db, err := a.openDB(nil)
	if err != nil {
		return err
	}
	snap := db.Index().Snapshot()
	if len(snap.Embeddings) == 0 {
		return fmt.Errorf("Snapshot at %s is empty", db.Path())
	}
	dim := len(snap.Embeddings[0])
	fmt.Printf("Loaded %d entries (%d dimensions) from %s\n", len(snap.Embeddings), dim, db.Path())

	// 2. Connect to Qdrant
	fmt.Printf("Connecting to Qdrant at %s:%d...\n", a.cfg.QdrantHost, a.cfg.QdrantPort)
	store, err := storage.NewQdrantStorage(a.cfg.QdrantHost, a.cfg.QdrantPort, a.cfg.QdrantCollection)
	if err != nil {
		return fmt.Errorf("Failed to connect to Qdrant: %w", err)
	}
	defer store.Close()
	fmt.Println("Qdrant healthy")

	// 3. Prepare collection
	if exportClear {
		fmt.Println("Clearing existing collection...")
		err = store.ClearCollection(ctx, dim)
	} else {
		err = store.EnsureCollection(ctx, dim)
	}
	if err != nil {
		return fmt.Errorf("Failed to prepare collection: %w", err)
	}

	// 4. Upsert
	if err := store.UpsertEntries(ctx, snap.Embeddings, snap.Metadata); err != nil {
		return fmt.Errorf("Export failed: %w", err)
	}

	// 5. Verify the first entry finds itself
	hits, err := store.SearchEntries(ctx, snap.Embeddings[0], 1)
	if err != nil {
		return fmt.Errorf("Verification search failed: %w", err)
	}
	if len(hits) == 0 || hits[0].Chunk.ChunkID != snap.Metadata[0].ChunkID {
		a.logger.Warn("Exported collection did not return the probe entry first", "chunk_id", snap.Metadata[0].ChunkID)
	}

	info, err := store.GetCollectionInfo(ctx)
	if err != nil {
		return fmt.Errorf("Failed to get collection info: %w", err)
	}

	fmt.Println()
	fmt.Println("Export complete!")
	fmt.Printf("  Collection: %s\n", store.Collection())
	fmt.Printf("  Points: %d\n", info.PointsCount)
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Second))
	return nil
}

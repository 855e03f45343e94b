package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bull/contextual-rag/internal/vectordb"
)

var (
	searchK    int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search the saved index",
	Long: `Restores the snapshot and prints the k chunks most similar to QUERY.
Query embeddings are cached in the snapshot, so repeating a query costs no
embedding request.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "k", "k", vectordb.DefaultK, "number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	client, err := a.providerClient()
	if err != nil {
		return err
	}
	db, err := a.openDB(client)
	if err != nil {
		return err
	}

	cachedBefore := db.Index().CachedQueries()
	results, err := db.Index().Search(ctx, args[0], searchK)
	if err != nil {
		return fmt.Errorf("Search failed: %w", err)
	}

	if db.Index().CachedQueries() > cachedBefore {
		if err := db.Save(); err != nil {
			return err
		}
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	printResults(results)
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/contextual-rag/internal/contextual"
	"github.com/bull/contextual-rag/internal/indexer"
	"github.com/bull/contextual-rag/internal/usage"
	"github.com/bull/contextual-rag/internal/vectordb"
)

var (
	buildSampleQuery string
	buildSkipSample  bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the contextual vector index from the dataset",
	Long: `Loads the dataset and populates the vector index, unless a snapshot
already exists in the database directory, in which case it is restored.

This command:
1. Loads documents from a JSONL file or a markdown directory
2. Generates one sample context to check the model configuration
3. Generates situating context for every chunk (bounded concurrency)
4. Embeds chunk plus context and saves the snapshot
5. Prints token usage and runs a sample search`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildSampleQuery, "sample-query", "What is the permafrost Thaw?", "query for the post-build sample search")
	buildCmd.Flags().BoolVar(&buildSkipSample, "skip-sample", false, "skip the sample context generation and search")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	start := time.Now()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	fmt.Println("Starting build...")
	fmt.Println()

	// 1. Load dataset
	docs, err := a.loadDataset()
	if err != nil {
		return err
	}
	chunks := 0
	for _, d := range docs {
		chunks += len(d.Chunks)
	}
	fmt.Printf("Loaded %d documents (%d chunks) from %s\n", len(docs), chunks, a.cfg.Dataset)

	// 2. Initialize provider components
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

	// 3. Test single context generation
	if !buildSkipSample && len(docs[0].Chunks) > 0 {
		fmt.Println()
		fmt.Println("Testing single context generation...")
		sample, _, err := generator.Generate(ctx, docs[0].Content, docs[0].Chunks[0].Content)
		if err != nil {
			return fmt.Errorf("Sample context generation failed: %w", err)
		}
		fmt.Printf("Sample context: %s\n", sample)
	}

	// 4. Load all data
	fmt.Println()
	fmt.Println("Loading full dataset...")
	pipeline := indexer.NewPipeline(generator, a.cfg.ParallelRequests, a.logger)
	pipeline.SetProgress(func(done, total int) {
		fmt.Fprintf(os.Stderr, "\rProcessing chunks: %d/%d", done, total)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	})

	db := a.newDB(a.newIndex(client), pipeline)
	db.ReportUsage(counters)

	outcome, err := db.LoadData(ctx, docs)
	if err != nil {
		return fmt.Errorf("Loading data failed: %w", err)
	}

	fmt.Println()
	fmt.Printf("Vector database %s: %d entries at %s\n", outcome, db.Index().Len(), db.Path())
	if outcome == vectordb.Built {
		printUsage(counters.Snapshot())
	}

	// 5. Test search functionality
	if !buildSkipSample {
		fmt.Println()
		fmt.Println("Testing search functionality...")
		results, err := db.Index().Search(ctx, buildSampleQuery, 3)
		if err != nil {
			return fmt.Errorf("Sample search failed: %w", err)
		}
		printResults(results)
		if err := db.Save(); err != nil {
			return err
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

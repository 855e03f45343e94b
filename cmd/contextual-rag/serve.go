package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/bull/contextual-rag/internal/mcp"
)

var (
	serveHTTP bool
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the index as MCP tools",
	Long: `Restores the snapshot and exposes the search and index_status tools over
the Model Context Protocol.

By default the server speaks MCP over stdin/stdout. With --http it serves
Streamable HTTP at /mcp, a health check at /health and a status page at /.
Newly cached query embeddings are saved back to the snapshot on shutdown.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveHTTP, "http", false, "serve Streamable HTTP instead of stdio")
	serveCmd.Flags().StringVar(&servePort, "port", "", "HTTP port (default from PORT or 8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		a.cfg.Port = servePort
	}

	client, err := a.providerClient()
	if err != nil {
		return err
	}
	db, err := a.openDB(client)
	if err != nil {
		return err
	}
	index := db.Index()
	cachedAtStart := index.CachedQueries()

	defer func() {
		if index.CachedQueries() == cachedAtStart {
			return
		}
		if err := db.Save(); err != nil {
			a.logger.Error("Failed to save query cache", "error", err)
		}
	}()

	server := mcpserver.NewServer(&mcpserver.Config{
		Index:   index,
		Version: version,
		Logger:  a.logger,
	})

	if !serveHTTP {
		a.logger.Info("Starting contextual-rag MCP server (stdio mode)", "entries", index.Len())
		return server.Run(ctx)
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + a.cfg.Port,
		Handler:           mcpserver.NewMux(server, &mcpserver.HTTPHandlerOptions{Stateless: true}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server (MCP at /mcp, health at /health)", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

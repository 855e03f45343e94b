package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with the index it serves.
type Server struct {
	server *mcp.Server
	index  Index
}

// Config holds server dependencies.
type Config struct {
	Index   Index
	Version string
	Logger  *slog.Logger
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "contextual-rag",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search",
		Description: "Search the contextual vector index. Returns the k chunks most similar to the query (20 when k is omitted, none when k is 0), each with the generated context that situates it in its document.",
	}, makeSearchHandler(cfg.Index, logger))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_status",
		Description: "Report whether the index is loaded, how many chunks and cached queries it holds, and the models it was built with.",
	}, makeStatusHandler(cfg.Index))

	return &Server{
		server: server,
		index:  cfg.Index,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

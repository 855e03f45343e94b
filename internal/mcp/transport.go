package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandlerOptions configures the HTTP transport behavior.
type HTTPHandlerOptions struct {
	// Stateless disables session management. Both tools are plain
	// request/response, so serve enables it.
	Stateless bool
}

// NewHTTPHandler serves the MCP server over Streamable HTTP.
func NewHTTPHandler(server *Server, opts *HTTPHandlerOptions) http.Handler {
	if opts == nil {
		opts = &HTTPHandlerOptions{}
	}
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server.MCPServer()
	}, &mcp.StreamableHTTPOptions{Stateless: opts.Stateless})
}

// NewMux routes /mcp to the MCP server, /health to the readiness check and /
// to the status page, all backed by the server's index.
func NewMux(server *Server, opts *HTTPHandlerOptions) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/mcp", NewHTTPHandler(server, opts))
	mux.HandleFunc("/health", NewHealthHandler(server.index))
	mux.HandleFunc("/", NewLandingHandler(server.index))
	return mux
}

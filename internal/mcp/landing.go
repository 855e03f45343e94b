package mcp

import (
	"html/template"
	"net/http"
)

var landingTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Contextual RAG MCP Server</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: #0f172a; color: #e2e8f0; display: flex; justify-content: center; padding-top: 10vh; }
  .card { max-width: 560px; width: 90%; background: #1e293b; border-radius: 12px; padding: 2rem; }
  a, .endpoint { color: #38bdf8; font-family: Menlo, monospace; }
  dt { color: #64748b; font-size: 0.8rem; text-transform: uppercase; margin-top: 0.75rem; }
</style>
</head>
<body>
<div class="card">
  <h1>Contextual RAG</h1>
  <p>Chunk search over a contextually enriched vector index via the Model Context Protocol.</p>
  <dl>
    <dt>Indexed chunks</dt><dd>{{.Entries}}</dd>
    <dt>Cached queries</dt><dd>{{.CachedQueries}}</dd>
    <dt>Embedding model</dt><dd>{{.Config.EmbeddingModel}}</dd>
    <dt>Context model</dt><dd>{{.Config.Model}}</dd>
  </dl>
  <p><a href="/mcp" class="endpoint">/mcp</a> MCP Streamable HTTP</p>
  <p><a href="/health" class="endpoint">/health</a> Health check</p>
</div>
</body>
</html>`))

// NewLandingHandler serves a status page at /.
func NewLandingHandler(index Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = landingTemplate.Execute(w, StatusOutput{
			Loaded:        index.Loaded(),
			Entries:       index.Len(),
			CachedQueries: index.CachedQueries(),
			Config:        index.Config(),
		})
	}
}

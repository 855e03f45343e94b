package mcp

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the JSON body of the /health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Index     string `json:"index"`
	Entries   int    `json:"entries"`
	Timestamp string `json:"timestamp"`
}

// ReadinessChecker reports whether the index can serve queries.
type ReadinessChecker interface {
	Loaded() bool
	Len() int
}

// NewHealthHandler creates an HTTP handler for the /health endpoint. It
// returns 200 once the index is loaded and 503 before.
func NewHealthHandler(index ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")

		if !index.Loaded() {
			response.Status = "unhealthy"
			response.Index = "empty"
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(response)
			return
		}

		response.Status = "healthy"
		response.Index = "loaded"
		response.Entries = index.Len()
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Health and readiness probe handlers.

package engine

import (
	"encoding/json"
	"net/http"
	"time"
)

// handleHealth handles the liveness probe endpoint.
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	response := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	}
	_ = json.NewEncoder(w).Encode(response)
}

// handleReady handles the readiness probe endpoint. The server is ready once
// at least one endpoint is loaded.
func (h *Handler) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	count := len(h.Endpoints())
	status, code := "ready", http.StatusOK
	if count == 0 {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	response := map[string]any{"status": status, "checks": map[string]any{"endpoints": map[string]any{"count": count}}}
	_ = json.NewEncoder(w).Encode(response)
}

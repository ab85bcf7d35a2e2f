package api

import (
	"log/slog"
	"net/http"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	svc    QueryService
	logger *slog.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(svc QueryService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness returns 200 OK if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness returns 200 OK once the orchestrator is wired up. The index may
// legitimately hold zero courses, so readiness does not depend on corpus size.
func (h *HealthHandler) readiness(w http.ResponseWriter, _ *http.Request) {
	if h.svc == nil {
		http.Error(w, "query service not configured", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coursekit/coursekit/internal/agent"
	"github.com/coursekit/coursekit/internal/vectorstore"
)

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryHandler answers questions over the course corpus.
type QueryHandler struct {
	svc     QueryService
	timeout time.Duration
	logger  *slog.Logger
}

// NewQueryHandler creates a query handler. timeout bounds one query's
// handling; zero disables the bound.
func NewQueryHandler(svc QueryService, timeout time.Duration, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{svc: svc, timeout: timeout, logger: logger}
}

// RegisterRoutes registers query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.answer)
}

func (h *QueryHandler) answer(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query must not be empty")
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	answer, err := h.svc.AnswerQuery(ctx, req.Query, req.SessionID)
	if err != nil {
		h.logger.Error("query failed", "error", err, "session", req.SessionID)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, "timeout", "query timed out")
		case errors.Is(err, agent.ErrCompletion), errors.Is(err, vectorstore.ErrUnavailable):
			writeError(w, http.StatusBadGateway, "upstream_unavailable", "a backing service failed")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "query processing failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

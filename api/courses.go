package api

import "net/http"

// CoursesHandler reports corpus analytics.
type CoursesHandler struct {
	svc QueryService
}

// NewCoursesHandler creates a courses handler.
func NewCoursesHandler(svc QueryService) *CoursesHandler {
	return &CoursesHandler{svc: svc}
}

// RegisterRoutes registers course routes on the given mux.
func (h *CoursesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/courses", h.list)
}

func (h *CoursesHandler) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Analytics())
}

package handler

import (
	"context"
	"net/http"

	"github.com/mcoot/livequiz/internal/api/response"
)

// ReadyFunc reports whether the backing stores are reachable
type ReadyFunc func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	ready ReadyFunc
}

// NewHealthHandler creates a new health handler. A nil ready func always reports ready.
func NewHealthHandler(ready ReadyFunc) *HealthHandler {
	return &HealthHandler{ready: ready}
}

// Health handles GET /api/v1/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.HealthResponse{Status: "ok"})
}

// Ready handles GET /api/v1/ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			response.JSON(w, http.StatusServiceUnavailable, response.HealthResponse{Status: "unavailable", Error: err.Error()})
			return
		}
	}
	response.JSON(w, http.StatusOK, response.HealthResponse{Status: "ok"})
}

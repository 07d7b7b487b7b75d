package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hive-api/internal/domain"
)

// HealthHandler handles liveness probes.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "action") == "ping" {
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
		return
	}
	httpError(w, domain.NewFieldError(domain.ErrBadRequest, "action", domain.CodeInvalidInput, "Unknown action."))
}

package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the stopping-rule routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/stopping/detect", h.HandleDetect)
}

package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the report routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/portfolio/report", h.HandleReport)
}

package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the option pricing routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/options/price", h.HandlePrice)
}

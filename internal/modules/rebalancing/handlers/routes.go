package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the request/response rebalancing routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/rebalance", func(r chi.Router) {
		r.Post("/run", h.HandleRun)
	})
}

// RegisterStreamRoutes registers the websocket stream. It must be mounted
// outside any request timeout middleware.
func (h *Handler) RegisterStreamRoutes(r chi.Router) {
	r.Get("/rebalance/stream", h.HandleStream)
}

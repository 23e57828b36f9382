package server

import (
	"net/http"

	"github.com/aristath/allocator/internal/server/response"
)

// Version is reported by /health.
const Version = "1.0.0"

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.Write(w, r, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": Version,
		"service": "allocator",
	}, s.log)
}

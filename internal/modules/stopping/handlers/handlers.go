// Package handlers exposes the first-passage detector over HTTP.
package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/stopping"
	"github.com/aristath/allocator/internal/server/response"
)

// Handler handles stopping-rule HTTP requests
type Handler struct {
	log zerolog.Logger
}

// NewHandler creates a new stopping-rule handler
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{log: log.With().Str("handler", "stopping").Logger()}
}

// DetectRequest carries either multi-asset paths (path × step × asset) or a
// single price series. Threshold defaults to stopping.DefaultThreshold.
type DetectRequest struct {
	Paths     [][][]float64 `json:"paths,omitempty"`
	Prices    []float64     `json:"prices,omitempty"`
	Threshold *float64      `json:"threshold,omitempty"`
}

// DetectResponse lists at most one decision point per path.
type DetectResponse struct {
	Threshold      float64                `json:"threshold"`
	DecisionPoints []domain.DecisionPoint `json:"decision_points"`
	Count          int                    `json:"count"`
}

func (req DetectRequest) paths() ([]stopping.Path, float64, error) {
	threshold := stopping.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0 {
		return nil, 0, domain.InvalidInputf("threshold must be non-negative")
	}
	if req.Paths != nil && req.Prices != nil {
		return nil, 0, domain.InvalidInputf("provide either paths or prices, not both")
	}

	if req.Prices != nil {
		return []stopping.Path{stopping.Scalar(req.Prices)}, threshold, nil
	}
	paths := make([]stopping.Path, len(req.Paths))
	for k, p := range req.Paths {
		for t := range p {
			if len(p[t]) != len(p[0]) {
				return nil, 0, domain.InvalidInputf("path %d step %d has %d assets, expected %d", k, t, len(p[t]), len(p[0]))
			}
		}
		paths[k] = p
	}
	return paths, threshold, nil
}

// HandleDetect handles POST /api/stopping/detect
func (h *Handler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	paths, threshold, err := req.paths()
	if err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	points := stopping.Detect(paths, threshold)
	h.log.Debug().Int("paths", len(paths)).Int("decision_points", len(points)).Msg("Detection complete")

	response.Data(w, r, DetectResponse{
		Threshold:      threshold,
		DecisionPoints: points,
		Count:          len(points),
	}, h.log)
}

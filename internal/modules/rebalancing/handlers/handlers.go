// Package handlers provides HTTP handlers for rebalancing operations.
package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/events"
	"github.com/aristath/allocator/internal/marketdata"
	"github.com/aristath/allocator/internal/modules/rebalancing"
	"github.com/aristath/allocator/internal/server/response"
)

// Handler handles rebalancing HTTP requests
type Handler struct {
	service        *rebalancing.Service
	bus            *events.Bus
	originPatterns []string
	log            zerolog.Logger
}

// NewHandler creates a new rebalancing handler. bus may be nil.
func NewHandler(service *rebalancing.Service, bus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		bus:     bus,
		log:     log.With().Str("handler", "rebalancing").Logger(),
	}
}

// SetOriginPatterns sets the cross-origin hosts allowed to open the stream.
func (h *Handler) SetOriginPatterns(patterns []string) {
	h.originPatterns = patterns
}

// RunRequest is the body of POST /api/rebalance/run and the first message
// of a stream. RiskTolerance is a 1–10 level; zero means the default level.
type RunRequest struct {
	History       marketdata.PriceHistory `json:"history"`
	RiskTolerance float64                 `json:"risk_tolerance"`
	Frequency     string                  `json:"frequency"`
	Threshold     float64                 `json:"threshold,omitempty"`
}

// RunResponse is the data of a completed run.
type RunResponse struct {
	RunID  string                  `json:"run_id"`
	Count  int                     `json:"count"`
	Events []domain.RebalanceEvent `json:"events"`
}

func (req RunRequest) build() (*marketdata.PriceHistory, rebalancing.Options, error) {
	history, err := marketdata.NewPriceHistory(req.History.Assets, req.History.Dates, req.History.Prices)
	if err != nil {
		return nil, rebalancing.Options{}, err
	}
	tolerance, err := domain.RiskToleranceFromLevel(req.RiskTolerance)
	if err != nil {
		return nil, rebalancing.Options{}, err
	}
	label := req.Frequency
	if label == "" {
		label = domain.Quarterly.String()
	}
	freq, err := domain.ParseFrequency(label)
	if err != nil {
		return nil, rebalancing.Options{}, err
	}
	return history, rebalancing.Options{
		RiskTolerance: tolerance,
		Frequency:     freq,
		Threshold:     req.Threshold,
	}, nil
}

// HandleRun handles POST /api/rebalance/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	history, opts, err := req.build()
	if err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	opts.Source = "api"
	evs, err := h.service.Run(r.Context(), history, opts, nil)
	if err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	runID := ""
	if len(evs) > 0 {
		runID = evs[0].RunID
	}
	response.Data(w, r, RunResponse{RunID: runID, Count: len(evs), Events: evs}, h.log)
}

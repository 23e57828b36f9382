// Package handlers exposes the portfolio report over HTTP.
package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/marketdata"
	"github.com/aristath/allocator/internal/modules/report"
	"github.com/aristath/allocator/internal/server/response"
)

// Handler handles report HTTP requests
type Handler struct {
	service  *report.Service
	defaults report.Request
	log      zerolog.Logger
}

// NewHandler creates a new report handler. defaults fill whatever a request
// leaves out.
func NewHandler(service *report.Service, defaults report.Request, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		defaults: defaults,
		log:      log.With().Str("handler", "report").Logger(),
	}
}

// ReportRequest is the body of POST /api/portfolio/report. RiskTolerance is
// a 1–10 level. Unset optional fields take the server defaults.
type ReportRequest struct {
	History                 *marketdata.PriceHistory `json:"history"`
	Assets                  []string                 `json:"assets,omitempty"`
	RiskTolerance           float64                  `json:"risk_tolerance,omitempty"`
	TargetReturn            *float64                 `json:"target_return,omitempty"`
	HorizonYears            float64                  `json:"horizon_years,omitempty"`
	Simulations             int                      `json:"simulations,omitempty"`
	Steps                   int                      `json:"steps,omitempty"`
	Seed                    *uint64                  `json:"seed,omitempty"`
	Correlated              *bool                    `json:"correlated,omitempty"`
	ValueWithOptimalWeights *bool                    `json:"value_with_optimal_weights,omitempty"`
	RiskFreeRate            *float64                 `json:"risk_free_rate,omitempty"`
	Paths                   int                      `json:"paths,omitempty"`
}

func (h *Handler) build(req ReportRequest) (*marketdata.PriceHistory, report.Request, error) {
	if req.History == nil {
		return nil, report.Request{}, domain.InvalidInputf("history is required")
	}
	history, err := marketdata.NewPriceHistory(req.History.Assets, req.History.Dates, req.History.Prices)
	if err != nil {
		return nil, report.Request{}, err
	}

	out := h.defaults
	if req.RiskTolerance != 0 {
		tolerance, err := domain.RiskToleranceFromLevel(req.RiskTolerance)
		if err != nil {
			return nil, report.Request{}, err
		}
		out.RiskTolerance = tolerance
	}
	if req.Assets != nil {
		out.Assets = req.Assets
	}
	if req.TargetReturn != nil {
		out.TargetReturn = req.TargetReturn
	}
	if req.HorizonYears != 0 {
		out.HorizonYears = req.HorizonYears
	}
	if req.Simulations != 0 {
		out.Simulations = req.Simulations
	}
	if req.Steps != 0 {
		out.Steps = req.Steps
	}
	if req.Seed != nil {
		out.Seed = *req.Seed
	}
	if req.Correlated != nil {
		out.Correlated = *req.Correlated
	}
	if req.ValueWithOptimalWeights != nil {
		out.ValueWithOptimalWeights = *req.ValueWithOptimalWeights
	}
	if req.RiskFreeRate != nil {
		out.RiskFreeRate = *req.RiskFreeRate
	}
	if req.Paths != 0 {
		out.Paths = req.Paths
	}
	return history, out, nil
}

// HandleReport handles POST /api/portfolio/report
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	history, reportReq, err := h.build(req)
	if err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	rep, err := h.service.Generate(r.Context(), history, reportReq)
	if err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	response.Data(w, r, rep, h.log)
}

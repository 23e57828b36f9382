// Package handlers provides HTTP handlers for portfolio optimization.
package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/marketdata"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/server/response"
)

// Handler handles optimizer HTTP requests
type Handler struct {
	optimizer optimization.Optimizer
	sweeper   *optimization.FrontierSweeper
	log       zerolog.Logger
}

// NewHandler creates a new optimizer handler
func NewHandler(optimizer optimization.Optimizer, sweeper *optimization.FrontierSweeper, log zerolog.Logger) *Handler {
	return &Handler{
		optimizer: optimizer,
		sweeper:   sweeper,
		log:       log.With().Str("handler", "optimizer").Logger(),
	}
}

// OptimizeRequest is the body of POST /api/optimizer/run and
// /api/optimizer/frontier. RiskTolerance is a 1–10 level; zero means the
// default level. TargetReturn is annualized and ignored by the frontier.
type OptimizeRequest struct {
	marketdata.StatisticsInput
	RiskTolerance float64  `json:"risk_tolerance"`
	TargetReturn  *float64 `json:"target_return,omitempty"`
}

// OptimizeResponse carries the optimal allocation.
type OptimizeResponse struct {
	Assets         []string           `json:"assets,omitempty"`
	Weights        domain.Weights     `json:"weights"`
	Allocation     map[string]float64 `json:"allocation,omitempty"`
	ExpectedReturn float64            `json:"expected_return"`
	Volatility     float64            `json:"volatility"`
	ReturnPct      float64            `json:"return_pct"`
	VolatilityPct  float64            `json:"volatility_pct"`
	Mode           string             `json:"mode"`
	Iterations     int                `json:"iterations"`
	Residual       float64            `json:"residual"`
}

// FrontierResponse carries a full sweep.
type FrontierResponse struct {
	Points       []domain.FrontierPoint `json:"points"`
	Volatilities []float64              `json:"volatilities"`
	Converged    int                    `json:"converged"`
}

func (req OptimizeRequest) build() (optimization.Request, error) {
	snap, _, err := req.Resolve()
	if err != nil {
		return optimization.Request{}, err
	}
	tolerance, err := domain.RiskToleranceFromLevel(req.RiskTolerance)
	if err != nil {
		return optimization.Request{}, err
	}
	return optimization.Request{
		Snapshot:      snap,
		RiskTolerance: tolerance,
		TargetReturn:  req.TargetReturn,
	}, nil
}

// HandleRun handles POST /api/optimizer/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	optReq, err := req.build()
	if err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	res, err := h.optimizer.Optimize(optReq)
	if err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	response.Data(w, r, NewOptimizeResponse(optReq.Snapshot, res), h.log)
}

// HandleFrontier handles POST /api/optimizer/frontier
func (h *Handler) HandleFrontier(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	optReq, err := req.build()
	if err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	curve, err := h.sweeper.Sweep(r.Context(), optReq.Snapshot, optReq.RiskTolerance)
	if err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	response.Data(w, r, FrontierResponse{
		Points:       curve.Points,
		Volatilities: curve.Volatilities(),
		Converged:    curve.Converged(),
	}, h.log)
}

// NewOptimizeResponse flattens a result for the wire.
func NewOptimizeResponse(snap domain.Snapshot, res *optimization.Result) OptimizeResponse {
	out := OptimizeResponse{
		Assets:         snap.Assets,
		Weights:        res.Weights,
		ExpectedReturn: res.ExpectedReturn,
		Volatility:     res.Volatility,
		ReturnPct:      res.ReturnPct(),
		VolatilityPct:  res.VolatilityPct(),
		Mode:           res.Mode,
		Iterations:     res.Iterations,
		Residual:       res.Residual,
	}
	if len(snap.Assets) == len(res.Weights) {
		out.Allocation = make(map[string]float64, len(res.Weights))
		for i, w := range res.Weights {
			out.Allocation[snap.Assets[i]] = w
		}
	}
	return out
}

// Package handlers provides HTTP handlers for Monte Carlo simulation.
package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/marketdata"
	"github.com/aristath/allocator/internal/modules/simulation"
	"github.com/aristath/allocator/internal/modules/stopping"
	"github.com/aristath/allocator/internal/server/response"
)

// MaxCells bounds simulations × steps × assets per request.
const MaxCells = 50_000_000

// Handler handles simulation HTTP requests
type Handler struct {
	simulator *simulation.Simulator
	log       zerolog.Logger
}

// NewHandler creates a new simulation handler
func NewHandler(simulator *simulation.Simulator, log zerolog.Logger) *Handler {
	return &Handler{
		simulator: simulator,
		log:       log.With().Str("handler", "simulation").Logger(),
	}
}

// SimulateRequest is the body of POST /api/simulation/run.
//
// InitialPrices default to the last row of the history when one is given.
// Weights value the paths; nil means equal weight. StoppingThreshold, when
// set, runs the first-passage detector over every trajectory.
type SimulateRequest struct {
	marketdata.StatisticsInput
	InitialPrices     []float64      `json:"initial_prices,omitempty"`
	HorizonYears      float64        `json:"horizon_years,omitempty"`
	Dt                float64        `json:"dt,omitempty"`
	Simulations       int            `json:"simulations,omitempty"`
	Steps             int            `json:"steps,omitempty"`
	Seed              *uint64        `json:"seed,omitempty"`
	Correlated        bool           `json:"correlated,omitempty"`
	Weights           domain.Weights `json:"weights,omitempty"`
	Paths             int            `json:"paths,omitempty"`
	IncludeTensor     bool           `json:"include_tensor,omitempty"`
	StoppingThreshold *float64       `json:"stopping_threshold,omitempty"`
}

// SimulateResponse carries normalized value paths and their summary.
type SimulateResponse struct {
	Simulations    int                    `json:"simulations"`
	Steps          int                    `json:"steps"`
	ValuePaths     [][]float64            `json:"value_paths"`
	Summary        simulation.Summary     `json:"summary"`
	DecisionPoints []domain.DecisionPoint `json:"decision_points,omitempty"`
	Tensor         *domain.PathTensor     `json:"tensor,omitempty"`
}

// Params converts the request into simulator parameters.
func (req SimulateRequest) Params() (simulation.Params, error) {
	snap, history, err := req.Resolve()
	if err != nil {
		return simulation.Params{}, err
	}

	initial := req.InitialPrices
	if initial == nil && history != nil {
		initial = history.Latest()
	}
	if initial == nil {
		return simulation.Params{}, domain.InvalidInputf("initial_prices are required without a price history")
	}

	horizon := req.HorizonYears
	if horizon == 0 {
		horizon = 1
	}
	seed := uint64(simulation.DefaultSeed)
	if req.Seed != nil {
		seed = *req.Seed
	}

	p := simulation.Params{
		InitialPrices:   initial,
		ExpectedReturns: snap.ExpectedReturns,
		Volatilities:    snap.Volatilities,
		Correlation:     snap.Correlation,
		HorizonYears:    horizon,
		Dt:              req.Dt,
		Simulations:     req.Simulations,
		Steps:           req.Steps,
		Seed:            seed,
		Correlated:      req.Correlated,
	}.WithDefaults()

	if tooLarge(p.Simulations, p.Steps, len(initial)) {
		return simulation.Params{}, domain.InvalidInputf("simulation too large: %d simulations × %d steps × %d assets (max %d cells)",
			p.Simulations, p.Steps, len(initial), MaxCells)
	}
	return p, nil
}

// tooLarge reports whether sims × steps × assets exceeds MaxCells without
// computing the product. Non-positive factors are left to the simulator.
func tooLarge(sims, steps, assets int) bool {
	if sims <= 0 || steps <= 0 || assets <= 0 {
		return false
	}
	return sims > MaxCells/steps/assets
}

// HandleRun handles POST /api/simulation/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := response.Decode(w, r, &req); err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	params, err := req.Params()
	if err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	tensor, err := h.simulator.Simulate(r.Context(), params)
	if err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	all, err := simulation.PortfolioValues(tensor, req.Weights, 0)
	if err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	limit := req.Paths
	if limit <= 0 {
		limit = simulation.DefaultDisplayPaths
	}
	if limit > len(all) {
		limit = len(all)
	}

	resp := SimulateResponse{
		Simulations: tensor.Simulations,
		Steps:       tensor.Steps,
		ValuePaths:  all[:limit],
		Summary:     simulation.Summarize(all),
	}
	if req.StoppingThreshold != nil {
		resp.DecisionPoints = stopping.Detect(stopping.FromTensor(tensor), *req.StoppingThreshold)
	}
	if req.IncludeTensor {
		resp.Tensor = tensor
	}

	response.Data(w, r, resp, h.log)
}

// Package report assembles the full portfolio report: optimal weights,
// historical risk, the efficient frontier and simulated value paths.
package report

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/marketdata"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/simulation"
	"github.com/aristath/allocator/pkg/formulas"
)

// VaRConfidence is the confidence level of the historical VaR.
const VaRConfidence = 0.95

// Valuation labels which weights the simulated value paths use.
const (
	ValuationEqualWeight = "equal_weight"
	ValuationOptimal     = "optimal"
)

// Cache stores finished reports. Implementations must be safe for
// concurrent use.
type Cache interface {
	GetReport(key string) (*Report, bool)
	PutReport(key string, r *Report)
}

// Request configures a report. RiskTolerance is in (0, 1].
type Request struct {
	Assets                  []string `json:"assets,omitempty"`
	RiskTolerance           float64  `json:"risk_tolerance"`
	TargetReturn            *float64 `json:"target_return,omitempty"`
	HorizonYears            float64  `json:"horizon_years"`
	Simulations             int      `json:"simulations"`
	Steps                   int      `json:"steps"`
	Seed                    uint64   `json:"seed"`
	Correlated              bool     `json:"correlated"`
	ValueWithOptimalWeights bool     `json:"value_with_optimal_weights"`
	RiskFreeRate            float64  `json:"risk_free_rate"`
	Paths                   int      `json:"paths"`
}

// Allocation is the optimizer's answer.
type Allocation struct {
	Weights        domain.Weights     `json:"weights"`
	ByAsset        map[string]float64 `json:"by_asset"`
	ExpectedReturn float64            `json:"expected_return"`
	Volatility     float64            `json:"volatility"`
	ReturnPct      float64            `json:"return_pct"`
	VolatilityPct  float64            `json:"volatility_pct"`
	Mode           string             `json:"mode"`
}

// Frontier is the compact frontier the report carries.
type Frontier struct {
	Targets      []float64 `json:"targets"`
	Volatilities []float64 `json:"volatilities"`
	Converged    int       `json:"converged"`
}

// Simulation holds the displayed value paths and the summary over all of them.
type Simulation struct {
	ValuedWith string             `json:"valued_with"`
	ValuePaths [][]float64        `json:"value_paths"`
	Summary    simulation.Summary `json:"summary"`
}

// Report is the result of Generate.
type Report struct {
	Assets      []string        `json:"assets"`
	Snapshot    domain.Snapshot `json:"snapshot"`
	Allocation  Allocation      `json:"allocation"`
	VaR95       float64         `json:"var_95"`
	VaR95Pct    float64         `json:"var_95_pct"`
	SharpeRatio float64         `json:"sharpe_ratio"`
	Frontier    Frontier        `json:"frontier"`
	Simulation  Simulation      `json:"simulation"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Service generates reports.
type Service struct {
	optimizer optimization.Optimizer
	sweeper   *optimization.FrontierSweeper
	simulator *simulation.Simulator
	cache     Cache
	log       zerolog.Logger
}

// NewService creates a new report service
func NewService(
	optimizer optimization.Optimizer,
	sweeper *optimization.FrontierSweeper,
	simulator *simulation.Simulator,
	log zerolog.Logger,
) *Service {
	return &Service{
		optimizer: optimizer,
		sweeper:   sweeper,
		simulator: simulator,
		log:       log.With().Str("service", "report").Logger(),
	}
}

// SetCache attaches a report cache.
func (s *Service) SetCache(c Cache) {
	s.cache = c
}

// Generate derives statistics from history, optimizes (target mode when a
// target return is set), sweeps the frontier, simulates forward from the last
// prices and measures historical VaR of the optimized portfolio.
func (s *Service) Generate(ctx context.Context, history *marketdata.PriceHistory, req Request) (*Report, error) {
	if history == nil {
		return nil, domain.InvalidInputf("price history is required")
	}
	history, err := history.Select(req.Assets)
	if err != nil {
		return nil, err
	}

	key, err := Key(history, req)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if r, ok := s.cache.GetReport(key); ok {
			s.log.Debug().Str("key", key).Msg("Report cache hit")
			return r, nil
		}
	}

	snap, err := history.Snapshot()
	if err != nil {
		return nil, err
	}

	res, err := s.optimizer.Optimize(optimization.Request{
		Snapshot:      snap,
		RiskTolerance: req.RiskTolerance,
		TargetReturn:  req.TargetReturn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to optimize portfolio: %w", err)
	}

	curve, err := s.sweeper.Sweep(ctx, snap, req.RiskTolerance)
	if err != nil {
		return nil, fmt.Errorf("failed to sweep frontier: %w", err)
	}

	sim, err := s.simulate(ctx, history, snap, res.Weights, req)
	if err != nil {
		return nil, err
	}

	portfolioReturns := formulas.PortfolioReturns(history.Returns(), res.Weights)
	varValue := formulas.HistoricalVaR(portfolioReturns, VaRConfidence)

	r := &Report{
		Assets:   history.Assets,
		Snapshot: snap,
		Allocation: Allocation{
			Weights:        res.Weights,
			ByAsset:        byAsset(history.Assets, res.Weights),
			ExpectedReturn: res.ExpectedReturn,
			Volatility:     res.Volatility,
			ReturnPct:      res.ReturnPct(),
			VolatilityPct:  res.VolatilityPct(),
			Mode:           res.Mode,
		},
		VaR95:       varValue,
		VaR95Pct:    varValue * 100,
		SharpeRatio: formulas.SharpeRatio(res.ExpectedReturn, res.Volatility, req.RiskFreeRate),
		Frontier:    compactFrontier(curve),
		Simulation:  sim,
		GeneratedAt: time.Now().UTC(),
	}

	s.log.Info().
		Int("assets", len(r.Assets)).
		Str("mode", r.Allocation.Mode).
		Float64("return_pct", r.Allocation.ReturnPct).
		Float64("volatility_pct", r.Allocation.VolatilityPct).
		Float64("var_95_pct", r.VaR95Pct).
		Msg("Report generated")

	if s.cache != nil {
		s.cache.PutReport(key, r)
	}
	return r, nil
}

func (s *Service) simulate(ctx context.Context, history *marketdata.PriceHistory, snap domain.Snapshot, optimal domain.Weights, req Request) (Simulation, error) {
	horizon := req.HorizonYears
	if horizon == 0 {
		horizon = 1
	}
	tensor, err := s.simulator.Simulate(ctx, simulation.Params{
		InitialPrices:   history.Latest(),
		ExpectedReturns: snap.ExpectedReturns,
		Volatilities:    snap.Volatilities,
		Correlation:     snap.Correlation,
		HorizonYears:    horizon,
		Simulations:     req.Simulations,
		Steps:           req.Steps,
		Seed:            req.Seed,
		Correlated:      req.Correlated,
	})
	if err != nil {
		return Simulation{}, fmt.Errorf("failed to simulate paths: %w", err)
	}

	var weights domain.Weights
	valuedWith := ValuationEqualWeight
	if req.ValueWithOptimalWeights {
		weights = optimal
		valuedWith = ValuationOptimal
	}
	all, err := simulation.PortfolioValues(tensor, weights, 0)
	if err != nil {
		return Simulation{}, err
	}

	limit := req.Paths
	if limit <= 0 {
		limit = simulation.DefaultDisplayPaths
	}
	if limit > len(all) {
		limit = len(all)
	}
	return Simulation{
		ValuedWith: valuedWith,
		ValuePaths: all[:limit],
		Summary:    simulation.Summarize(all),
	}, nil
}

func compactFrontier(curve domain.FrontierCurve) Frontier {
	f := Frontier{
		Targets:      make([]float64, len(curve.Points)),
		Volatilities: curve.Volatilities(),
		Converged:    curve.Converged(),
	}
	for i, p := range curve.Points {
		f.Targets[i] = p.TargetReturn
	}
	return f
}

func byAsset(assets []string, w domain.Weights) map[string]float64 {
	m := make(map[string]float64, len(w))
	for i, v := range w {
		if i < len(assets) {
			m[assets[i]] = v
		}
	}
	return m
}

// Key identifies a report by its inputs. Both are msgpack-encoded and hashed.
func Key(history *marketdata.PriceHistory, req Request) (string, error) {
	raw, err := msgpack.Marshal(struct {
		Assets []string
		Prices [][]float64
		Req    Request
	}{history.Assets, history.Prices, req})
	if err != nil {
		return "", fmt.Errorf("failed to encode report key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:16]), nil
}

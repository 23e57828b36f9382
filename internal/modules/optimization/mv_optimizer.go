package optimization

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/allocator/internal/domain"
)

const (
	// ReturnTolerance is the largest |w·μ − target| accepted in target mode.
	ReturnTolerance = 1e-3

	constraintTolerance = 1e-9
	feasibilityEpsilon  = 1e-9
	varianceFloor       = 1e-14
	maxOuterIterations  = 40
	initialPenalty      = 10.0
	maxPenalty          = 1e9
	innerIterations     = 1000
)

// Optimization modes, used in logs and metrics.
const (
	ModeRiskTolerance = "risk_tolerance"
	ModeTargetReturn  = "target_return"
)

var successStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.GradientThreshold:   true,
	optimize.FunctionConvergence: true,
}

// Request is a single optimization call. TargetReturn selects target mode;
// otherwise RiskTolerance in (0,1] trades return against volatility.
type Request struct {
	Snapshot      domain.Snapshot
	RiskTolerance float64
	TargetReturn  *float64
}

// Mode returns the optimization mode the request selects.
func (r Request) Mode() string {
	if r.TargetReturn != nil {
		return ModeTargetReturn
	}
	return ModeRiskTolerance
}

// Result holds the optimal weights and their realized performance.
type Result struct {
	Weights domain.Weights `json:"weights"`
	domain.Performance
	Mode       string  `json:"mode"`
	Iterations int     `json:"iterations"`
	Residual   float64 `json:"residual"`
}

// MVOptimizer performs long-only mean-variance optimization.
//
// Mathematical formulation:
//   - target mode:         minimize sqrt(w'Σw)           s.t. Σw = 1, μ'w = target
//   - risk tolerance mode: minimize sqrt(w'Σw) - rt·μ'w  s.t. Σw = 1
//
// with 0 ≤ w_i ≤ 1. Equalities are handled by an augmented Lagrangian around
// BFGS; the box is enforced by projection plus a quadratic pull-back term.
type MVOptimizer struct {
	log      zerolog.Logger
	recorder Recorder
}

// NewMVOptimizer creates a new mean-variance optimizer.
func NewMVOptimizer(log zerolog.Logger) *MVOptimizer {
	return &MVOptimizer{
		log: log.With().Str("component", "mv_optimizer").Logger(),
	}
}

// SetRecorder attaches a metrics recorder.
func (mvo *MVOptimizer) SetRecorder(r Recorder) {
	mvo.recorder = r
}

// Optimize solves the request. It fails with domain.ErrInvalidInput for
// malformed inputs, domain.ErrInfeasibleTarget for a target outside
// [min μ, max μ] and a *domain.ConvergenceError (matching
// domain.ErrNonConvergence) when the return constraint is missed.
func (mvo *MVOptimizer) Optimize(req Request) (*Result, error) {
	start := time.Now()
	res, err := mvo.optimize(req)

	outcome := "ok"
	switch {
	case errors.Is(err, domain.ErrInfeasibleTarget):
		outcome = "infeasible"
	case errors.Is(err, domain.ErrNonConvergence):
		outcome = "non_convergence"
	case err != nil:
		outcome = "error"
	}
	if mvo.recorder != nil {
		mvo.recorder.ObserveOptimization(req.Mode(), outcome, time.Since(start))
	}
	return res, err
}

func (mvo *MVOptimizer) optimize(req Request) (*Result, error) {
	snap := req.Snapshot
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	p := &meanVariance{
		mu:  snap.ExpectedReturns,
		cov: snap.Covariance(),
	}
	if req.TargetReturn != nil {
		target := *req.TargetReturn
		if math.IsNaN(target) || math.IsInf(target, 0) {
			return nil, domain.InvalidInputf("target return must be finite")
		}
		lo, hi := snap.ReturnRange()
		if target < lo-feasibilityEpsilon || target > hi+feasibilityEpsilon {
			return nil, fmt.Errorf("%w: %.6f outside attainable range [%.6f, %.6f]", domain.ErrInfeasibleTarget, target, lo, hi)
		}
		p.target = &target
	} else {
		if !(req.RiskTolerance > 0 && req.RiskTolerance <= 1) {
			return nil, domain.InvalidInputf("risk tolerance must be in (0, 1], got %v", req.RiskTolerance)
		}
		p.riskTolerance = req.RiskTolerance
	}

	x, iterations, err := mvo.solve(p, snap.Len())
	if err != nil {
		return nil, err
	}

	weights := domain.Weights(project(x)).Normalize()
	res := &Result{
		Weights: weights,
		Performance: domain.Performance{
			ExpectedReturn: weights.Return(p.mu),
			Volatility:     weights.Volatility(p.cov),
		},
		Mode:       req.Mode(),
		Iterations: iterations,
	}
	if p.target != nil {
		res.Residual = math.Abs(res.ExpectedReturn - *p.target)
		if res.Residual > ReturnTolerance {
			mvo.log.Debug().
				Float64("target", *p.target).
				Float64("achieved", res.ExpectedReturn).
				Msg("Return constraint not met")
			return nil, &domain.ConvergenceError{
				Weights:  weights,
				Return:   res.ExpectedReturn,
				Risk:     res.Volatility,
				Residual: res.Residual,
				Reason:   "return constraint not met",
			}
		}
	}

	mvo.log.Debug().
		Str("mode", res.Mode).
		Int("assets", snap.Len()).
		Int("iterations", iterations).
		Float64("return", res.ExpectedReturn).
		Float64("volatility", res.Volatility).
		Msg("Optimization complete")

	return res, nil
}

// solve runs the augmented Lagrangian outer loop from the uniform start.
func (mvo *MVOptimizer) solve(p *meanVariance, n int) ([]float64, int, error) {
	x := domain.EqualWeights(n)
	lambda := make([]float64, p.numConstraints())
	rho := initialPenalty
	prevViolation := math.Inf(1)
	iterations := 0

	for outer := 0; outer < maxOuterIterations; outer++ {
		result, err := mvo.minimize(p.lagrangian(lambda, rho), x)
		if err != nil {
			return nil, iterations, err
		}
		x = result.X
		iterations += result.Stats.MajorIterations

		h := p.constraints(project(x))
		violation := floats.Norm(h, math.Inf(1))
		if violation < constraintTolerance {
			break
		}
		for k := range lambda {
			lambda[k] += rho * h[k]
		}
		if violation > 0.25*prevViolation {
			rho = math.Min(rho*10, maxPenalty)
		}
		prevViolation = violation
	}
	return x, iterations, nil
}

// minimize tries BFGS first and falls back to Nelder-Mead, keeping whichever
// iterate scores lower.
func (mvo *MVOptimizer) minimize(problem optimize.Problem, init []float64) (*optimize.Result, error) {
	settings := &optimize.Settings{MajorIterations: innerIterations}

	result, err := optimize.Minimize(problem, init, settings, &optimize.BFGS{})
	if err == nil && successStatuses[result.Status] {
		return result, nil
	}

	fallback, fbErr := optimize.Minimize(problem, init, settings, &optimize.NelderMead{})
	switch {
	case result == nil && fallback == nil:
		if fbErr == nil {
			fbErr = err
		}
		return nil, fmt.Errorf("optimization failed: %w", fbErr)
	case result == nil:
		return fallback, nil
	case fallback == nil:
		return result, nil
	}
	if fallback.F < result.F {
		return fallback, nil
	}
	return result, nil
}

// meanVariance holds the objective and equality constraints of one request.
type meanVariance struct {
	mu            []float64
	cov           *mat.SymDense
	riskTolerance float64
	target        *float64
}

func (p *meanVariance) numConstraints() int {
	if p.target != nil {
		return 2
	}
	return 1
}

// constraints returns the equality residuals h(w): [Σw−1, μ'w−target].
func (p *meanVariance) constraints(w []float64) []float64 {
	h := []float64{floats.Sum(w) - 1}
	if p.target != nil {
		h = append(h, floats.Dot(p.mu, w)-*p.target)
	}
	return h
}

// objective evaluates f(w) and, when grad is non-nil, stores ∇f(w) in it.
func (p *meanVariance) objective(w, grad []float64) float64 {
	n := len(w)
	wv := mat.NewVecDense(n, w)
	var sw mat.VecDense
	sw.MulVec(p.cov, wv)
	vol := math.Sqrt(math.Max(mat.Dot(wv, &sw), varianceFloor))

	f := vol
	if grad != nil {
		for i := 0; i < n; i++ {
			grad[i] = sw.AtVec(i) / vol
		}
	}
	if p.target == nil {
		f -= p.riskTolerance * floats.Dot(p.mu, w)
		if grad != nil {
			floats.AddScaled(grad, -p.riskTolerance, p.mu)
		}
	}
	return f
}

// lagrangian builds L(x) = f(w) + Σ λk·hk(w) + ρ/2·Σ hk(w)² + ρ/2·|x−w|²
// with w = clip(x, 0, 1).
func (p *meanVariance) lagrangian(lambda []float64, rho float64) optimize.Problem {
	return optimize.Problem{
		Func: func(x []float64) float64 {
			w := project(x)
			val := p.objective(w, nil)
			for k, hk := range p.constraints(w) {
				val += lambda[k]*hk + 0.5*rho*hk*hk
			}
			for i := range x {
				d := x[i] - w[i]
				val += 0.5 * rho * d * d
			}
			return val
		},
		Grad: func(grad, x []float64) {
			w := project(x)
			p.objective(w, grad)

			h := p.constraints(w)
			sumCoef := lambda[0] + rho*h[0]
			for i := range grad {
				grad[i] += sumCoef
			}
			if p.target != nil {
				floats.AddScaled(grad, lambda[1]+rho*h[1], p.mu)
			}

			for i := range x {
				if x[i] < 0 || x[i] > 1 {
					// w is flat in x outside the box
					grad[i] = 0
				}
				grad[i] += rho * (x[i] - w[i])
			}
		},
	}
}

// project clips every coordinate to [0,1].
func project(x []float64) []float64 {
	w := make([]float64, len(x))
	for i, v := range x {
		w[i] = math.Max(0, math.Min(1, v))
	}
	return w
}

// Package simulation generates geometric Brownian motion price paths and
// values portfolios along them.
package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/allocator/internal/domain"
)

const (
	DefaultSimulations = 1000
	DefaultSteps       = 252
	DefaultDt          = 1.0 / 252
	DefaultSeed        = 42
)

// Recorder receives simulation timings. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveSimulation(trajectories int, elapsed time.Duration)
}

// Params configures a Monte Carlo run. Zero Simulations, Steps and Dt take
// their defaults.
//
// With Correlated unset every asset gets independent Wiener increments and
// Correlation is ignored. With Correlated set the draws are coupled through
// the Cholesky factor of Correlation.
type Params struct {
	InitialPrices   []float64   `json:"initial_prices"`
	ExpectedReturns []float64   `json:"expected_returns"`
	Volatilities    []float64   `json:"volatilities"`
	Correlation     [][]float64 `json:"correlation,omitempty"`
	HorizonYears    float64     `json:"horizon_years"`
	Dt              float64     `json:"dt"`
	Simulations     int         `json:"simulations"`
	Steps           int         `json:"steps"`
	Seed            uint64      `json:"seed"`
	Correlated      bool        `json:"correlated"`
}

// WithDefaults fills unset sizes.
func (p Params) WithDefaults() Params {
	if p.Simulations == 0 {
		p.Simulations = DefaultSimulations
	}
	if p.Steps == 0 {
		p.Steps = DefaultSteps
	}
	if p.Dt == 0 {
		p.Dt = DefaultDt
	}
	return p
}

// Validate checks shapes and ranges.
func (p Params) Validate() error {
	n := len(p.InitialPrices)
	switch {
	case n == 0:
		return domain.InvalidInputf("no initial prices provided")
	case len(p.ExpectedReturns) != n:
		return domain.InvalidInputf("expected returns length %d doesn't match %d assets", len(p.ExpectedReturns), n)
	case len(p.Volatilities) != n:
		return domain.InvalidInputf("volatilities length %d doesn't match %d assets", len(p.Volatilities), n)
	case p.Simulations < 1:
		return domain.InvalidInputf("simulations must be positive")
	case p.Steps < 1:
		return domain.InvalidInputf("steps must be positive")
	case !(p.Dt > 0):
		return domain.InvalidInputf("dt must be positive")
	case !(p.HorizonYears > 0):
		return domain.InvalidInputf("horizon must be positive")
	}
	for j := 0; j < n; j++ {
		if !(p.InitialPrices[j] > 0) {
			return domain.InvalidInputf("initial price %d must be positive", j)
		}
		if !(p.Volatilities[j] >= 0) {
			return domain.InvalidInputf("volatility %d must be non-negative", j)
		}
	}
	if p.Correlated && len(p.Correlation) != n {
		return domain.InvalidInputf("correlation matrix size %d doesn't match %d assets", len(p.Correlation), n)
	}
	return nil
}

// Simulator runs Monte Carlo trajectories in parallel.
type Simulator struct {
	log      zerolog.Logger
	recorder Recorder
	workers  int
}

// NewSimulator creates a simulator using one worker per CPU.
func NewSimulator(log zerolog.Logger) *Simulator {
	return &Simulator{
		log:     log.With().Str("component", "simulator").Logger(),
		workers: runtime.GOMAXPROCS(0),
	}
}

// SetRecorder attaches a metrics recorder.
func (s *Simulator) SetRecorder(r Recorder) {
	s.recorder = r
}

// Simulate returns a Simulations × Steps × assets tensor of GBM prices:
//
//	price[t][j] = S0[j]·exp((μ[j] − σ[j]²/2)·τ[t] + σ[j]·W[t][j])
//
// where τ is linearly spaced over [0, HorizonYears] and W is the cumulative
// sum of standard normals scaled by √dt, starting at W[0] = 0. Trajectory k
// draws from its own PCG stream seeded by (Seed, k), so results do not depend
// on scheduling.
func (s *Simulator) Simulate(ctx context.Context, params Params) (*domain.PathTensor, error) {
	p := params.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var chol *mat.TriDense
	if p.Correlated {
		var err error
		if chol, err = choleskyFactor(p.Correlation); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	n := len(p.InitialPrices)
	times := timeGrid(p.HorizonYears, p.Steps)
	tensor := domain.NewPathTensor(p.Simulations, p.Steps, n)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for k := 0; k < p.Simulations; k++ {
		k := k
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			trajectory(p, chol, times, k, tensor.Paths[k])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulation cancelled: %w", err)
	}

	elapsed := time.Since(start)
	if s.recorder != nil {
		s.recorder.ObserveSimulation(p.Simulations, elapsed)
	}
	s.log.Debug().
		Int("simulations", p.Simulations).
		Int("steps", p.Steps).
		Int("assets", n).
		Bool("correlated", p.Correlated).
		Dur("elapsed", elapsed).
		Msg("Simulation complete")

	return tensor, nil
}

// trajectory fills out (steps × assets) for simulation k.
func trajectory(p Params, chol *mat.TriDense, times []float64, k int, out [][]float64) {
	rng := rand.New(rand.NewPCG(p.Seed, uint64(k)))
	n := len(p.InitialPrices)
	sqrtDt := math.Sqrt(p.Dt)

	drift := make([]float64, n)
	for j := 0; j < n; j++ {
		drift[j] = p.ExpectedReturns[j] - 0.5*p.Volatilities[j]*p.Volatilities[j]
	}

	wiener := make([]float64, n)
	draws := make([]float64, n)
	var coupled *mat.VecDense
	if chol != nil {
		coupled = mat.NewVecDense(n, nil)
	}

	copy(out[0], p.InitialPrices)
	for t := 1; t < p.Steps; t++ {
		for j := range draws {
			draws[j] = rng.NormFloat64()
		}
		z := draws
		if chol != nil {
			coupled.MulVec(chol, mat.NewVecDense(n, draws))
			z = coupled.RawVector().Data
		}
		for j := 0; j < n; j++ {
			wiener[j] += z[j] * sqrtDt
			out[t][j] = p.InitialPrices[j] * math.Exp(drift[j]*times[t]+p.Volatilities[j]*wiener[j])
		}
	}
}

// timeGrid returns steps points linearly spaced over [0, horizon].
func timeGrid(horizon float64, steps int) []float64 {
	grid := make([]float64, steps)
	if steps == 1 {
		return grid
	}
	for t := range grid {
		grid[t] = horizon * float64(t) / float64(steps-1)
	}
	return grid
}

// choleskyFactor returns the lower factor L with LLᵀ = corr.
func choleskyFactor(corr [][]float64) (*mat.TriDense, error) {
	n := len(corr)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if len(corr[i]) != n {
			return nil, domain.InvalidInputf("correlation row %d has size %d, expected %d", i, len(corr[i]), n)
		}
		for j := i; j < n; j++ {
			sym.SetSym(i, j, corr[i][j])
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, domain.InvalidInputf("correlation matrix is not positive definite")
	}
	var l mat.TriDense
	chol.LTo(&l)
	return &l, nil
}

package simulation

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/allocator/internal/domain"
)

// DefaultDisplayPaths is how many value paths are returned for charting.
const DefaultDisplayPaths = 10

// PortfolioValues values every trajectory with fixed weights and normalizes
// each value path to 1 at step 0. Nil weights mean an equal allocation.
// At most limit paths are returned; limit <= 0 returns all of them.
func PortfolioValues(tensor *domain.PathTensor, weights domain.Weights, limit int) ([][]float64, error) {
	if tensor == nil || tensor.Simulations == 0 {
		return nil, domain.InvalidInputf("empty path tensor")
	}
	if weights == nil {
		weights = domain.EqualWeights(tensor.Assets)
	}
	if len(weights) != tensor.Assets {
		return nil, domain.InvalidInputf("%d weights for %d assets", len(weights), tensor.Assets)
	}

	count := tensor.Simulations
	if limit > 0 && limit < count {
		count = limit
	}
	values := make([][]float64, count)
	for k := 0; k < count; k++ {
		path := tensor.Path(k)
		base := floats.Dot(weights, path[0])
		values[k] = make([]float64, tensor.Steps)
		for t, prices := range path {
			values[k][t] = floats.Dot(weights, prices) / base
		}
	}
	return values, nil
}

// Summary describes the terminal distribution of normalized value paths.
type Summary struct {
	ExpectedReturn float64 `json:"expected_return"`
	Risk           float64 `json:"risk"`
	Worst          float64 `json:"worst"`
	Best           float64 `json:"best"`
}

// Summarize returns the mean terminal return, its standard deviation and the
// extreme terminal returns.
func Summarize(values [][]float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	terminal := make([]float64, len(values))
	for k, path := range values {
		terminal[k] = path[len(path)-1] - 1
	}
	s := Summary{
		ExpectedReturn: stat.Mean(terminal, nil),
		Worst:          floats.Min(terminal),
		Best:           floats.Max(terminal),
	}
	if len(terminal) > 1 {
		s.Risk = stat.StdDev(terminal, nil)
	}
	return s
}

// EulerPath integrates dS = μS·dt + σS·dW for a single asset with the
// Euler-Maruyama scheme over int(T/dt) steps.
func EulerPath(rng *rand.Rand, s0, mu, sigma, horizon, dt float64) ([]float64, error) {
	if !(s0 > 0) || !(horizon > 0) || !(dt > 0) || sigma < 0 {
		return nil, domain.InvalidInputf("euler path needs positive price, horizon and dt and a non-negative volatility")
	}
	steps := int(horizon / dt)
	if steps < 1 {
		return nil, domain.InvalidInputf("horizon %v shorter than one step of %v", horizon, dt)
	}
	path := make([]float64, steps)
	path[0] = s0
	sqrtDt := math.Sqrt(dt)
	for t := 1; t < steps; t++ {
		dW := rng.NormFloat64() * sqrtDt
		prev := path[t-1]
		path[t] = prev + mu*prev*dt + sigma*prev*dW
	}
	return path, nil
}

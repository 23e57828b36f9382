// Package domain holds the value types exchanged between the allocator modules.
package domain

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Snapshot is the per-asset statistics an optimization or simulation runs on.
// All slices are index-aligned; volatilities and returns are annualized.
type Snapshot struct {
	Assets          []string    `json:"assets,omitempty"`
	ExpectedReturns []float64   `json:"expected_returns"`
	Volatilities    []float64   `json:"volatilities"`
	Correlation     [][]float64 `json:"correlation"`
}

// Len returns the number of assets.
func (s Snapshot) Len() int {
	return len(s.ExpectedReturns)
}

// Validate checks shapes and finiteness. Positive semi-definiteness of the
// correlation matrix is not checked.
func (s Snapshot) Validate() error {
	n := len(s.ExpectedReturns)
	if n == 0 {
		return InvalidInputf("no expected returns provided")
	}
	if len(s.Volatilities) != n {
		return InvalidInputf("volatilities length %d doesn't match %d assets", len(s.Volatilities), n)
	}
	if len(s.Correlation) != n {
		return InvalidInputf("correlation matrix size %d doesn't match %d assets", len(s.Correlation), n)
	}
	if len(s.Assets) != 0 && len(s.Assets) != n {
		return InvalidInputf("asset names length %d doesn't match %d assets", len(s.Assets), n)
	}
	for i := 0; i < n; i++ {
		if len(s.Correlation[i]) != n {
			return InvalidInputf("correlation row %d has size %d, expected %d", i, len(s.Correlation[i]), n)
		}
		if !finite(s.ExpectedReturns[i]) {
			return InvalidInputf("expected return %d is not finite", i)
		}
		if !finite(s.Volatilities[i]) || s.Volatilities[i] < 0 {
			return InvalidInputf("volatility %d must be a non-negative number", i)
		}
		for j := 0; j < n; j++ {
			if !finite(s.Correlation[i][j]) {
				return InvalidInputf("correlation [%d][%d] is not finite", i, j)
			}
		}
	}
	return nil
}

// Covariance derives Σ[i][j] = ρ[i][j]·σ[i]·σ[j]. The upper triangle of the
// correlation matrix is used.
func (s Snapshot) Covariance() *mat.SymDense {
	n := s.Len()
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, s.Correlation[i][j]*s.Volatilities[i]*s.Volatilities[j])
		}
	}
	return cov
}

// ReturnRange returns the smallest and largest expected return.
func (s Snapshot) ReturnRange() (lo, hi float64) {
	if s.Len() == 0 {
		return 0, 0
	}
	lo, hi = s.ExpectedReturns[0], s.ExpectedReturns[0]
	for _, r := range s.ExpectedReturns[1:] {
		lo = math.Min(lo, r)
		hi = math.Max(hi, r)
	}
	return lo, hi
}

// AssetName returns the configured name of asset i, or a positional label.
func (s Snapshot) AssetName(i int) string {
	if i < len(s.Assets) {
		return s.Assets[i]
	}
	return "asset_" + strconv.Itoa(i)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

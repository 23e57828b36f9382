package domain

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Weights is a long-only allocation, index-aligned with a Snapshot.
type Weights []float64

// EqualWeights returns 1/n for every asset.
func EqualWeights(n int) Weights {
	w := make(Weights, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}

// Sum returns Σw.
func (w Weights) Sum() float64 {
	return floats.Sum(w)
}

// Return returns w·μ.
func (w Weights) Return(mu []float64) float64 {
	return floats.Dot(w, mu)
}

// Volatility returns sqrt(wᵀΣw), clamped at zero for tiny negative round-off.
func (w Weights) Volatility(cov mat.Symmetric) float64 {
	v := mat.NewVecDense(len(w), w)
	return math.Sqrt(math.Max(mat.Inner(v, cov, v), 0))
}

// Normalize clips every weight to [0,1] and rescales so the weights sum to 1.
// A vector with no positive mass becomes equal-weighted.
func (w Weights) Normalize() Weights {
	out := make(Weights, len(w))
	for i, x := range w {
		out[i] = math.Max(0, math.Min(1, x))
	}
	sum := out.Sum()
	if sum <= 1e-12 {
		return EqualWeights(len(w))
	}
	floats.Scale(1/sum, out)
	return out
}

// Clone returns a copy.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	copy(out, w)
	return out
}

// Package stopping finds the first step at which a price path moves by more
// than a relative threshold.
//
// Every path is a sequence of price vectors, one per step. A single asset is
// the length-1 case; see Scalar.
package stopping

import (
	"math"

	"github.com/aristath/allocator/internal/domain"
)

// DefaultThreshold is the relative move that triggers a decision point.
const DefaultThreshold = 0.1

// Path is steps × assets.
type Path [][]float64

// Scalar lifts a single-asset price series into a Path.
func Scalar(prices []float64) Path {
	p := make(Path, len(prices))
	for i, v := range prices {
		p[i] = []float64{v}
	}
	return p
}

// FromTensor exposes every simulated trajectory as a Path.
func FromTensor(tensor *domain.PathTensor) []Path {
	if tensor == nil {
		return nil
	}
	paths := make([]Path, tensor.Simulations)
	for k := range paths {
		paths[k] = tensor.Path(k)
	}
	return paths
}

// Detect scans each path for the first step t ≥ 1 whose largest absolute
// relative change across assets, |p[t]−p[t−1]| / p[t−1], strictly exceeds
// threshold. A path yields at most one decision point; scanning stops at the
// first trigger. Results are ordered by path index.
func Detect(paths []Path, threshold float64) []domain.DecisionPoint {
	points := make([]domain.DecisionPoint, 0)
	for k, path := range paths {
		if dp, ok := First(path, threshold); ok {
			dp.Path = k
			points = append(points, dp)
		}
	}
	return points
}

// First returns the first decision point of a single path.
func First(path Path, threshold float64) (domain.DecisionPoint, bool) {
	for t := 1; t < len(path); t++ {
		change := MaxChange(path[t-1], path[t])
		if change > threshold {
			prices := make([]float64, len(path[t]))
			copy(prices, path[t])
			return domain.DecisionPoint{Step: t, Prices: prices, Change: change}, true
		}
	}
	return domain.DecisionPoint{}, false
}

// MaxChange returns the largest absolute relative change between two steps.
func MaxChange(prev, cur []float64) float64 {
	var best float64
	for j := range cur {
		if c := RelativeChange(prev[j], cur[j]); c > best {
			best = c
		}
	}
	return best
}

// RelativeChange returns |cur−prev| / prev, or 0 when prev is not positive.
func RelativeChange(prev, cur float64) float64 {
	if prev <= 0 {
		return 0
	}
	return math.Abs(cur-prev) / prev
}

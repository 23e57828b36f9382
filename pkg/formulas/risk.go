package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PortfolioReturns dots every row of a returns matrix with the weights.
func PortfolioReturns(returns [][]float64, weights []float64) []float64 {
	out := make([]float64, len(returns))
	for i, row := range returns {
		out[i] = floats.Dot(row, weights)
	}
	return out
}

// HistoricalVaR returns the (1-confidence) empirical quantile of the returns.
// At 95% confidence this is the 5th percentile; losses come back negative.
func HistoricalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	return stat.Quantile(1-confidence, stat.Empirical, sorted, nil)
}

// SharpeRatio returns (return - riskFree) / volatility, or 0 for a riskless portfolio.
func SharpeRatio(expectedReturn, volatility, riskFreeRate float64) float64 {
	if volatility <= 0 || math.IsNaN(volatility) {
		return 0
	}
	return (expectedReturn - riskFreeRate) / volatility
}

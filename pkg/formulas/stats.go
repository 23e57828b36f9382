// Package formulas contains the statistics used to turn price history into
// optimizer inputs and to score the resulting portfolios.
package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization factor for daily data.
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// CalculateReturns converts prices to simple daily returns.
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}
	// Rocp leaves the first `period` slots at zero
	return talib.Rocp(prices, 1)[1:]
}

// AnnualizedReturn scales the mean daily return to a year.
func AnnualizedReturn(dailyReturns []float64) float64 {
	return Mean(dailyReturns) * TradingDaysPerYear
}

// AnnualizedVolatility calculates annualized volatility from daily returns
// Formula: Std Dev of Daily Returns × sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// CorrelationMatrix returns the Pearson correlation of the columns of a
// returns matrix (rows are observations). Columns with zero variance get a
// unit diagonal and zero off-diagonal entries instead of NaN.
func CorrelationMatrix(returns [][]float64) [][]float64 {
	if len(returns) == 0 {
		return nil
	}
	rows, cols := len(returns), len(returns[0])
	data := mat.NewDense(rows, cols, nil)
	for i, row := range returns {
		data.SetRow(i, row)
	}

	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, data, nil)

	out := make([][]float64, cols)
	for i := 0; i < cols; i++ {
		out[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			v := corr.At(i, j)
			switch {
			case i == j:
				v = 1
			case math.IsNaN(v):
				v = 0
			}
			out[i][j] = v
		}
	}
	return out
}

// Package marketdata holds daily price history and derives optimizer
// statistics from it.
package marketdata

import (
	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/pkg/formulas"
)

// MinReturnObservations is the fewest daily returns a snapshot is derived from.
const MinReturnObservations = 2

// PriceHistory is a table of daily prices: one row per day, one column per asset.
type PriceHistory struct {
	Dates  []string    `json:"dates,omitempty"`
	Assets []string    `json:"assets"`
	Prices [][]float64 `json:"prices"`
}

// NewPriceHistory validates and wraps a price table. Dates may be nil.
func NewPriceHistory(assets []string, dates []string, prices [][]float64) (*PriceHistory, error) {
	if len(assets) == 0 {
		return nil, domain.InvalidInputf("price history has no assets")
	}
	if dates != nil && len(dates) != len(prices) {
		return nil, domain.InvalidInputf("%d dates for %d price rows", len(dates), len(prices))
	}
	for i, row := range prices {
		if len(row) != len(assets) {
			return nil, domain.InvalidInputf("price row %d has %d values, expected %d", i, len(row), len(assets))
		}
		for j, p := range row {
			if !(p > 0) {
				return nil, domain.InvalidInputf("price of %s on row %d must be positive", assets[j], i)
			}
		}
	}
	return &PriceHistory{Dates: dates, Assets: assets, Prices: prices}, nil
}

// Len returns the number of days.
func (h *PriceHistory) Len() int {
	return len(h.Prices)
}

// Window returns the first end rows. The rows are shared, not copied.
func (h *PriceHistory) Window(end int) *PriceHistory {
	if end > h.Len() {
		end = h.Len()
	}
	w := &PriceHistory{Assets: h.Assets, Prices: h.Prices[:end]}
	if h.Dates != nil {
		w.Dates = h.Dates[:end]
	}
	return w
}

// Column returns the price series of asset j.
func (h *PriceHistory) Column(j int) []float64 {
	col := make([]float64, len(h.Prices))
	for i, row := range h.Prices {
		col[i] = row[j]
	}
	return col
}

// Latest returns the most recent prices.
func (h *PriceHistory) Latest() []float64 {
	if h.Len() == 0 {
		return nil
	}
	out := make([]float64, len(h.Assets))
	copy(out, h.Prices[h.Len()-1])
	return out
}

// Select keeps only the named assets, in the given order.
func (h *PriceHistory) Select(assets []string) (*PriceHistory, error) {
	if len(assets) == 0 {
		return h, nil
	}
	index := make(map[string]int, len(h.Assets))
	for j, a := range h.Assets {
		index[a] = j
	}
	cols := make([]int, len(assets))
	for k, a := range assets {
		j, ok := index[a]
		if !ok {
			return nil, domain.InvalidInputf("asset %q not in price history", a)
		}
		cols[k] = j
	}
	prices := make([][]float64, len(h.Prices))
	for i, row := range h.Prices {
		prices[i] = make([]float64, len(cols))
		for k, j := range cols {
			prices[i][k] = row[j]
		}
	}
	return &PriceHistory{Dates: h.Dates, Assets: assets, Prices: prices}, nil
}

// Returns builds the daily returns matrix, one row per day after the first.
func (h *PriceHistory) Returns() [][]float64 {
	if h.Len() < 2 {
		return nil
	}
	out := make([][]float64, h.Len()-1)
	for i := range out {
		out[i] = make([]float64, len(h.Assets))
	}
	for j := range h.Assets {
		for i, r := range formulas.CalculateReturns(h.Column(j)) {
			out[i][j] = r
		}
	}
	return out
}

// Snapshot derives annualized statistics: mean daily return × 252,
// daily standard deviation × √252 and the Pearson correlation of returns.
func (h *PriceHistory) Snapshot() (domain.Snapshot, error) {
	returns := h.Returns()
	if len(returns) < MinReturnObservations {
		return domain.Snapshot{}, domain.InvalidInputf("need at least %d return observations, have %d", MinReturnObservations, len(returns))
	}

	n := len(h.Assets)
	snap := domain.Snapshot{
		Assets:          h.Assets,
		ExpectedReturns: make([]float64, n),
		Volatilities:    make([]float64, n),
		Correlation:     formulas.CorrelationMatrix(returns),
	}
	for j := 0; j < n; j++ {
		col := make([]float64, len(returns))
		for i := range returns {
			col[i] = returns[i][j]
		}
		snap.ExpectedReturns[j] = formulas.AnnualizedReturn(col)
		snap.Volatilities[j] = formulas.AnnualizedVolatility(col)
	}
	return snap, snap.Validate()
}

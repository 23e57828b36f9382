package report

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/marketdata"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/simulation"
)

type mapCache map[string]*Report

func (c mapCache) GetReport(key string) (*Report, bool) {
	r, ok := c[key]
	return r, ok
}

func (c mapCache) PutReport(key string, r *Report) {
	c[key] = r
}

func testHistory(t *testing.T) *marketdata.PriceHistory {
	t.Helper()
	prices := make([][]float64, 120)
	for i := range prices {
		x := float64(i)
		prices[i] = []float64{
			100 * math.Exp(0.0008*x+0.02*math.Sin(x/5)),
			50 * math.Exp(0.0003*x+0.005*math.Sin(x/3)),
			20 * math.Exp(0.0005*x+0.01*math.Cos(x/4)),
		}
	}
	h, err := marketdata.NewPriceHistory([]string{"Stocks", "Bonds", "Gold"}, nil, prices)
	require.NoError(t, err)
	return h
}

func newService() *Service {
	log := zerolog.Nop()
	optimizer := optimization.NewMVOptimizer(log)
	return NewService(optimizer, optimization.NewFrontierSweeper(optimizer, log), simulation.NewSimulator(log), log)
}

func smallRequest() Request {
	return Request{
		RiskTolerance: 0.5,
		HorizonYears:  1,
		Simulations:   40,
		Steps:         30,
		Seed:          42,
		RiskFreeRate:  0.02,
	}
}

func TestService_Generate(t *testing.T) {
	r, err := newService().Generate(context.Background(), testHistory(t), smallRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"Stocks", "Bonds", "Gold"}, r.Assets)
	assert.InDelta(t, 1.0, r.Allocation.Weights.Sum(), 1e-6)
	assert.Len(t, r.Allocation.ByAsset, 3)
	assert.Equal(t, optimization.ModeRiskTolerance, r.Allocation.Mode)
	assert.InDelta(t, r.Allocation.ExpectedReturn*100, r.Allocation.ReturnPct, 1e-9)

	assert.Len(t, r.Frontier.Targets, optimization.FrontierPoints)
	assert.Len(t, r.Frontier.Volatilities, optimization.FrontierPoints)

	assert.Equal(t, ValuationEqualWeight, r.Simulation.ValuedWith)
	require.Len(t, r.Simulation.ValuePaths, simulation.DefaultDisplayPaths)
	for _, p := range r.Simulation.ValuePaths {
		require.Len(t, p, 30)
		assert.InDelta(t, 1.0, p[0], 1e-12)
	}

	assert.Less(t, r.VaR95, 0.0, "5th percentile of a noisy series is a loss")
	assert.InDelta(t, r.VaR95*100, r.VaR95Pct, 1e-12)
	assert.InDelta(t, (r.Allocation.ExpectedReturn-0.02)/r.Allocation.Volatility, r.SharpeRatio, 1e-9)
}

func TestService_Generate_TargetMode(t *testing.T) {
	h := testHistory(t)
	snap, err := h.Snapshot()
	require.NoError(t, err)
	lo, hi := snap.ReturnRange()
	target := (lo + hi) / 2

	req := smallRequest()
	req.TargetReturn = &target
	r, err := newService().Generate(context.Background(), h, req)
	require.NoError(t, err)

	assert.Equal(t, optimization.ModeTargetReturn, r.Allocation.Mode)
	assert.InDelta(t, target, r.Allocation.ExpectedReturn, 1e-2)
}

func TestService_Generate_OptimalValuation(t *testing.T) {
	req := smallRequest()
	req.ValueWithOptimalWeights = true
	req.Paths = 3

	r, err := newService().Generate(context.Background(), testHistory(t), req)
	require.NoError(t, err)
	assert.Equal(t, ValuationOptimal, r.Simulation.ValuedWith)
	assert.Len(t, r.Simulation.ValuePaths, 3)
}

func TestService_Generate_SelectsAssets(t *testing.T) {
	req := smallRequest()
	req.Assets = []string{"Gold", "Stocks"}

	r, err := newService().Generate(context.Background(), testHistory(t), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gold", "Stocks"}, r.Assets)
	assert.Len(t, r.Allocation.Weights, 2)

	req.Assets = []string{"Crypto"}
	_, err = newService().Generate(context.Background(), testHistory(t), req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestService_Generate_Errors(t *testing.T) {
	svc := newService()

	_, err := svc.Generate(context.Background(), nil, smallRequest())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	req := smallRequest()
	req.RiskTolerance = 0
	_, err = svc.Generate(context.Background(), testHistory(t), req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	tooHigh := 100.0
	req = smallRequest()
	req.TargetReturn = &tooHigh
	_, err = svc.Generate(context.Background(), testHistory(t), req)
	assert.ErrorIs(t, err, domain.ErrInfeasibleTarget)
}

func TestService_Generate_UsesCache(t *testing.T) {
	cache := mapCache{}
	svc := newService()
	svc.SetCache(cache)

	first, err := svc.Generate(context.Background(), testHistory(t), smallRequest())
	require.NoError(t, err)
	assert.Len(t, cache, 1)

	second, err := svc.Generate(context.Background(), testHistory(t), smallRequest())
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestKey(t *testing.T) {
	h := testHistory(t)
	a, err := Key(h, smallRequest())
	require.NoError(t, err)
	b, err := Key(h, smallRequest())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	req := smallRequest()
	req.Seed = 7
	c, err := Key(h, req)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

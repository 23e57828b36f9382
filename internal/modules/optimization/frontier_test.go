package optimization

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/domain"
)

type mapCache struct {
	mu     sync.Mutex
	curves map[string]domain.FrontierCurve
	puts   int
}

func (c *mapCache) GetFrontier(key string) (domain.FrontierCurve, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	curve, ok := c.curves[key]
	return curve, ok
}

func (c *mapCache) PutFrontier(key string, curve domain.FrontierCurve) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.curves[key] = curve
	c.puts++
}

// stubOptimizer fails every other target with a convergence error.
type stubOptimizer struct{}

func (stubOptimizer) Optimize(req Request) (*Result, error) {
	t := *req.TargetReturn
	if int(t*1000)%2 == 1 {
		return nil, &domain.ConvergenceError{Risk: 0.3, Return: t - 0.01, Residual: 0.01, Reason: "stub"}
	}
	return &Result{
		Weights:     domain.Weights{1},
		Performance: domain.Performance{ExpectedReturn: t, Volatility: t * 2},
	}, nil
}

func TestTargetGrid(t *testing.T) {
	grid := TargetGrid(0.08, 0.12, 100)

	require.Len(t, grid, 100)
	assert.Equal(t, 0.08, grid[0])
	assert.Equal(t, 0.12, grid[99])
	for i := 1; i < len(grid); i++ {
		assert.GreaterOrEqual(t, grid[i], grid[i-1])
	}

	flat := TargetGrid(0.1, 0.1, 5)
	assert.Equal(t, []float64{0.1, 0.1, 0.1, 0.1, 0.1}, flat)
}

func TestFrontierSweeper_Sweep(t *testing.T) {
	sweeper := NewFrontierSweeper(NewMVOptimizer(zerolog.Nop()), zerolog.Nop())

	curve, err := sweeper.Sweep(context.Background(), threeAssetSnapshot(), 0.5)
	require.NoError(t, err)

	require.Len(t, curve.Points, FrontierPoints)
	assert.Equal(t, 0.08, curve.Points[0].TargetReturn)
	assert.Equal(t, 0.12, curve.Points[FrontierPoints-1].TargetReturn)
	for i := 1; i < len(curve.Points); i++ {
		assert.GreaterOrEqual(t, curve.Points[i].TargetReturn, curve.Points[i-1].TargetReturn)
	}
	for _, p := range curve.Points {
		if p.Status != domain.PointConverged {
			continue
		}
		assert.InDelta(t, p.TargetReturn, p.Return, 1e-2)
		assert.InDelta(t, 1.0, p.Weights.Sum(), 1e-6)
	}
	assert.Greater(t, curve.Converged(), FrontierPoints/2)
	assert.Len(t, curve.Volatilities(), FrontierPoints)
}

func TestFrontierSweeper_EmptyReturns(t *testing.T) {
	sweeper := NewFrontierSweeper(stubOptimizer{}, zerolog.Nop())

	_, err := sweeper.Sweep(context.Background(), domain.Snapshot{}, 0.5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFrontierSweeper_KeepsLowConfidencePoints(t *testing.T) {
	sweeper := NewFrontierSweeper(stubOptimizer{}, zerolog.Nop())
	sweeper.SetWorkers(3)
	snap := domain.Snapshot{
		ExpectedReturns: []float64{0.0, 0.099},
		Volatilities:    []float64{0.1, 0.1},
		Correlation:     [][]float64{{1, 0}, {0, 1}},
	}

	curve, err := sweeper.Sweep(context.Background(), snap, 0.5)
	require.NoError(t, err)
	require.Len(t, curve.Points, FrontierPoints)

	var low int
	for _, p := range curve.Points {
		switch p.Status {
		case domain.PointLowConfidence:
			low++
			assert.Equal(t, 0.3, p.Volatility)
		case domain.PointConverged:
			assert.InDelta(t, p.TargetReturn*2, p.Volatility, 1e-12)
		}
	}
	assert.Greater(t, low, 0)
	assert.Equal(t, FrontierPoints, low+curve.Converged())
}

func TestFrontierSweeper_UsesCache(t *testing.T) {
	cache := &mapCache{curves: map[string]domain.FrontierCurve{}}
	sweeper := NewFrontierSweeper(stubOptimizer{}, zerolog.Nop())
	sweeper.SetCache(cache)
	snap := threeAssetSnapshot()

	first, err := sweeper.Sweep(context.Background(), snap, 0.5)
	require.NoError(t, err)
	second, err := sweeper.Sweep(context.Background(), snap, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 1, cache.puts)
	assert.Equal(t, first, second)
}

func TestFrontierSweeper_Cancelled(t *testing.T) {
	sweeper := NewFrontierSweeper(stubOptimizer{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sweeper.Sweep(ctx, threeAssetSnapshot(), 0.5)
	assert.ErrorIs(t, err, context.Canceled)
}

// gatedOptimizer blocks every solve until release is closed.
type gatedOptimizer struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedOptimizer) Optimize(req Request) (*Result, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	t := *req.TargetReturn
	return &Result{
		Weights:     domain.Weights{1},
		Performance: domain.Performance{ExpectedReturn: t, Volatility: t * 2},
	}, nil
}

func TestFrontierSweeper_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	opt := &gatedOptimizer{started: make(chan struct{}), release: make(chan struct{})}
	sweeper := NewFrontierSweeper(opt, zerolog.Nop())
	snap := threeAssetSnapshot()

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := sweeper.Sweep(ctx, snap, 0.5)
		firstErr <- err
	}()
	<-opt.started

	type result struct {
		curve domain.FrontierCurve
		err   error
	}
	second := make(chan result, 1)
	go func() {
		curve, err := sweeper.Sweep(context.Background(), snap, 0.5)
		second <- result{curve, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(opt.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Len(t, res.curve.Points, FrontierPoints)
	assert.Equal(t, FrontierPoints, res.curve.Converged())
}

func TestSnapshotKey(t *testing.T) {
	a := threeAssetSnapshot()
	b := threeAssetSnapshot()
	assert.Equal(t, SnapshotKey(a), SnapshotKey(b))

	b.ExpectedReturns[0] = 0.13
	assert.NotEqual(t, SnapshotKey(a), SnapshotKey(b))
	assert.Len(t, SnapshotKey(a), 32)
}

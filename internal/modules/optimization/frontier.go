package optimization

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/aristath/allocator/internal/domain"
)

// FrontierPoints is the number of target returns in a sweep.
const FrontierPoints = 100

// FrontierSweeper drives the optimizer across a uniform grid of target
// returns. Grid points are solved in parallel; nothing mutable is shared
// between them.
type FrontierSweeper struct {
	optimizer Optimizer
	log       zerolog.Logger
	cache     FrontierCache
	group     singleflight.Group
	workers   int
}

// NewFrontierSweeper creates a sweeper using one worker per CPU.
func NewFrontierSweeper(optimizer Optimizer, log zerolog.Logger) *FrontierSweeper {
	return &FrontierSweeper{
		optimizer: optimizer,
		log:       log.With().Str("component", "frontier").Logger(),
		workers:   runtime.GOMAXPROCS(0),
	}
}

// SetCache attaches a result cache.
func (s *FrontierSweeper) SetCache(c FrontierCache) {
	s.cache = c
}

// SetWorkers bounds the number of grid points solved at once.
func (s *FrontierSweeper) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// Sweep returns exactly FrontierPoints points over [min μ, max μ] in grid
// order. Points whose solve fails are kept and flagged through their Status.
func (s *FrontierSweeper) Sweep(ctx context.Context, snap domain.Snapshot, riskTolerance float64) (domain.FrontierCurve, error) {
	if err := snap.Validate(); err != nil {
		return domain.FrontierCurve{}, fmt.Errorf("frontier: %w", err)
	}
	if !(riskTolerance > 0 && riskTolerance <= 1) {
		return domain.FrontierCurve{}, domain.InvalidInputf("risk tolerance must be in (0, 1], got %v", riskTolerance)
	}

	key := SnapshotKey(snap)
	if s.cache != nil {
		if curve, ok := s.cache.GetFrontier(key); ok {
			s.log.Debug().Str("key", key).Msg("Frontier cache hit")
			return curve, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return domain.FrontierCurve{}, fmt.Errorf("frontier sweep cancelled: %w", err)
	}

	// The shared sweep outlives any single caller so that one cancelled
	// request does not fail the others waiting on the same key.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		curve, err := s.sweep(context.WithoutCancel(ctx), snap, riskTolerance)
		if err == nil && s.cache != nil {
			s.cache.PutFrontier(key, curve)
		}
		return curve, err
	})
	select {
	case <-ctx.Done():
		return domain.FrontierCurve{}, fmt.Errorf("frontier sweep cancelled: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.FrontierCurve{}, res.Err
		}
		return res.Val.(domain.FrontierCurve), nil
	}
}

func (s *FrontierSweeper) sweep(ctx context.Context, snap domain.Snapshot, riskTolerance float64) (domain.FrontierCurve, error) {
	lo, hi := snap.ReturnRange()
	targets := TargetGrid(lo, hi, FrontierPoints)
	points := make([]domain.FrontierPoint, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			points[i] = s.point(snap, riskTolerance, target)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.FrontierCurve{}, fmt.Errorf("frontier sweep cancelled: %w", err)
	}

	curve := domain.FrontierCurve{Points: points}
	s.log.Info().
		Int("points", len(points)).
		Int("converged", curve.Converged()).
		Float64("min_target", lo).
		Float64("max_target", hi).
		Msg("Frontier sweep complete")
	return curve, nil
}

func (s *FrontierSweeper) point(snap domain.Snapshot, riskTolerance, target float64) domain.FrontierPoint {
	t := target
	res, err := s.optimizer.Optimize(Request{Snapshot: snap, RiskTolerance: riskTolerance, TargetReturn: &t})

	p := domain.FrontierPoint{TargetReturn: target}
	var convErr *domain.ConvergenceError
	switch {
	case err == nil:
		p.Volatility = res.Volatility
		p.Return = res.ExpectedReturn
		p.Weights = res.Weights
		p.Status = domain.PointConverged
	case errors.As(err, &convErr):
		p.Volatility = convErr.Risk
		p.Return = convErr.Return
		p.Weights = convErr.Weights
		p.Status = domain.PointLowConfidence
	case errors.Is(err, domain.ErrInfeasibleTarget):
		p.Status = domain.PointInfeasible
	default:
		s.log.Warn().Err(err).Float64("target", target).Msg("Frontier point failed")
		p.Status = domain.PointLowConfidence
	}
	return p
}

// TargetGrid returns n evenly spaced values from lo to hi inclusive.
func TargetGrid(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	grid := make([]float64, n)
	if n == 1 {
		grid[0] = lo
		return grid
	}
	step := (hi - lo) / float64(n-1)
	for i := range grid {
		grid[i] = lo + float64(i)*step
	}
	grid[n-1] = hi
	return grid
}

// SnapshotKey hashes a snapshot into a stable cache key.
func SnapshotKey(snap domain.Snapshot) string {
	h := sha256.New()
	var buf [8]byte
	write := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	for _, v := range snap.ExpectedReturns {
		write(v)
	}
	for _, v := range snap.Volatilities {
		write(v)
	}
	for _, row := range snap.Correlation {
		for _, v := range row {
			write(v)
		}
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

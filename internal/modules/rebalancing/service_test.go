package rebalancing

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/events"
	"github.com/aristath/allocator/internal/marketdata"
	"github.com/aristath/allocator/internal/modules/optimization"
)

type equalWeightOptimizer struct {
	calls int
}

func (o *equalWeightOptimizer) Optimize(req optimization.Request) (*optimization.Result, error) {
	o.calls++
	w := domain.EqualWeights(req.Snapshot.Len())
	return &optimization.Result{
		Weights: w,
		Performance: domain.Performance{
			ExpectedReturn: w.Return(req.Snapshot.ExpectedReturns),
			Volatility:     w.Volatility(req.Snapshot.Covariance()),
		},
		Mode: req.Mode(),
	}, nil
}

type failingOptimizer struct{}

func (failingOptimizer) Optimize(optimization.Request) (*optimization.Result, error) {
	return nil, domain.ErrNonConvergence
}

type countingRecorder struct {
	outcomes []string
}

func (r *countingRecorder) ObserveRebalance(_ int, outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

func linearHistory(t *testing.T) *marketdata.PriceHistory {
	t.Helper()
	prices := make([][]float64, 10)
	for i := range prices {
		prices[i] = []float64{100 + 2*float64(i), 50 + 2*float64(i)}
	}
	h, err := marketdata.NewPriceHistory([]string{"Asset1", "Asset2"}, nil, prices)
	require.NoError(t, err)
	return h
}

// Gentle oscillation, no daily move above 2%.
func wavyHistory(t *testing.T, days int) *marketdata.PriceHistory {
	t.Helper()
	prices := make([][]float64, days)
	for i := range prices {
		x := float64(i)
		prices[i] = []float64{
			100 * (1 + 0.01*math.Sin(x/3)),
			80 * (1 + 0.005*float64(i%7)/7 + 0.0002*x),
		}
	}
	h, err := marketdata.NewPriceHistory([]string{"A", "B"}, nil, prices)
	require.NoError(t, err)
	return h
}

func TestService_Run_ShortHistoryYieldsSingleEvent(t *testing.T) {
	svc := NewService(optimization.NewMVOptimizer(zerolog.Nop()), zerolog.Nop())

	events, err := svc.Run(context.Background(), linearHistory(t), Options{
		RiskTolerance: 0.5,
		Frequency:     domain.Quarterly,
		Threshold:     0.03,
	}, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, 0, ev.Period)
	assert.Equal(t, 10, ev.WindowEnd)
	assert.Equal(t, 63, ev.Boundary)
	assert.NotEmpty(t, ev.RunID)
	assert.InDelta(t, 1.0, ev.Weights.Sum(), 1e-6)
	assert.Greater(t, ev.Weights[1], ev.Weights[0], "Asset2 grows faster in relative terms")

	// Asset2 jumps 4% on day 1.
	require.NotNil(t, ev.DecisionPoint)
	assert.Equal(t, 1, ev.DecisionPoint.Step)
	assert.True(t, ev.Adjusted)
}

func TestService_Run_WalksForwardByFrequency(t *testing.T) {
	opt := &equalWeightOptimizer{}
	svc := NewService(opt, zerolog.Nop())

	var emitted []domain.RebalanceEvent
	events, err := svc.Run(context.Background(), wavyHistory(t, 130), Options{
		RiskTolerance: 0.5,
		Frequency:     domain.Quarterly,
		RunID:         "run-1",
	}, func(ev domain.RebalanceEvent) error {
		emitted = append(emitted, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, events, emitted)
	assert.Equal(t, 3, opt.calls)

	wantEnds := []int{63, 126, 130}
	wantBoundaries := []int{63, 126, 189}
	for i, ev := range events {
		assert.Equal(t, i, ev.Period)
		assert.Equal(t, wantEnds[i], ev.WindowEnd)
		assert.Equal(t, wantBoundaries[i], ev.Boundary)
		assert.Equal(t, "run-1", ev.RunID)
		assert.False(t, ev.Adjusted)
		assert.Nil(t, ev.DecisionPoint)
		assert.InDelta(t, 0.5, ev.Weights[0], 1e-12)
	}
}

func TestService_Run_Yearly(t *testing.T) {
	svc := NewService(&equalWeightOptimizer{}, zerolog.Nop())

	events, err := svc.Run(context.Background(), wavyHistory(t, 300), Options{
		RiskTolerance: 1,
		Frequency:     domain.Yearly,
	}, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 252, events[0].WindowEnd)
	assert.Equal(t, 300, events[1].WindowEnd)
	assert.Equal(t, events[0].RunID, events[1].RunID)
}

func TestService_Run_InvalidOptions(t *testing.T) {
	svc := NewService(&equalWeightOptimizer{}, zerolog.Nop())
	h := linearHistory(t)

	tests := []struct {
		name string
		opts Options
	}{
		{"unknown frequency", Options{RiskTolerance: 0.5, Frequency: domain.Frequency(5)}},
		{"zero risk tolerance", Options{RiskTolerance: 0, Frequency: domain.Quarterly}},
		{"risk tolerance above one", Options{RiskTolerance: 1.5, Frequency: domain.Quarterly}},
		{"negative threshold", Options{RiskTolerance: 0.5, Frequency: domain.Quarterly, Threshold: -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Run(context.Background(), h, tt.opts, nil)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	_, err := svc.Run(context.Background(), nil, Options{RiskTolerance: 0.5, Frequency: domain.Quarterly}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestService_Run_OptimizerFailureAborts(t *testing.T) {
	rec := &countingRecorder{}
	svc := NewService(failingOptimizer{}, zerolog.Nop())
	svc.SetRecorder(rec)

	events, err := svc.Run(context.Background(), wavyHistory(t, 130), Options{
		RiskTolerance: 0.5,
		Frequency:     domain.Quarterly,
	}, nil)
	assert.ErrorIs(t, err, domain.ErrNonConvergence)
	assert.Empty(t, events)
	assert.Equal(t, []string{"error"}, rec.outcomes)
}

func TestService_Run_TooShortWindow(t *testing.T) {
	h, err := marketdata.NewPriceHistory([]string{"A"}, nil, [][]float64{{100}, {101}})
	require.NoError(t, err)

	svc := NewService(&equalWeightOptimizer{}, zerolog.Nop())
	_, err = svc.Run(context.Background(), h, Options{RiskTolerance: 0.5, Frequency: domain.Quarterly}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestService_Run_EmitErrorStopsRun(t *testing.T) {
	rec := &countingRecorder{}
	svc := NewService(&equalWeightOptimizer{}, zerolog.Nop())
	svc.SetRecorder(rec)

	stop := errors.New("client gone")
	events, err := svc.Run(context.Background(), wavyHistory(t, 130), Options{
		RiskTolerance: 0.5,
		Frequency:     domain.Quarterly,
	}, func(domain.RebalanceEvent) error { return stop })
	assert.ErrorIs(t, err, stop)
	assert.Len(t, events, 1)
	assert.Equal(t, []string{"aborted"}, rec.outcomes)
}

func TestService_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(&equalWeightOptimizer{}, zerolog.Nop())
	events, err := svc.Run(ctx, wavyHistory(t, 130), Options{
		RiskTolerance: 0.5,
		Frequency:     domain.Quarterly,
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, events)
}

func TestService_Run_PublishesProgress(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	var seen []events.EventType
	record := func(e *events.Event) { seen = append(seen, e.Type) }
	bus.Subscribe(events.RebalanceStarted, record)
	bus.Subscribe(events.RebalancePeriod, record)
	bus.Subscribe(events.RebalanceCompleted, record)

	svc := NewService(&equalWeightOptimizer{}, zerolog.Nop())
	svc.SetPublisher(bus)

	_, err := svc.Run(context.Background(), wavyHistory(t, 130), Options{
		RiskTolerance: 0.5,
		Frequency:     domain.Quarterly,
		Source:        "test",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []events.EventType{
		events.RebalanceStarted,
		events.RebalancePeriod,
		events.RebalancePeriod,
		events.RebalancePeriod,
		events.RebalanceCompleted,
	}, seen)
}

func TestAdjust(t *testing.T) {
	tests := []struct {
		name      string
		weights   domain.Weights
		prev, cur []float64
		want      []float64
		adjusted  bool
	}{
		{
			name:     "rise trims the winner",
			weights:  domain.Weights{0.5, 0.5},
			prev:     []float64{100, 100},
			cur:      []float64{110, 100},
			want:     []float64{0.485 / 0.985, 0.5 / 0.985},
			adjusted: true,
		},
		{
			name:     "fall adds to the loser",
			weights:  domain.Weights{0.5, 0.5},
			prev:     []float64{100, 100},
			cur:      []float64{100, 90},
			want:     []float64{0.5 / 1.015, 0.515 / 1.015},
			adjusted: true,
		},
		{
			name:     "small moves leave weights alone",
			weights:  domain.Weights{0.3, 0.7},
			prev:     []float64{100, 100},
			cur:      []float64{102, 99},
			want:     []float64{0.3, 0.7},
			adjusted: false,
		},
		{
			name:     "single asset stays fully invested",
			weights:  domain.Weights{1},
			prev:     []float64{100},
			cur:      []float64{120},
			want:     []float64{1},
			adjusted: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, adjusted := Adjust(tt.weights, tt.prev, tt.cur, 0.03)
			assert.Equal(t, tt.adjusted, adjusted)
			assert.InDeltaSlice(t, tt.want, []float64(got), 1e-12)
			assert.InDelta(t, 1.0, got.Sum(), 1e-12)
		})
	}
}

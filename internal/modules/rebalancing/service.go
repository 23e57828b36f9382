// Package rebalancing walks a price history forward one period at a time,
// re-optimizing on every expanding window and nudging weights after large
// moves.
package rebalancing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/events"
	"github.com/aristath/allocator/internal/marketdata"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/stopping"
)

// DefaultThreshold is the per-step move that triggers a weight adjustment.
const DefaultThreshold = 0.03

// Recorder receives run outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveRebalance(events int, outcome string)
}

// Publisher fans run progress out to other subscribers. *events.Bus
// satisfies it.
type Publisher interface {
	Publish(data events.EventData)
}

// EmitFunc receives every event as soon as its window is processed.
// Returning an error aborts the run.
type EmitFunc func(domain.RebalanceEvent) error

// Options configures a run. A zero Threshold means DefaultThreshold and an
// empty RunID is replaced by a fresh UUID. Source labels who started the run.
type Options struct {
	RiskTolerance float64          `json:"risk_tolerance"`
	Frequency     domain.Frequency `json:"frequency"`
	Threshold     float64          `json:"threshold"`
	RunID         string           `json:"run_id,omitempty"`
	Source        string           `json:"source,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	return o
}

func (o Options) validate() error {
	if o.Frequency != domain.Quarterly && o.Frequency != domain.Yearly {
		return domain.InvalidInputf("unsupported rebalance frequency %d", o.Frequency)
	}
	if !(o.RiskTolerance > 0 && o.RiskTolerance <= 1) {
		return domain.InvalidInputf("risk tolerance must be in (0, 1], got %v", o.RiskTolerance)
	}
	if o.Threshold < 0 {
		return domain.InvalidInputf("threshold must be non-negative")
	}
	return nil
}

// Service runs the walk-forward rebalance loop.
type Service struct {
	optimizer optimization.Optimizer
	recorder  Recorder
	publisher Publisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewService creates a new rebalancing service
func NewService(optimizer optimization.Optimizer, log zerolog.Logger) *Service {
	return &Service{
		optimizer: optimizer,
		log:       log.With().Str("service", "rebalancing").Logger(),
		now:       time.Now,
	}
}

// SetRecorder attaches a metrics recorder.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// SetPublisher attaches an event publisher.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// Run processes windows [0, min(start+freq, len)) for start = 0, freq, 2·freq, …
// while start < len. A history shorter than one period therefore yields one
// event covering all of it. Each window re-derives its statistics from
// scratch, optimizes in risk tolerance mode and applies the stopping-rule
// adjustment. The first failing window aborts the run.
func (s *Service) Run(ctx context.Context, history *marketdata.PriceHistory, opts Options, emit EmitFunc) ([]domain.RebalanceEvent, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if history == nil || history.Len() == 0 {
		return nil, domain.InvalidInputf("empty price history")
	}

	s.publish(&events.RebalanceStartedData{
		RunID:     opts.RunID,
		Source:    opts.Source,
		Days:      history.Len(),
		Frequency: opts.Frequency.String(),
	})
	evs, err := s.run(ctx, history, opts, emit)
	done := &events.RebalanceCompletedData{RunID: opts.RunID, Events: len(evs)}
	if err != nil {
		done.Error = err.Error()
	}
	s.publish(done)
	return evs, err
}

func (s *Service) run(ctx context.Context, history *marketdata.PriceHistory, opts Options, emit EmitFunc) ([]domain.RebalanceEvent, error) {
	log := s.log.With().Str("run_id", opts.RunID).Logger()
	log.Info().
		Int("days", history.Len()).
		Str("frequency", opts.Frequency.String()).
		Float64("threshold", opts.Threshold).
		Msg("Starting rebalance run")

	freq := opts.Frequency.Days()
	var evs []domain.RebalanceEvent
	for start, period := 0, 0; start < history.Len(); start, period = start+freq, period+1 {
		if err := ctx.Err(); err != nil {
			s.observe(len(evs), "cancelled")
			return evs, err
		}

		windowEnd := start + freq
		if windowEnd > history.Len() {
			windowEnd = history.Len()
		}

		event, err := s.window(history.Window(windowEnd), opts)
		if err != nil {
			s.observe(len(evs), "error")
			return evs, fmt.Errorf("rebalance window %d (end %d): %w", period, windowEnd, err)
		}
		event.RunID = opts.RunID
		event.Period = period
		event.Boundary = start + freq
		event.WindowEnd = windowEnd

		log.Debug().
			Int("period", period).
			Int("window_end", windowEnd).
			Bool("adjusted", event.Adjusted).
			Float64("return_pct", event.ReturnPct()).
			Float64("volatility_pct", event.VolatilityPct()).
			Msg("Rebalanced")

		evs = append(evs, event)
		s.publish(&events.RebalancePeriodData{RebalanceEvent: event})
		if emit != nil {
			if err := emit(event); err != nil {
				s.observe(len(evs), "aborted")
				return evs, fmt.Errorf("failed to emit rebalance event: %w", err)
			}
		}
	}

	s.observe(len(evs), "ok")
	log.Info().Int("events", len(evs)).Msg("Rebalance run complete")
	return evs, nil
}

func (s *Service) window(window *marketdata.PriceHistory, opts Options) (domain.RebalanceEvent, error) {
	snap, err := window.Snapshot()
	if err != nil {
		return domain.RebalanceEvent{}, err
	}

	res, err := s.optimizer.Optimize(optimization.Request{
		Snapshot:      snap,
		RiskTolerance: opts.RiskTolerance,
	})
	if err != nil {
		return domain.RebalanceEvent{}, err
	}

	event := domain.RebalanceEvent{
		Weights:        res.Weights.Clone(),
		ExpectedReturn: res.ExpectedReturn,
		Volatility:     res.Volatility,
		At:             s.now(),
	}

	if dp, ok := stopping.First(stopping.Path(window.Prices), opts.Threshold); ok {
		event.DecisionPoint = &dp
		event.Weights, event.Adjusted = Adjust(event.Weights, window.Prices[dp.Step-1], dp.Prices, opts.Threshold)
		event.ExpectedReturn = event.Weights.Return(snap.ExpectedReturns)
		event.Volatility = event.Weights.Volatility(snap.Covariance())
	}
	return event, nil
}

func (s *Service) publish(data events.EventData) {
	if s.publisher != nil {
		s.publisher.Publish(data)
	}
}

func (s *Service) observe(n int, outcome string) {
	if s.recorder != nil {
		s.recorder.ObserveRebalance(n, outcome)
	}
}

// Adjust scales the weight of every asset whose price rose by more than
// threshold by (1 − threshold) and of every asset that fell by more than
// threshold by (1 + threshold), then rescales the weights to sum to 1.
func Adjust(weights domain.Weights, prev, cur []float64, threshold float64) (domain.Weights, bool) {
	out := weights.Clone()
	adjusted := false
	for j := range out {
		if prev[j] <= 0 {
			continue
		}
		change := (cur[j] - prev[j]) / prev[j]
		switch {
		case change > threshold:
			out[j] *= 1 - threshold
			adjusted = true
		case change < -threshold:
			out[j] *= 1 + threshold
			adjusted = true
		}
	}
	if sum := out.Sum(); adjusted && sum > 0 {
		floats.Scale(1/sum, out)
	}
	return out, adjusted
}

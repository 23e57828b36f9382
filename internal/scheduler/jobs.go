package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/events"
	"github.com/aristath/allocator/internal/marketdata"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/rebalancing"
	"github.com/aristath/allocator/internal/utils"
)

// JobTimeout bounds a single job run.
const JobTimeout = 10 * time.Minute

// HistoryLoader produces the price history a job works on.
type HistoryLoader func(ctx context.Context) (*marketdata.PriceHistory, error)

// FileHistory loads a CSV price history from path on every call, restricted
// to assets when that list is non-empty.
func FileHistory(path string, assets []string) HistoryLoader {
	return func(ctx context.Context) (*marketdata.PriceHistory, error) {
		if path == "" {
			return nil, fmt.Errorf("no price history file configured")
		}
		h, err := marketdata.LoadCSVFile(ctx, path)
		if err != nil {
			return nil, err
		}
		if len(assets) == 0 {
			return h, nil
		}
		return h.Select(assets)
	}
}

// Rebalancer runs a walk-forward rebalance. *rebalancing.Service satisfies it.
type Rebalancer interface {
	Run(ctx context.Context, history *marketdata.PriceHistory, opts rebalancing.Options, emit rebalancing.EmitFunc) ([]domain.RebalanceEvent, error)
}

// Sweeper computes an efficient frontier. *optimization.FrontierSweeper
// satisfies it.
type Sweeper interface {
	Sweep(ctx context.Context, snap domain.Snapshot, riskTolerance float64) (domain.FrontierCurve, error)
}

// Publisher broadcasts job results. *events.Bus satisfies it.
type Publisher interface {
	Publish(data events.EventData)
}

// RebalanceJob replays the walk-forward rebalance over the configured price
// history. Progress reaches subscribers through the rebalancing service's
// publisher.
type RebalanceJob struct {
	rebalancer Rebalancer
	load       HistoryLoader
	opts       rebalancing.Options
	log        zerolog.Logger

	mu   sync.Mutex
	last []domain.RebalanceEvent
}

// NewRebalanceJob creates a new RebalanceJob
func NewRebalanceJob(rebalancer Rebalancer, load HistoryLoader, opts rebalancing.Options, log zerolog.Logger) *RebalanceJob {
	opts.Source = "scheduler"
	return &RebalanceJob{
		rebalancer: rebalancer,
		load:       load,
		opts:       opts,
		log:        log.With().Str("job", "rebalance").Logger(),
	}
}

// Name returns the job name
func (j *RebalanceJob) Name() string {
	return "rebalance"
}

// Run executes the rebalance job
func (j *RebalanceJob) Run() error {
	defer utils.OperationTimer(j.Name(), j.log)()

	ctx, cancel := context.WithTimeout(context.Background(), JobTimeout)
	defer cancel()

	history, err := j.load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load price history: %w", err)
	}

	// Each run gets its own ID.
	opts := j.opts
	opts.RunID = ""
	evs, err := j.rebalancer.Run(ctx, history, opts, nil)
	if err != nil {
		return fmt.Errorf("rebalance failed: %w", err)
	}
	j.mu.Lock()
	j.last = evs
	j.mu.Unlock()

	j.log.Info().
		Int("days", history.Len()).
		Int("events", len(evs)).
		Msg("Scheduled rebalance complete")
	return nil
}

// LastEvents returns the events of the most recent successful run.
func (j *RebalanceJob) LastEvents() []domain.RebalanceEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

// FrontierRefreshJob recomputes the efficient frontier for the configured
// history so API requests for the same statistics are served from cache.
type FrontierRefreshJob struct {
	sweeper       Sweeper
	load          HistoryLoader
	riskTolerance float64
	publisher     Publisher
	log           zerolog.Logger
}

// NewFrontierRefreshJob creates a new FrontierRefreshJob. riskTolerance is
// in (0, 1].
func NewFrontierRefreshJob(sweeper Sweeper, load HistoryLoader, riskTolerance float64, log zerolog.Logger) *FrontierRefreshJob {
	return &FrontierRefreshJob{
		sweeper:       sweeper,
		load:          load,
		riskTolerance: riskTolerance,
		log:           log.With().Str("job", "frontier_refresh").Logger(),
	}
}

// SetPublisher attaches an event publisher.
func (j *FrontierRefreshJob) SetPublisher(p Publisher) {
	j.publisher = p
}

// Name returns the job name
func (j *FrontierRefreshJob) Name() string {
	return "frontier_refresh"
}

// Run executes the frontier refresh job
func (j *FrontierRefreshJob) Run() error {
	defer utils.OperationTimer(j.Name(), j.log)()

	ctx, cancel := context.WithTimeout(context.Background(), JobTimeout)
	defer cancel()

	history, err := j.load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load price history: %w", err)
	}
	snap, err := history.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to derive statistics: %w", err)
	}
	curve, err := j.sweeper.Sweep(ctx, snap, j.riskTolerance)
	if err != nil {
		return fmt.Errorf("frontier sweep failed: %w", err)
	}

	if j.publisher != nil {
		j.publisher.Publish(&events.FrontierRefreshedData{
			Key:       optimization.SnapshotKey(snap),
			Points:    len(curve.Points),
			Converged: curve.Converged(),
		})
	}
	j.log.Info().
		Int("points", len(curve.Points)).
		Int("converged", curve.Converged()).
		Msg("Frontier refreshed")
	return nil
}

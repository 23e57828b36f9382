// Package di wires the allocator's services, handlers and jobs.
package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/cache"
	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/events"
	"github.com/aristath/allocator/internal/metrics"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/rebalancing"
	"github.com/aristath/allocator/internal/modules/report"
	"github.com/aristath/allocator/internal/modules/simulation"
	"github.com/aristath/allocator/internal/scheduler"
)

// Container holds every long-lived dependency of the allocator.
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	// Infrastructure
	Metrics   *metrics.Metrics
	Cache     *cache.Store
	EventBus  *events.Bus
	Scheduler *scheduler.Scheduler

	// Services
	Optimizer  *optimization.MVOptimizer
	Sweeper    *optimization.FrontierSweeper
	Simulator  *simulation.Simulator
	Rebalancer *rebalancing.Service
	Reports    *report.Service
}

// JobInstances holds the scheduled jobs. A nil job is not configured:
// either no price history file is set or its schedule is empty.
type JobInstances struct {
	Rebalance       *scheduler.RebalanceJob
	FrontierRefresh *scheduler.FrontierRefreshJob
}

// All returns the configured jobs.
func (j *JobInstances) All() []scheduler.Job {
	var out []scheduler.Job
	if j.Rebalance != nil {
		out = append(out, j.Rebalance)
	}
	if j.FrontierRefresh != nil {
		out = append(out, j.FrontierRefresh)
	}
	return out
}

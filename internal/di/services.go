package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/cache"
	"github.com/aristath/allocator/internal/events"
	"github.com/aristath/allocator/internal/metrics"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/rebalancing"
	"github.com/aristath/allocator/internal/modules/report"
	"github.com/aristath/allocator/internal/modules/simulation"
	"github.com/aristath/allocator/internal/scheduler"
)

// InitializeServices creates infrastructure and services and connects
// recorders, caches and publishers.
func InitializeServices(container *Container, log zerolog.Logger) error {
	if container == nil || container.Config == nil {
		return fmt.Errorf("container and config are required")
	}
	cfg := container.Config

	m, err := metrics.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	container.Metrics = m

	store, err := cache.New(cfg.CacheSize, log)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	store.SetRecorder(m)
	container.Cache = store

	container.EventBus = events.NewBus(log)

	container.Optimizer = optimization.NewMVOptimizer(log)
	container.Optimizer.SetRecorder(m)

	container.Sweeper = optimization.NewFrontierSweeper(container.Optimizer, log)
	container.Sweeper.SetCache(store)

	container.Simulator = simulation.NewSimulator(log)
	container.Simulator.SetRecorder(m)

	container.Rebalancer = rebalancing.NewService(container.Optimizer, log)
	container.Rebalancer.SetRecorder(m)
	container.Rebalancer.SetPublisher(container.EventBus)

	container.Reports = report.NewService(container.Optimizer, container.Sweeper, container.Simulator, log)
	container.Reports.SetCache(store)

	container.Scheduler = scheduler.New(log)
	container.Scheduler.SetRecorder(m)

	log.Debug().Msg("Services initialized")
	return nil
}

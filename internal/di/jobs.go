package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/scheduler"
)

// RegisterJobs creates the scheduled jobs and adds them to the scheduler.
// Jobs need a price history file. Without one nothing is registered.
func RegisterJobs(container *Container, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Scheduler == nil {
		return nil, fmt.Errorf("container is not initialized")
	}
	cfg := container.Config
	instances := &JobInstances{}

	if cfg.PriceHistoryFile == "" {
		log.Info().Msg("No PRICE_HISTORY_FILE configured, scheduled jobs disabled")
		return instances, nil
	}
	load := scheduler.FileHistory(cfg.PriceHistoryFile, cfg.Assets)

	if cfg.RebalanceSchedule != "" {
		job := scheduler.NewRebalanceJob(container.Rebalancer, load, cfg.RebalanceOptions(), log)
		if err := container.Scheduler.AddJob(cfg.RebalanceSchedule, job); err != nil {
			return nil, fmt.Errorf("failed to register rebalance job: %w", err)
		}
		instances.Rebalance = job
	}

	if cfg.FrontierRefreshSchedule != "" {
		job := scheduler.NewFrontierRefreshJob(container.Sweeper, load, cfg.RiskToleranceValue(), log)
		job.SetPublisher(container.EventBus)
		if err := container.Scheduler.AddJob(cfg.FrontierRefreshSchedule, job); err != nil {
			return nil, fmt.Errorf("failed to register frontier refresh job: %w", err)
		}
		instances.FrontierRefresh = job
	}

	return instances, nil
}

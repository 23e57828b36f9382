package di

import (
	optimizationhandlers "github.com/aristath/allocator/internal/modules/optimization/handlers"
	optionshandlers "github.com/aristath/allocator/internal/modules/options/handlers"
	rebalancinghandlers "github.com/aristath/allocator/internal/modules/rebalancing/handlers"
	reporthandlers "github.com/aristath/allocator/internal/modules/report/handlers"
	simulationhandlers "github.com/aristath/allocator/internal/modules/simulation/handlers"
	stoppinghandlers "github.com/aristath/allocator/internal/modules/stopping/handlers"
	"github.com/aristath/allocator/internal/server"
)

// NewServer builds the module handlers and the HTTP server around them.
func NewServer(container *Container, jobs *JobInstances) *server.Server {
	cfg := container.Config
	log := container.Log

	rebalancing := rebalancinghandlers.NewHandler(container.Rebalancer, container.EventBus, log)
	rebalancing.SetOriginPatterns(cfg.AllowedOrigins)

	system := server.NewSystemHandlers(container.Cache, container.Scheduler, log)
	if jobs != nil {
		for _, job := range jobs.All() {
			system.AddJob(job)
		}
	}

	return server.New(server.Config{
		Log:            log,
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        container.Metrics,
		Bus:            container.EventBus,
		System:         system,
		Routes: []server.RouteRegistrar{
			optimizationhandlers.NewHandler(container.Optimizer, container.Sweeper, log),
			simulationhandlers.NewHandler(container.Simulator, log),
			stoppinghandlers.NewHandler(log),
			rebalancing,
			reporthandlers.NewHandler(container.Reports, cfg.ReportDefaults(), log),
			optionshandlers.NewHandler(log),
		},
		Streams: []server.StreamRegistrar{rebalancing},
	})
}

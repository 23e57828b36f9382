package optimization

import (
	"time"

	"github.com/aristath/allocator/internal/domain"
)

// Optimizer is the contract the frontier sweep and the rebalance scheduler
// depend on. *MVOptimizer satisfies it.
type Optimizer interface {
	Optimize(req Request) (*Result, error)
}

// Recorder receives solver outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveOptimization(mode, outcome string, elapsed time.Duration)
}

// FrontierCache stores finished sweeps keyed by snapshot hash.
type FrontierCache interface {
	GetFrontier(key string) (domain.FrontierCurve, bool)
	PutFrontier(key string, curve domain.FrontierCurve)
}

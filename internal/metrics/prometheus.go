package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "allocator"

// Prometheus groups the collectors the allocator exports.
type Prometheus struct {
	Optimizations   *prometheus.CounterVec
	OptimizeSeconds *prometheus.HistogramVec
	Trajectories    prometheus.Counter
	SimulateSeconds prometheus.Histogram
	RebalanceRuns   *prometheus.CounterVec
	RebalanceEvents prometheus.Counter
	CacheLookups    *prometheus.CounterVec
	JobRuns         *prometheus.CounterVec
}

// NewPrometheusMetrics builds unregistered collectors.
func NewPrometheusMetrics() Prometheus {
	return Prometheus{
		Optimizations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optimizations_total",
				Help:      "Optimizer calls by mode and outcome.",
			}, []string{"mode", "outcome"}),
		OptimizeSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "optimization_duration_seconds",
				Help:      "Optimizer wall time.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			}, []string{"mode"}),
		Trajectories: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "simulated_trajectories_total",
				Help:      "Monte Carlo trajectories generated.",
			}),
		SimulateSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "simulation_duration_seconds",
				Help:      "Simulation wall time.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			}),
		RebalanceRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rebalance_runs_total",
				Help:      "Walk-forward rebalance runs by outcome.",
			}, []string{"outcome"}),
		RebalanceEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rebalance_events_total",
				Help:      "Rebalance events emitted.",
			}),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Result cache lookups by cache and result.",
			}, []string{"cache", "result"}),
		JobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Scheduled job runs by job and outcome.",
			}, []string{"job", "outcome"}),
	}
}

func (p Prometheus) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		p.Optimizations,
		p.OptimizeSeconds,
		p.Trajectories,
		p.SimulateSeconds,
		p.RebalanceRuns,
		p.RebalanceEvents,
		p.CacheLookups,
		p.JobRuns,
	}
}

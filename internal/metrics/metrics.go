// Package metrics records optimizer, simulator, rebalance, cache and job
// activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	prometheus Prometheus
	gatherer   prometheus.Gatherer
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusMetrics()
	for _, c := range p.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	if err := reg.Register(prometheus.NewGoCollector()); err != nil {
		return nil, err
	}
	return &Metrics{prometheus: p, gatherer: reg}, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveOptimization records one optimizer call.
func (m *Metrics) ObserveOptimization(mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.prometheus.Optimizations.WithLabelValues(mode, outcome).Inc()
	m.prometheus.OptimizeSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ObserveSimulation records one Monte Carlo run.
func (m *Metrics) ObserveSimulation(trajectories int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.prometheus.Trajectories.Add(float64(trajectories))
	m.prometheus.SimulateSeconds.Observe(elapsed.Seconds())
}

// ObserveRebalance records one walk-forward run.
func (m *Metrics) ObserveRebalance(events int, outcome string) {
	if m == nil {
		return
	}
	m.prometheus.RebalanceRuns.WithLabelValues(outcome).Inc()
	m.prometheus.RebalanceEvents.Add(float64(events))
}

// ObserveCacheLookup records a cache hit or miss.
func (m *Metrics) ObserveCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.prometheus.CacheLookups.WithLabelValues(cache, result).Inc()
}

// ObserveJob records one scheduled job run.
func (m *Metrics) ObserveJob(name string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.prometheus.JobRuns.WithLabelValues(name, outcome).Inc()
}

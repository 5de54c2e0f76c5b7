package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// PoolStats reports the occupancy of a worker pool.
type PoolStats interface {
	Name() string
	Active() int
	Size() int
}

// NewMetricsRegistry returns a Prometheus registry with the Go runtime and
// process collectors plus occupancy gauges for each pool.
func NewMetricsRegistry(pools ...PoolStats) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, p := range pools {
		labels := prometheus.Labels{"pool": p.Name()}

		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name:        "ambient_pool_active_tasks",
				Help:        "Tasks spawned on the pool that have not finished.",
				ConstLabels: labels,
			}, func() float64 { return float64(p.Active()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name:        "ambient_pool_workers",
				Help:        "Worker goroutines in the pool.",
				ConstLabels: labels,
			}, func() float64 { return float64(p.Size()) }),
		)
	}

	return reg
}

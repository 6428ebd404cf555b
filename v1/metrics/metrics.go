package metrics

import "github.com/prometheus/client_golang/prometheus"

// PoolGauge reports the number of open worker pools.
var PoolGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "conc_pools",
	Help: "Current number of open worker pools",
})

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers shared toolkit metrics on the provided
// registry. Per-instance metrics are registered through each type's
// WithMetrics option instead.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(PoolGauge)
}

package metrics

import (
	"taskdash/internal/pkg/scheduler"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Module exports the metrics module for FX. It also satisfies the
// scheduler's MetricsCollector dependency.
var Module = fx.Module("metrics",
	fx.Provide(
		NewRegistry,
		func(reg *prometheus.Registry) (*Collector, error) {
			return NewCollector(reg)
		},
		func(c *Collector) scheduler.MetricsCollector { return c },
	),
)

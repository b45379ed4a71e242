// pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Non-fatal degradations are absorbed into empty report slots, so these
// counters (plus logs and envelope warnings) are the only way they surface.
var (
	Runs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudscope_runs_total",
		Help: "Completed aggregation runs, including runs with partial data.",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cloudscope_run_duration_seconds",
		Help:    "Wall time of a full aggregation run.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	DiscoveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudscope_discovery_failures_total",
		Help: "Tenant discovery failures degraded to an empty tenant set.",
	})

	CollectorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudscope_collector_failures_total",
		Help: "Collector failures degraded to an empty report slot.",
	}, []string{"collector"})

	TenantsDiscovered = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cloudscope_tenants_discovered",
		Help:    "Tenants discovered per run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

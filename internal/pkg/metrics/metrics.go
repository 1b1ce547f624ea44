// Package metrics defines the process wide Prometheus series. Domain
// packages register their own series under the same Namespace.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every series the service exports.
const Namespace = "slatracker"

var (
	// HTTPRequestDuration is labelled by route pattern, not raw path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request latency by method, route and status code.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15, 60},
	}, []string{"method", "route", "status_code"})

	DBPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "db",
		Name:      "pool_connections",
		Help:      "pgx pool connections by state.",
	}, []string{"state"})

	SLAsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "sla",
		Name:      "records",
		Help:      "Stored SLA records by status.",
	}, []string{"status"})
)

package sla

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/metrics"
)

var (
	scannerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "scanner",
			Name:      "runs_total",
			Help:      "Scan cycles by result",
		},
		[]string{"result"},
	)

	scannerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "scanner",
			Name:      "duration_seconds",
			Help:      "Time to complete one scan cycle",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "sla",
			Name:      "transitions_total",
			Help:      "SLA transitions written by source and kind",
		},
		[]string{"source", "kind"},
	)

	conflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "sla",
			Name:      "version_conflicts_total",
			Help:      "Optimistic concurrency conflicts by source",
		},
		[]string{"source"},
	)

	dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "sla",
			Name:      "notice_dispatch_total",
			Help:      "Notices handed to the notification gateway by kind and result",
		},
		[]string{"kind", "result"},
	)
)

func recordScan(result string, duration time.Duration) {
	scannerRuns.WithLabelValues(result).Inc()
	if duration > 0 {
		scannerDuration.Observe(duration.Seconds())
	}
}

func recordTransition(source, kind string) {
	transitions.WithLabelValues(source, kind).Inc()
}

func recordConflict(source string) {
	conflicts.WithLabelValues(source).Inc()
}

func recordDispatch(kind, result string) {
	dispatches.WithLabelValues(kind, result).Inc()
}

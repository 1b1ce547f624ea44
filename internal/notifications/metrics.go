package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/metrics"
)

// sendOutcome is how one delivery attempt settled its queue item.
type sendOutcome string

const (
	outcomeSent   sendOutcome = "success"
	outcomeRetry  sendOutcome = "retry"
	outcomeFailed sendOutcome = "failed"
)

var (
	queueSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metrics.Namespace,
		Subsystem: "notifications",
		Name:      "queue_size",
		Help:      "Queue items by status.",
	}, []string{"status"})

	queuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "notifications",
		Name:      "queued_total",
		Help:      "Queue items created, by notice kind.",
	}, []string{"kind"})

	sentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "notifications",
		Name:      "sent_total",
		Help:      "Delivery attempts by channel type and outcome.",
	}, []string{"channel_type", "status"})

	sendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metrics.Namespace,
		Subsystem: "notifications",
		Name:      "send_duration_seconds",
		Help:      "Duration of successful deliveries.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2.5, 8),
	}, []string{"channel_type"})

	fetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "notifications",
		Name:      "queue_fetched_total",
		Help:      "Queue items claimed by pollers.",
	})
)

func recordQueued(kind domain.NoticeKind, count int) {
	queuedTotal.WithLabelValues(string(kind)).Add(float64(count))
}

func recordFetched(count int) {
	fetchedTotal.Add(float64(count))
}

func recordSend(channel domain.ChannelType, outcome sendOutcome, took time.Duration) {
	sentTotal.WithLabelValues(string(channel), string(outcome)).Inc()
	if outcome == outcomeSent {
		sendDuration.WithLabelValues(string(channel)).Observe(took.Seconds())
	}
}

// RecordQueueStats publishes queue depth per status.
func RecordQueueStats(stats *QueueStats) {
	for status, n := range stats.byStatus() {
		queueSize.WithLabelValues(string(status)).Set(float64(n))
	}
}

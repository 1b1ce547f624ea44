package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
)

var slaStatuses = []domain.SLAStatus{
	domain.SLAStatusActive,
	domain.SLAStatusPaused,
	domain.SLAStatusMet,
	domain.SLAStatusBreached,
}

// RecordPoolStats publishes a pgxpool snapshot.
func RecordPoolStats(stat *pgxpool.Stat) {
	DBPoolConnections.WithLabelValues("in_use").Set(float64(stat.AcquiredConns()))
	DBPoolConnections.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	DBPoolConnections.WithLabelValues("constructing").Set(float64(stat.ConstructingConns()))
	DBPoolConnections.WithLabelValues("max").Set(float64(stat.MaxConns()))
}

// RecordSLAStatusCounts updates SLA record gauges. Statuses missing from
// counts are reported as zero.
func RecordSLAStatusCounts(counts map[domain.SLAStatus]int) {
	for _, status := range slaStatuses {
		SLAsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

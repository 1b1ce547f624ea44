package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
)

func TestRecordSLAStatusCounts(t *testing.T) {
	RecordSLAStatusCounts(map[domain.SLAStatus]int{
		domain.SLAStatusActive:   7,
		domain.SLAStatusBreached: 2,
	})

	assert.InDelta(t, 7, testutil.ToFloat64(SLAsByStatus.WithLabelValues("active")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(SLAsByStatus.WithLabelValues("breached")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(SLAsByStatus.WithLabelValues("paused")), 0)
}

package notifications

import (
	"time"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
)

// NotificationPayload contains data for rendering a notice.
type NotificationPayload struct {
	Kind              domain.NoticeKind   `json:"kind"`
	SLAID             string              `json:"sla_id"`
	IncidentID        string              `json:"incident_id"`
	Priority          domain.Priority     `json:"priority"`
	Deadline          domain.DeadlineKind `json:"deadline"`
	EffectiveDeadline time.Time           `json:"effective_deadline"`
	Remaining         time.Duration       `json:"remaining"`
	DetectedAt        time.Time           `json:"detected_at"`
	SLAURL            string              `json:"sla_url,omitempty"`
}

// NewPayload builds the payload for a notice. baseURL may be empty.
func NewPayload(notice domain.Notice, baseURL string) NotificationPayload {
	p := NotificationPayload{
		Kind:              notice.Kind,
		SLAID:             notice.SLAID,
		IncidentID:        notice.IncidentID,
		Priority:          notice.Priority,
		Deadline:          notice.Deadline,
		EffectiveDeadline: notice.EffectiveDeadline,
		Remaining:         notice.Remaining,
		DetectedAt:        notice.DetectedAt,
	}
	if baseURL != "" {
		p.SLAURL = baseURL + "/api/v1/slas/" + notice.SLAID
	}
	return p
}

// Overdue returns how long ago the deadline passed, zero if it has not.
func (p NotificationPayload) Overdue() time.Duration {
	if p.Remaining >= 0 {
		return 0
	}
	return -p.Remaining
}

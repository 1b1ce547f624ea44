package domain

import "time"

// NoticeKind is the kind of message sent about an SLA.
type NoticeKind string

// Notice kinds.
const (
	NoticeBreach  NoticeKind = "breach"
	NoticeWarning NoticeKind = "warning"
)

// Notice is what the SLA engine hands to the notification gateway.
type Notice struct {
	Kind              NoticeKind    `json:"kind"`
	SLAID             string        `json:"sla_id"`
	IncidentID        string        `json:"incident_id"`
	Priority          Priority      `json:"priority"`
	Deadline          DeadlineKind  `json:"deadline"`
	EffectiveDeadline time.Time     `json:"effective_deadline"`
	Remaining         time.Duration `json:"remaining"`
	DetectedAt        time.Time     `json:"detected_at"`
}

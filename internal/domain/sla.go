// Package domain contains the core types shared across the service.
package domain

import "time"

// Priority determines the deadline offsets of an SLA.
type Priority string

// Priorities.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// IsValid checks if the priority is valid.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// SLAStatus represents the lifecycle state of an SLA.
type SLAStatus string

// SLA statuses.
const (
	SLAStatusActive   SLAStatus = "active"
	SLAStatusPaused   SLAStatus = "paused"
	SLAStatusBreached SLAStatus = "breached"
	SLAStatusMet      SLAStatus = "met"
)

// IsValid checks if the status is one of the known variants.
func (s SLAStatus) IsValid() bool {
	switch s {
	case SLAStatusActive, SLAStatusPaused, SLAStatusBreached, SLAStatusMet:
		return true
	}
	return false
}

// IsTerminal reports whether no further mutation is allowed.
func (s SLAStatus) IsTerminal() bool {
	return s == SLAStatusBreached || s == SLAStatusMet
}

// DeadlineKind selects one of the two deadlines of an SLA.
type DeadlineKind string

// Deadline kinds.
const (
	DeadlineResponse   DeadlineKind = "response"
	DeadlineResolution DeadlineKind = "resolution"
)

// IsValid checks if the deadline kind is valid.
func (k DeadlineKind) IsValid() bool {
	return k == DeadlineResponse || k == DeadlineResolution
}

// SLA tracks response and resolution deadlines for one incident.
//
// Stored deadlines never move. The pause history is kept in PausedAt and
// AccumulatedPause, and the effective deadline is derived from them at
// evaluation time. Version is incremented by every successful write and is
// used for optimistic concurrency control.
type SLA struct {
	ID                 string        `json:"id"`
	IncidentID         string        `json:"incident_id"`
	Priority           Priority      `json:"priority"`
	Status             SLAStatus     `json:"status"`
	ResponseDeadline   time.Time     `json:"response_deadline"`
	ResolutionDeadline time.Time     `json:"resolution_deadline"`
	ResponseAt         *time.Time    `json:"response_at"`
	ResolvedAt         *time.Time    `json:"resolved_at"`
	PausedAt           *time.Time    `json:"paused_at"`
	ResumedAt          *time.Time    `json:"resumed_at"`
	AccumulatedPause   time.Duration `json:"accumulated_pause_duration"`
	BreachedDeadline   *DeadlineKind `json:"breached_deadline,omitempty"`
	BreachNotifiedAt   *time.Time    `json:"breach_notified_at"`
	ResponseWarnedAt   *time.Time    `json:"response_warned_at"`
	ResolutionWarnedAt *time.Time    `json:"resolution_warned_at"`

	// Frozen deadlines are captured when the SLA reaches a terminal status.
	FrozenResponseDeadline   *time.Time `json:"frozen_response_deadline,omitempty"`
	FrozenResolutionDeadline *time.Time `json:"frozen_resolution_deadline,omitempty"`
	ClosedAt                 *time.Time `json:"closed_at,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal reports whether the SLA reached BREACHED or MET.
func (s *SLA) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// StoredDeadline returns the deadline fixed at creation for the given kind.
func (s *SLA) StoredDeadline(kind DeadlineKind) time.Time {
	if kind == DeadlineResponse {
		return s.ResponseDeadline
	}
	return s.ResolutionDeadline
}

// Budget returns the full time allowed for the given deadline, excluding pauses.
func (s *SLA) Budget(kind DeadlineKind) time.Duration {
	return s.StoredDeadline(kind).Sub(s.CreatedAt)
}

// WarnedAt returns the warning marker for the given deadline.
func (s *SLA) WarnedAt(kind DeadlineKind) *time.Time {
	if kind == DeadlineResponse {
		return s.ResponseWarnedAt
	}
	return s.ResolutionWarnedAt
}

// Satisfied reports whether the event the deadline waits for already happened.
func (s *SLA) Satisfied(kind DeadlineKind) bool {
	if kind == DeadlineResponse {
		return s.ResponseAt != nil
	}
	return s.ResolvedAt != nil
}

package sla

import (
	"fmt"
	"time"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
)

// The functions below implement the SLA state machine. Each one takes the
// current record by value and returns the next record, so a failed
// transition never leaves a partially updated SLA behind. The evaluation
// time is always passed in explicitly.

// Pause stops the SLA clock at the given time.
func Pause(s domain.SLA, at, now time.Time) (domain.SLA, error) {
	if err := checkMutable(&s); err != nil {
		return s, err
	}
	if s.Status != domain.SLAStatusActive {
		return s, fmt.Errorf("%w: cannot pause from %s", ErrInvalidTransition, s.Status)
	}
	if err := checkEventTime(&s, at, now); err != nil {
		return s, err
	}
	if s.ResumedAt != nil && at.Before(*s.ResumedAt) {
		return s, fmt.Errorf("%w: pause time precedes the last resume", ErrClockInput)
	}

	pausedAt := at
	s.Status = domain.SLAStatusPaused
	s.PausedAt = &pausedAt
	return s, nil
}

// Resume restarts the SLA clock and adds the closed pause interval to the
// accumulated pause duration.
func Resume(s domain.SLA, at, now time.Time) (domain.SLA, error) {
	if err := checkMutable(&s); err != nil {
		return s, err
	}
	if s.Status != domain.SLAStatusPaused {
		return s, fmt.Errorf("%w: cannot resume from %s", ErrInvalidTransition, s.Status)
	}
	if err := checkEventTime(&s, at, now); err != nil {
		return s, err
	}
	if at.Before(*s.PausedAt) {
		return s, fmt.Errorf("%w: resume time precedes the pause start", ErrClockInput)
	}

	resumedAt := at
	s.AccumulatedPause += at.Sub(*s.PausedAt)
	s.PausedAt = nil
	s.ResumedAt = &resumedAt
	s.Status = domain.SLAStatusActive
	return s, nil
}

// Breach moves an overdue SLA to BREACHED and freezes its deadlines.
func Breach(s domain.SLA, kind domain.DeadlineKind, now time.Time) (domain.SLA, error) {
	if err := checkMutable(&s); err != nil {
		return s, err
	}
	if !kind.IsValid() {
		return s, fmt.Errorf("%w: unknown deadline %q", ErrInvalidTransition, kind)
	}
	if !IsOverdue(&s, kind, now) {
		return s, fmt.Errorf("%w: %s deadline is not overdue", ErrInvalidTransition, kind)
	}
	return breach(s, kind, now), nil
}

// Resolve records the incident resolution. The SLA becomes MET, unless the
// resolution deadline had already passed at the resolution time, in which
// case the breach wins and the SLA becomes BREACHED. Response lateness is
// left to the scanner and to RecordResponse.
func Resolve(s domain.SLA, at, now time.Time) (domain.SLA, error) {
	if err := checkMutable(&s); err != nil {
		return s, err
	}
	if err := checkEventTime(&s, at, now); err != nil {
		return s, err
	}

	if IsOverdue(&s, domain.DeadlineResolution, at) {
		s = breach(s, domain.DeadlineResolution, at)
	} else {
		s = freeze(s, at)
		s.Status = domain.SLAStatusMet
	}

	resolvedAt := at
	s.ResolvedAt = &resolvedAt
	return s, nil
}

// RecordResponse stores the first human response. Later responses leave the
// SLA unchanged. A response that arrives after the effective response
// deadline breaches the SLA.
func RecordResponse(s domain.SLA, at, now time.Time) (domain.SLA, error) {
	if err := checkMutable(&s); err != nil {
		return s, err
	}
	if s.ResponseAt != nil {
		return s, nil
	}
	if err := checkEventTime(&s, at, now); err != nil {
		return s, err
	}

	if IsOverdue(&s, domain.DeadlineResponse, at) {
		s = breach(s, domain.DeadlineResponse, at)
	}

	responseAt := at
	s.ResponseAt = &responseAt
	return s, nil
}

// MarkWarned sets the approaching-deadline marker for one deadline.
// An SLA that was already warned is returned unchanged.
func MarkWarned(s domain.SLA, kind domain.DeadlineKind, now time.Time) (domain.SLA, error) {
	if err := checkMutable(&s); err != nil {
		return s, err
	}
	if s.WarnedAt(kind) != nil {
		return s, nil
	}

	warnedAt := now
	switch kind {
	case domain.DeadlineResponse:
		s.ResponseWarnedAt = &warnedAt
	case domain.DeadlineResolution:
		s.ResolutionWarnedAt = &warnedAt
	default:
		return s, fmt.Errorf("%w: unknown deadline %q", ErrInvalidTransition, kind)
	}
	return s, nil
}

// MarkBreachNotified records that the breach notification was handed to the
// gateway. The marker is set once and never cleared.
func MarkBreachNotified(s domain.SLA, now time.Time) (domain.SLA, error) {
	if s.Status != domain.SLAStatusBreached {
		return s, fmt.Errorf("%w: breach notification for %s sla", ErrInvalidTransition, s.Status)
	}
	if s.BreachNotifiedAt != nil {
		return s, nil
	}

	notifiedAt := now
	s.BreachNotifiedAt = &notifiedAt
	return s, nil
}

func breach(s domain.SLA, kind domain.DeadlineKind, at time.Time) domain.SLA {
	s = freeze(s, at)
	breached := kind
	s.Status = domain.SLAStatusBreached
	s.BreachedDeadline = &breached
	return s
}

// freeze captures the effective deadlines at the given time and closes any
// open pause without adding it to the accumulated pause duration.
func freeze(s domain.SLA, at time.Time) domain.SLA {
	response := EffectiveDeadline(&s, domain.DeadlineResponse, at)
	resolution := EffectiveDeadline(&s, domain.DeadlineResolution, at)
	closedAt := at

	s.FrozenResponseDeadline = &response
	s.FrozenResolutionDeadline = &resolution
	s.ClosedAt = &closedAt
	s.PausedAt = nil
	return s
}

func checkMutable(s *domain.SLA) error {
	switch s.Status {
	case domain.SLAStatusActive:
		if s.PausedAt != nil {
			return fmt.Errorf("%w: active sla has a pause start", ErrInvariantViolation)
		}
		return nil
	case domain.SLAStatusPaused:
		if s.PausedAt == nil {
			return fmt.Errorf("%w: paused sla has no pause start", ErrInvariantViolation)
		}
		return nil
	case domain.SLAStatusBreached, domain.SLAStatusMet:
		return fmt.Errorf("%w: sla is %s", ErrTerminalState, s.Status)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStatus, s.Status)
	}
}

func checkEventTime(s *domain.SLA, at, now time.Time) error {
	if at.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrClockInput)
	}
	if at.After(now) {
		return fmt.Errorf("%w: timestamp %s is in the future", ErrClockInput, at.Format(time.RFC3339))
	}
	if at.Before(s.CreatedAt) {
		return fmt.Errorf("%w: timestamp %s precedes sla creation", ErrClockInput, at.Format(time.RFC3339))
	}
	return nil
}

package sla

import (
	"time"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
)

// EffectiveDeadline returns the deadline shifted by all pause time as of now.
// Terminal SLAs return the deadline captured at the moment of transition.
func EffectiveDeadline(s *domain.SLA, kind domain.DeadlineKind, now time.Time) time.Time {
	if s.IsTerminal() {
		if frozen := frozenDeadline(s, kind); frozen != nil {
			return *frozen
		}
		return s.StoredDeadline(kind).Add(s.AccumulatedPause)
	}

	deadline := s.StoredDeadline(kind).Add(s.AccumulatedPause)
	if s.Status == domain.SLAStatusPaused && s.PausedAt != nil && now.After(*s.PausedAt) {
		deadline = deadline.Add(now.Sub(*s.PausedAt))
	}
	return deadline
}

// IsOverdue reports whether the deadline passed before its event happened.
// A recorded response stops the response check and a recorded resolution
// stops the resolution check; the two are evaluated independently.
func IsOverdue(s *domain.SLA, kind domain.DeadlineKind, now time.Time) bool {
	if s.Satisfied(kind) {
		return false
	}
	return now.After(EffectiveDeadline(s, kind, now))
}

// TimeRemaining returns the time left until the effective deadline.
// The result is negative once the deadline has passed.
func TimeRemaining(s *domain.SLA, kind domain.DeadlineKind, now time.Time) time.Duration {
	return EffectiveDeadline(s, kind, now).Sub(now)
}

// ElapsedFraction returns the share of the deadline budget already consumed,
// not counting pause time. It is 0 for an empty budget.
func ElapsedFraction(s *domain.SLA, kind domain.DeadlineKind, now time.Time) float64 {
	budget := s.Budget(kind)
	if budget <= 0 {
		return 0
	}
	used := budget - TimeRemaining(s, kind, now)
	return float64(used) / float64(budget)
}

// OverdueDeadline returns the first overdue deadline, response checked first.
func OverdueDeadline(s *domain.SLA, now time.Time) (domain.DeadlineKind, bool) {
	for _, kind := range []domain.DeadlineKind{domain.DeadlineResponse, domain.DeadlineResolution} {
		if IsOverdue(s, kind, now) {
			return kind, true
		}
	}
	return "", false
}

// Snapshot is the SLA together with its clock state at a point in time.
type Snapshot struct {
	*domain.SLA
	EvaluatedAt                 time.Time
	EffectiveResponseDeadline   time.Time
	EffectiveResolutionDeadline time.Time
	ResponseRemaining           time.Duration
	ResolutionRemaining         time.Duration
	ResponseOverdue             bool
	ResolutionOverdue           bool
}

// Evaluate computes the clock state of an SLA as of now.
func Evaluate(s *domain.SLA, now time.Time) Snapshot {
	return Snapshot{
		SLA:                         s,
		EvaluatedAt:                 now,
		EffectiveResponseDeadline:   EffectiveDeadline(s, domain.DeadlineResponse, now),
		EffectiveResolutionDeadline: EffectiveDeadline(s, domain.DeadlineResolution, now),
		ResponseRemaining:           TimeRemaining(s, domain.DeadlineResponse, now),
		ResolutionRemaining:         TimeRemaining(s, domain.DeadlineResolution, now),
		ResponseOverdue:             IsOverdue(s, domain.DeadlineResponse, now),
		ResolutionOverdue:           IsOverdue(s, domain.DeadlineResolution, now),
	}
}

func frozenDeadline(s *domain.SLA, kind domain.DeadlineKind) *time.Time {
	if kind == domain.DeadlineResponse {
		return s.FrozenResponseDeadline
	}
	return s.FrozenResolutionDeadline
}

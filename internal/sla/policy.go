package sla

import (
	"fmt"
	"time"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/google/uuid"
)

// Targets holds the deadline offsets for one priority.
type Targets struct {
	Response   time.Duration
	Resolution time.Duration
}

// Policy maps each priority to its deadline offsets.
type Policy map[domain.Priority]Targets

// DefaultPolicy returns the standard offset table.
func DefaultPolicy() Policy {
	return Policy{
		domain.PriorityCritical: {Response: 1 * time.Hour, Resolution: 4 * time.Hour},
		domain.PriorityHigh:     {Response: 4 * time.Hour, Resolution: 24 * time.Hour},
		domain.PriorityMedium:   {Response: 8 * time.Hour, Resolution: 72 * time.Hour},
		domain.PriorityLow:      {Response: 24 * time.Hour, Resolution: 7 * 24 * time.Hour},
	}
}

// Validate checks that every priority has positive offsets and that the
// response offset does not exceed the resolution offset.
func (p Policy) Validate() error {
	for _, priority := range []domain.Priority{
		domain.PriorityCritical, domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow,
	} {
		t, ok := p[priority]
		if !ok {
			return fmt.Errorf("policy: missing targets for %s", priority)
		}
		if t.Response <= 0 || t.Resolution <= 0 {
			return fmt.Errorf("policy: %s offsets must be positive", priority)
		}
		if t.Response > t.Resolution {
			return fmt.Errorf("policy: %s response offset exceeds resolution offset", priority)
		}
	}
	return nil
}

// NewSLA builds the initial ACTIVE record for an incident.
func (p Policy) NewSLA(incidentID string, priority domain.Priority, createdAt time.Time) (*domain.SLA, error) {
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}
	targets, ok := p[priority]
	if !ok {
		return nil, fmt.Errorf("%w: no targets for %q", ErrInvalidPriority, priority)
	}
	if createdAt.IsZero() {
		return nil, fmt.Errorf("%w: creation time is required", ErrClockInput)
	}

	createdAt = createdAt.UTC()
	return &domain.SLA{
		ID:                 uuid.NewString(),
		IncidentID:         incidentID,
		Priority:           priority,
		Status:             domain.SLAStatusActive,
		ResponseDeadline:   createdAt.Add(targets.Response),
		ResolutionDeadline: createdAt.Add(targets.Resolution),
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}, nil
}

// Package sla implements the SLA clock, the SLA state machine and the
// periodic breach scanner.
package sla

import (
	"context"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
)

// Repository defines the interface for SLA storage.
//
// ConditionalUpdate must write the record only if the stored version still
// equals expectedVersion, returning ErrVersionConflict otherwise. On success
// it sets s.Version and s.UpdatedAt to the stored values.
type Repository interface {
	Create(ctx context.Context, s *domain.SLA) error
	GetByID(ctx context.Context, id string) (*domain.SLA, error)
	GetByIncidentID(ctx context.Context, incidentID string) (*domain.SLA, error)
	ConditionalUpdate(ctx context.Context, s *domain.SLA, expectedVersion int64) error

	// ListOpen returns, ordered by id and starting after afterID, SLAs that
	// are ACTIVE or PAUSED, plus BREACHED SLAs whose breach notice was never
	// recorded.
	ListOpen(ctx context.Context, afterID string, limit int) ([]*domain.SLA, error)
}

// Notifier hands SLA notices to the notification gateway.
// Dispatch returns nil once the notice is accepted for delivery.
type Notifier interface {
	Dispatch(ctx context.Context, notice domain.Notice) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, notice domain.Notice) error

// Dispatch calls f.
func (f NotifierFunc) Dispatch(ctx context.Context, notice domain.Notice) error {
	return f(ctx, notice)
}

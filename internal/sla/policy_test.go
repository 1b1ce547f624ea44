package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Validate())

	assert.Equal(t, Targets{Response: time.Hour, Resolution: 4 * time.Hour}, p[domain.PriorityCritical])
	assert.Equal(t, Targets{Response: 4 * time.Hour, Resolution: 24 * time.Hour}, p[domain.PriorityHigh])
	assert.Equal(t, Targets{Response: 8 * time.Hour, Resolution: 72 * time.Hour}, p[domain.PriorityMedium])
	assert.Equal(t, Targets{Response: 24 * time.Hour, Resolution: 168 * time.Hour}, p[domain.PriorityLow])
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p Policy)
	}{
		{"missing priority", func(p Policy) { delete(p, domain.PriorityLow) }},
		{"zero response", func(p Policy) { p[domain.PriorityHigh] = Targets{Resolution: time.Hour} }},
		{"negative resolution", func(p Policy) {
			p[domain.PriorityHigh] = Targets{Response: time.Hour, Resolution: -time.Hour}
		}},
		{"response after resolution", func(p Policy) {
			p[domain.PriorityMedium] = Targets{Response: 2 * time.Hour, Resolution: time.Hour}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestPolicy_NewSLA(t *testing.T) {
	created := time.Date(2026, 3, 2, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	s, err := DefaultPolicy().NewSLA("inc-1", domain.PriorityCritical, created)
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "inc-1", s.IncidentID)
	assert.Equal(t, domain.SLAStatusActive, s.Status)
	assert.Equal(t, time.UTC, s.CreatedAt.Location())
	assert.True(t, s.ResponseDeadline.Equal(created.Add(time.Hour)))
	assert.True(t, s.ResolutionDeadline.Equal(created.Add(4*time.Hour)))
	assert.Nil(t, s.PausedAt)
	assert.Zero(t, s.AccumulatedPause)

	_, err = DefaultPolicy().NewSLA("inc-1", "urgent", created)
	assert.ErrorIs(t, err, ErrInvalidPriority)

	_, err = DefaultPolicy().NewSLA("inc-1", domain.PriorityLow, time.Time{})
	assert.ErrorIs(t, err, ErrClockInput)
}

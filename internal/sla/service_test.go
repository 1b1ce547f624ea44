package sla

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
)

func newTestService(repo Repository, notifier Notifier) *Service {
	return NewService(ServiceConfig{Policy: DefaultPolicy(), OperationTimeout: time.Second}, repo, notifier)
}

func TestService_CreateForIncident(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)

	created, err := svc.CreateForIncident(context.Background(), CreateInput{
		IncidentID: "inc-1",
		Priority:   domain.PriorityHigh,
		CreatedAt:  ptr(t0),
	}, t0.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, int64(1), created.Version)
	assert.Equal(t, t0.Add(4*time.Hour), created.ResponseDeadline)
	assert.Equal(t, t0.Add(24*time.Hour), created.ResolutionDeadline)

	_, err = svc.CreateForIncident(context.Background(), CreateInput{
		IncidentID: "inc-1",
		Priority:   domain.PriorityLow,
	}, t0.Add(time.Minute))
	assert.ErrorIs(t, err, ErrSLAAlreadyExists)

	_, err = svc.CreateForIncident(context.Background(), CreateInput{
		IncidentID: "inc-2",
		Priority:   domain.PriorityLow,
		CreatedAt:  ptr(t0.Add(time.Hour)),
	}, t0)
	assert.ErrorIs(t, err, ErrClockInput)

	_, err = svc.CreateForIncident(context.Background(), CreateInput{
		IncidentID: "inc-3",
		Priority:   "p1",
	}, t0)
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestService_GetByIncident(t *testing.T) {
	repo := newMemRepo(newTestSLA("a", domain.PriorityCritical))
	svc := newTestService(repo, nil)

	snap, err := svc.GetByIncident(context.Background(), "inc-a", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "a", snap.ID)
	assert.True(t, snap.ResponseOverdue)

	_, err = svc.Get(context.Background(), "missing", t0)
	assert.ErrorIs(t, err, ErrSLANotFound)
}

func TestService_PauseResume(t *testing.T) {
	repo := newMemRepo(newTestSLA("a", domain.PriorityHigh))
	svc := newTestService(repo, nil)
	ctx := context.Background()

	paused, err := svc.Pause(ctx, "a", t0.Add(time.Hour), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatusPaused, paused.Status)
	assert.Equal(t, int64(2), paused.Version)

	_, err = svc.Pause(ctx, "a", t0.Add(2*time.Hour), t0.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	resumed, err := svc.Resume(ctx, "a", t0.Add(3*time.Hour), t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, resumed.AccumulatedPause)
	assert.Equal(t, int64(3), resumed.Version)

	stored := repo.get("a")
	assert.Equal(t, domain.SLAStatusActive, stored.Status)
	assert.Equal(t, 2*time.Hour, stored.AccumulatedPause)
}

func TestService_RecordResolution_AfterPause(t *testing.T) {
	repo := newMemRepo(newTestSLA("a", domain.PriorityHigh))
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)
	ctx := context.Background()

	_, err := svc.Pause(ctx, "a", t0.Add(time.Hour), t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = svc.Resume(ctx, "a", t0.Add(3*time.Hour), t0.Add(3*time.Hour))
	require.NoError(t, err)

	met, err := svc.RecordResolution(ctx, "inc-a", t0.Add(25*time.Hour), t0.Add(25*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, domain.SLAStatusMet, met.Status)
	assert.Empty(t, notifier.sent())
}

func TestService_RecordResponse_Late(t *testing.T) {
	repo := newMemRepo(newTestSLA("a", domain.PriorityCritical))
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)
	now := t0.Add(2 * time.Hour)

	breached, err := svc.RecordResponse(context.Background(), "inc-a", now, now)
	require.NoError(t, err)

	assert.Equal(t, domain.SLAStatusBreached, breached.Status)
	require.NotNil(t, breached.BreachNotifiedAt, "breach marker is written with the transition")

	sent := notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.NoticeBreach, sent[0].Kind)
	assert.Equal(t, domain.DeadlineResponse, sent[0].Deadline)
	assert.Equal(t, "inc-a", sent[0].IncidentID)
}

func TestService_RecordResponse_Repeated(t *testing.T) {
	repo := newMemRepo(newTestSLA("a", domain.PriorityCritical))
	svc := newTestService(repo, nil)
	ctx := context.Background()
	at := t0.Add(10 * time.Minute)

	_, err := svc.RecordResponse(ctx, "inc-a", at, at)
	require.NoError(t, err)
	updates := repo.updateCount()

	again, err := svc.RecordResponse(ctx, "inc-a", at.Add(time.Minute), at.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, at, *again.ResponseAt)
	assert.Equal(t, updates, repo.updateCount(), "unchanged record is not written")
}

func TestService_DispatchFailureDoesNotFailTransition(t *testing.T) {
	repo := newMemRepo(newTestSLA("a", domain.PriorityCritical))
	notifier := &recordingNotifier{err: errors.New("gateway down")}
	svc := newTestService(repo, notifier)
	now := t0.Add(5 * time.Hour)

	breached, err := svc.RecordResolution(context.Background(), "inc-a", now, now)
	require.NoError(t, err)

	assert.Equal(t, domain.SLAStatusBreached, breached.Status)
	assert.Len(t, notifier.sent(), 1)
	assert.NotNil(t, repo.get("a").BreachNotifiedAt)
}

func TestService_ConcurrentResume(t *testing.T) {
	s := newTestSLA("a", domain.PriorityHigh)
	s.Status = domain.SLAStatusPaused
	s.PausedAt = ptr(t0.Add(time.Hour))
	repo := newMemRepo(s)
	svc := newTestService(repo, nil)
	ctx := context.Background()
	now := t0.Add(3 * time.Hour)

	// The first write is preceded by a competing resume that commits first.
	fired := false
	var competing error
	repo.beforeUpdate = func(_ *domain.SLA) error {
		if !fired {
			fired = true
			_, competing = svc.Resume(ctx, "a", now, now)
		}
		return nil
	}

	_, err := svc.Resume(ctx, "a", now, now)

	require.NoError(t, competing)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	stored := repo.get("a")
	assert.Equal(t, domain.SLAStatusActive, stored.Status)
	assert.Equal(t, 2*time.Hour, stored.AccumulatedPause, "pause interval counted once")
	assert.Equal(t, int64(2), stored.Version)
}

func TestService_ConflictRetriedOnce(t *testing.T) {
	repo := newMemRepo(newTestSLA("a", domain.PriorityHigh))
	svc := newTestService(repo, nil)
	now := t0.Add(time.Hour)

	calls := 0
	repo.beforeUpdate = func(_ *domain.SLA) error {
		calls++
		if calls == 1 {
			return ErrVersionConflict
		}
		return nil
	}

	paused, err := svc.Pause(context.Background(), "a", now, now)
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatusPaused, paused.Status)
	assert.Equal(t, 2, calls)
}

func TestService_SecondConflictSurfaces(t *testing.T) {
	repo := newMemRepo(newTestSLA("a", domain.PriorityHigh))
	svc := newTestService(repo, nil)
	now := t0.Add(time.Hour)

	calls := 0
	repo.beforeUpdate = func(_ *domain.SLA) error {
		calls++
		return ErrVersionConflict
	}

	_, err := svc.Pause(context.Background(), "a", now, now)
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Equal(t, 2, calls, "no unbounded retry")
	assert.Equal(t, domain.SLAStatusActive, repo.get("a").Status)
}

func TestService_TerminalState(t *testing.T) {
	s := newTestSLA("a", domain.PriorityHigh)
	s.Status = domain.SLAStatusMet
	repo := newMemRepo(s)
	svc := newTestService(repo, nil)
	now := t0.Add(time.Hour)

	_, err := svc.Pause(context.Background(), "a", now, now)
	assert.ErrorIs(t, err, ErrTerminalState)
	assert.Zero(t, repo.updateCount())
}

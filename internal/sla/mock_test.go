package sla

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
)

// memRepo is an in-memory Repository with version checks.
type memRepo struct {
	mu      sync.Mutex
	items   map[string]domain.SLA
	updates int

	// beforeUpdate runs before every ConditionalUpdate, outside the lock.
	beforeUpdate func(s *domain.SLA) error
	listErr      error
}

func newMemRepo(items ...*domain.SLA) *memRepo {
	r := &memRepo{items: make(map[string]domain.SLA)}
	for _, item := range items {
		r.items[item.ID] = *item
	}
	return r
}

func (r *memRepo) Create(_ context.Context, s *domain.SLA) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.IncidentID == s.IncidentID {
			return ErrSLAAlreadyExists
		}
	}
	s.Version = 1
	r.items[s.ID] = *s
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*domain.SLA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, ErrSLANotFound
	}
	return &item, nil
}

func (r *memRepo) GetByIncidentID(_ context.Context, incidentID string) (*domain.SLA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.IncidentID == incidentID {
			found := item
			return &found, nil
		}
	}
	return nil, ErrSLANotFound
}

func (r *memRepo) ConditionalUpdate(_ context.Context, s *domain.SLA, expectedVersion int64) error {
	if r.beforeUpdate != nil {
		if err := r.beforeUpdate(s); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	stored, ok := r.items[s.ID]
	if !ok {
		return ErrSLANotFound
	}
	if stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	s.Version = expectedVersion + 1
	s.UpdatedAt = time.Now().UTC()
	r.items[s.ID] = *s
	return nil
}

func (r *memRepo) ListOpen(_ context.Context, afterID string, limit int) ([]*domain.SLA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}

	var result []*domain.SLA
	for _, item := range r.items {
		open := item.Status == domain.SLAStatusActive || item.Status == domain.SLAStatusPaused
		unnotified := item.Status == domain.SLAStatusBreached && item.BreachNotifiedAt == nil
		if (open || unnotified) && item.ID > afterID {
			found := item
			result = append(result, &found)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memRepo) get(id string) domain.SLA {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id]
}

func (r *memRepo) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

// recordingNotifier collects dispatched notices.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []domain.Notice
	err     error
}

func (n *recordingNotifier) Dispatch(_ context.Context, notice domain.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *recordingNotifier) sent() []domain.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notice(nil), n.notices...)
}

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// newTestSLA returns a stored ACTIVE SLA created at t0 with the default
// policy targets for the priority.
func newTestSLA(id string, priority domain.Priority) *domain.SLA {
	targets := DefaultPolicy()[priority]
	return &domain.SLA{
		ID:                 id,
		IncidentID:         "inc-" + id,
		Priority:           priority,
		Status:             domain.SLAStatusActive,
		ResponseDeadline:   t0.Add(targets.Response),
		ResolutionDeadline: t0.Add(targets.Resolution),
		Version:            1,
		CreatedAt:          t0,
		UpdatedAt:          t0,
	}
}

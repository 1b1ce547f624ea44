package sla

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/ctxlog"
)

const sourceAPI = "api"

// ServiceConfig holds SLA service settings.
type ServiceConfig struct {
	Policy Policy
	// OperationTimeout bounds every repository call and notice dispatch.
	// Zero means no bound beyond the caller's context.
	OperationTimeout time.Duration
}

// Service implements SLA business logic for incident callbacks and manual
// clock control.
type Service struct {
	cfg      ServiceConfig
	repo     Repository
	notifier Notifier
}

// NewService creates a new SLA service.
func NewService(cfg ServiceConfig, repo Repository, notifier Notifier) *Service {
	if cfg.Policy == nil {
		cfg.Policy = DefaultPolicy()
	}
	return &Service{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
	}
}

// CreateInput holds data for starting an SLA.
type CreateInput struct {
	IncidentID string
	Priority   domain.Priority
	// CreatedAt defaults to now. Backdated creation is allowed.
	CreatedAt *time.Time
}

// CreateForIncident starts the SLA clock for an incident.
func (s *Service) CreateForIncident(ctx context.Context, input CreateInput, now time.Time) (*domain.SLA, error) {
	createdAt := now
	if input.CreatedAt != nil {
		createdAt = *input.CreatedAt
	}
	if createdAt.After(now) {
		return nil, fmt.Errorf("%w: creation time is in the future", ErrClockInput)
	}

	item, err := s.cfg.Policy.NewSLA(input.IncidentID, input.Priority, createdAt)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := withTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	if err := s.repo.Create(opCtx, item); err != nil {
		return nil, fmt.Errorf("create sla: %w", err)
	}

	ctxlog.FromContext(ctx).Info("sla started",
		"sla_id", item.ID,
		"incident_id", item.IncidentID,
		"priority", item.Priority,
		"response_deadline", item.ResponseDeadline,
		"resolution_deadline", item.ResolutionDeadline,
	)
	return item, nil
}

// Get returns the SLA with its clock state as of now.
func (s *Service) Get(ctx context.Context, id string, now time.Time) (Snapshot, error) {
	item, err := s.load(ctx, byID(s.repo, id))
	if err != nil {
		return Snapshot{}, err
	}
	return Evaluate(item, now), nil
}

// GetByIncident returns the SLA of an incident with its clock state as of now.
func (s *Service) GetByIncident(ctx context.Context, incidentID string, now time.Time) (Snapshot, error) {
	item, err := s.load(ctx, byIncident(s.repo, incidentID))
	if err != nil {
		return Snapshot{}, err
	}
	return Evaluate(item, now), nil
}

// Pause stops the SLA clock at the given time.
func (s *Service) Pause(ctx context.Context, id string, at, now time.Time) (*domain.SLA, error) {
	return s.mutate(ctx, byID(s.repo, id), func(cur domain.SLA) (domain.SLA, error) {
		return Pause(cur, at, now)
	}, now)
}

// Resume restarts the SLA clock at the given time.
func (s *Service) Resume(ctx context.Context, id string, at, now time.Time) (*domain.SLA, error) {
	return s.mutate(ctx, byID(s.repo, id), func(cur domain.SLA) (domain.SLA, error) {
		return Resume(cur, at, now)
	}, now)
}

// RecordResponse stores the first response to an incident.
func (s *Service) RecordResponse(ctx context.Context, incidentID string, at, now time.Time) (*domain.SLA, error) {
	return s.mutate(ctx, byIncident(s.repo, incidentID), func(cur domain.SLA) (domain.SLA, error) {
		return RecordResponse(cur, at, now)
	}, now)
}

// RecordResolution closes the SLA of a resolved incident.
func (s *Service) RecordResolution(ctx context.Context, incidentID string, at, now time.Time) (*domain.SLA, error) {
	return s.mutate(ctx, byIncident(s.repo, incidentID), func(cur domain.SLA) (domain.SLA, error) {
		return Resolve(cur, at, now)
	}, now)
}

type loadFunc func(ctx context.Context) (*domain.SLA, error)

func byID(repo Repository, id string) loadFunc {
	return func(ctx context.Context) (*domain.SLA, error) {
		return repo.GetByID(ctx, id)
	}
}

func byIncident(repo Repository, incidentID string) loadFunc {
	return func(ctx context.Context) (*domain.SLA, error) {
		return repo.GetByIncidentID(ctx, incidentID)
	}
}

func (s *Service) load(ctx context.Context, load loadFunc) (*domain.SLA, error) {
	opCtx, cancel := withTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	item, err := load(opCtx)
	if err != nil {
		return nil, fmt.Errorf("get sla: %w", err)
	}
	return item, nil
}

// mutate applies a transition with optimistic concurrency. A version
// conflict reloads the record and applies the transition once more. When
// the reloaded record no longer accepts the transition, or the second write
// conflicts too, the caller gets ErrConcurrentModification.
func (s *Service) mutate(
	ctx context.Context,
	load loadFunc,
	apply func(cur domain.SLA) (domain.SLA, error),
	now time.Time,
) (*domain.SLA, error) {
	logger := ctxlog.FromContext(ctx)

	for attempt := 0; attempt < 2; attempt++ {
		cur, err := s.load(ctx, load)
		if err != nil {
			return nil, err
		}

		next, err := apply(*cur)
		if err != nil {
			if attempt > 0 && (errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrTerminalState)) {
				return nil, fmt.Errorf("%w: %w", ErrConcurrentModification, err)
			}
			return nil, err
		}
		if reflect.DeepEqual(next, *cur) {
			return cur, nil
		}

		breached := cur.Status != domain.SLAStatusBreached && next.Status == domain.SLAStatusBreached
		if breached {
			if next, err = MarkBreachNotified(next, now); err != nil {
				return nil, err
			}
		}

		opCtx, cancel := withTimeout(ctx, s.cfg.OperationTimeout)
		err = s.repo.ConditionalUpdate(opCtx, &next, cur.Version)
		cancel()
		if errors.Is(err, ErrVersionConflict) {
			recordConflict(sourceAPI)
			logger.Debug("sla version conflict, retrying",
				"sla_id", cur.ID,
				"version", cur.Version,
				"attempt", attempt+1,
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update sla: %w", err)
		}

		logger.Info("sla updated",
			"sla_id", next.ID,
			"incident_id", next.IncidentID,
			"from", cur.Status,
			"to", next.Status,
			"version", next.Version,
		)

		if breached {
			recordTransition(sourceAPI, "breach_"+string(*next.BreachedDeadline))
			s.dispatch(ctx, breachNotice(&next, now))
		}
		return &next, nil
	}

	return nil, fmt.Errorf("%w: retry conflicted", ErrConcurrentModification)
}

// dispatch hands a notice to the gateway. The transition is already
// committed at this point, so a failure is logged and counted only.
func (s *Service) dispatch(ctx context.Context, notice domain.Notice) {
	dispatchNotice(ctx, s.notifier, s.cfg.OperationTimeout, notice)
}

func dispatchNotice(ctx context.Context, notifier Notifier, timeout time.Duration, notice domain.Notice) {
	if notifier == nil {
		return
	}

	opCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	if err := notifier.Dispatch(opCtx, notice); err != nil {
		recordDispatch(string(notice.Kind), "error")
		ctxlog.FromContext(ctx).Error("failed to dispatch sla notice",
			"sla_id", notice.SLAID,
			"incident_id", notice.IncidentID,
			"kind", notice.Kind,
			"deadline", notice.Deadline,
			"error", err,
		)
		return
	}
	recordDispatch(string(notice.Kind), "success")
}

func breachNotice(s *domain.SLA, now time.Time) domain.Notice {
	kind := domain.DeadlineResolution
	if s.BreachedDeadline != nil {
		kind = *s.BreachedDeadline
	}
	return newNotice(domain.NoticeBreach, s, kind, now)
}

func newNotice(noticeKind domain.NoticeKind, s *domain.SLA, kind domain.DeadlineKind, now time.Time) domain.Notice {
	return domain.Notice{
		Kind:              noticeKind,
		SLAID:             s.ID,
		IncidentID:        s.IncidentID,
		Priority:          s.Priority,
		Deadline:          kind,
		EffectiveDeadline: EffectiveDeadline(s, kind, now),
		Remaining:         TimeRemaining(s, kind, now),
		DetectedAt:        now,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

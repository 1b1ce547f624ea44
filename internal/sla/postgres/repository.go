// Package postgres provides PostgreSQL implementation of the SLA repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/sla"
)

const uniqueViolation = "23505"

const slaColumns = `
	id, incident_id, priority, status,
	response_deadline, resolution_deadline,
	response_at, resolved_at, paused_at, resumed_at, accumulated_pause_us,
	breached_deadline, breach_notified_at, response_warned_at, resolution_warned_at,
	frozen_response_deadline, frozen_resolution_deadline, closed_at,
	version, created_at, updated_at
`

// Repository implements sla.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new SLA record.
func (r *Repository) Create(ctx context.Context, s *domain.SLA) error {
	query := `
		INSERT INTO slas (id, incident_id, priority, status, response_deadline, resolution_deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING version, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		s.ID,
		s.IncidentID,
		s.Priority,
		s.Status,
		s.ResponseDeadline,
		s.ResolutionDeadline,
		s.CreatedAt,
	).Scan(&s.Version, &s.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sla.ErrSLAAlreadyExists
		}
		return fmt.Errorf("insert sla: %w", err)
	}
	return nil
}

// GetByID retrieves an SLA by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.SLA, error) {
	query := `SELECT ` + slaColumns + ` FROM slas WHERE id = $1`
	s, err := scanSLA(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sla.ErrSLANotFound
		}
		return nil, fmt.Errorf("get sla: %w", err)
	}
	return s, nil
}

// GetByIncidentID retrieves the SLA of an incident.
func (r *Repository) GetByIncidentID(ctx context.Context, incidentID string) (*domain.SLA, error) {
	query := `SELECT ` + slaColumns + ` FROM slas WHERE incident_id = $1`
	s, err := scanSLA(r.db.QueryRow(ctx, query, incidentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sla.ErrSLANotFound
		}
		return nil, fmt.Errorf("get sla by incident: %w", err)
	}
	return s, nil
}

// ConditionalUpdate writes every mutable column if the stored version still
// equals expectedVersion.
func (r *Repository) ConditionalUpdate(ctx context.Context, s *domain.SLA, expectedVersion int64) error {
	query := `
		UPDATE slas SET
			status = $3,
			response_at = $4,
			resolved_at = $5,
			paused_at = $6,
			resumed_at = $7,
			accumulated_pause_us = $8,
			breached_deadline = $9,
			breach_notified_at = $10,
			response_warned_at = $11,
			resolution_warned_at = $12,
			frozen_response_deadline = $13,
			frozen_resolution_deadline = $14,
			closed_at = $15,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`
	var breached *string
	if s.BreachedDeadline != nil {
		kind := string(*s.BreachedDeadline)
		breached = &kind
	}

	err := r.db.QueryRow(ctx, query,
		s.ID,
		expectedVersion,
		s.Status,
		s.ResponseAt,
		s.ResolvedAt,
		s.PausedAt,
		s.ResumedAt,
		s.AccumulatedPause.Microseconds(),
		breached,
		s.BreachNotifiedAt,
		s.ResponseWarnedAt,
		s.ResolutionWarnedAt,
		s.FrozenResponseDeadline,
		s.FrozenResolutionDeadline,
		s.ClosedAt,
	).Scan(&s.Version, &s.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update sla: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM slas WHERE id = $1)`, s.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check sla exists: %w", err)
	}
	if !exists {
		return sla.ErrSLANotFound
	}
	return sla.ErrVersionConflict
}

// ListOpen returns one keyset page of SLAs the scanner has to evaluate.
func (r *Repository) ListOpen(ctx context.Context, afterID string, limit int) ([]*domain.SLA, error) {
	query := `
		SELECT ` + slaColumns + `
		FROM slas
		WHERE (status IN ('active', 'paused') OR (status = 'breached' AND breach_notified_at IS NULL))
		  AND id > COALESCE(NULLIF($1::text, '')::uuid, '00000000-0000-0000-0000-000000000000'::uuid)
		ORDER BY id
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list open slas: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.SLA, 0, limit)
	for rows.Next() {
		s, err := scanSLA(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sla: %w", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slas: %w", err)
	}
	return items, nil
}

// CountByStatus returns the number of SLAs per status.
func (r *Repository) CountByStatus(ctx context.Context) (map[domain.SLAStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM slas GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count slas: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.SLAStatus]int)
	for rows.Next() {
		var status domain.SLAStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func scanSLA(row pgx.Row) (*domain.SLA, error) {
	var (
		s            domain.SLA
		accumulated  int64
		breachedKind *string
	)
	err := row.Scan(
		&s.ID,
		&s.IncidentID,
		&s.Priority,
		&s.Status,
		&s.ResponseDeadline,
		&s.ResolutionDeadline,
		&s.ResponseAt,
		&s.ResolvedAt,
		&s.PausedAt,
		&s.ResumedAt,
		&accumulated,
		&breachedKind,
		&s.BreachNotifiedAt,
		&s.ResponseWarnedAt,
		&s.ResolutionWarnedAt,
		&s.FrozenResponseDeadline,
		&s.FrozenResolutionDeadline,
		&s.ClosedAt,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.AccumulatedPause = time.Duration(accumulated) * time.Microsecond
	if breachedKind != nil {
		kind := domain.DeadlineKind(*breachedKind)
		s.BreachedDeadline = &kind
	}
	toUTC(&s)
	return &s, nil
}

func toUTC(s *domain.SLA) {
	s.ResponseDeadline = s.ResponseDeadline.UTC()
	s.ResolutionDeadline = s.ResolutionDeadline.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	for _, t := range []*time.Time{
		s.ResponseAt, s.ResolvedAt, s.PausedAt, s.ResumedAt,
		s.BreachNotifiedAt, s.ResponseWarnedAt, s.ResolutionWarnedAt,
		s.FrozenResponseDeadline, s.FrozenResolutionDeadline, s.ClosedAt,
	} {
		if t != nil {
			*t = t.UTC()
		}
	}
}

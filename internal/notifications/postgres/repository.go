// Package postgres provides PostgreSQL implementation of the notification queue.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications"
)

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const queueColumns = `id, sla_id, notice_kind, channel_type, target, payload, status,
	attempts, max_attempts, next_attempt_at, COALESCE(last_error, ''), created_at, updated_at, sent_at`

// EnqueueBatch inserts queue items in one transaction.
func (r *Repository) EnqueueBatch(ctx context.Context, items []*notifications.QueueItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := `
		INSERT INTO notification_queue (sla_id, notice_kind, channel_type, target, payload, status, max_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, next_attempt_at, created_at, updated_at
	`
	for _, item := range items {
		payload, err := json.Marshal(item.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		if item.Status == "" {
			item.Status = notifications.QueueStatusPending
		}
		err = tx.QueryRow(ctx, query,
			item.SLAID,
			item.NoticeKind,
			item.ChannelType,
			item.Target,
			payload,
			item.Status,
			item.MaxAttempts,
		).Scan(&item.ID, &item.NextAttemptAt, &item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert queue item for %s: %w", item.ChannelType, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// FetchPending claims due pending items. Concurrent workers never claim the
// same row.
func (r *Repository) FetchPending(ctx context.Context, limit int) ([]*notifications.QueueItem, error) {
	query := `
		UPDATE notification_queue
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notification_queue
			WHERE status = 'pending' AND next_attempt_at <= NOW()
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + queueColumns

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending notifications: %w", err)
	}
	defer rows.Close()

	items := make([]*notifications.QueueItem, 0)
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending notifications: %w", err)
	}
	return items, nil
}

// MarkAsSent marks a queue item as delivered.
func (r *Repository) MarkAsSent(ctx context.Context, id string) error {
	query := `
		UPDATE notification_queue
		SET status = 'sent', attempts = attempts + 1, sent_at = NOW(), updated_at = NOW(), last_error = NULL
		WHERE id = $1
	`
	return r.exec(ctx, "mark as sent", query, id)
}

// MarkAsFailed marks a queue item as permanently failed.
func (r *Repository) MarkAsFailed(ctx context.Context, id string, cause error) error {
	query := `
		UPDATE notification_queue
		SET status = 'failed', attempts = attempts + 1, last_error = $2, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, "mark as failed", query, id, errorText(cause))
}

// MarkForRetry returns a queue item to pending with the next attempt time.
func (r *Repository) MarkForRetry(ctx context.Context, id string, cause error, nextAttempt time.Time) error {
	query := `
		UPDATE notification_queue
		SET status = 'pending', attempts = attempts + 1, last_error = $2, next_attempt_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, "mark for retry", query, id, errorText(cause), nextAttempt)
}

// RecoverStuckProcessing returns items left in processing by a crashed
// worker to pending.
func (r *Repository) RecoverStuckProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE notification_queue
		SET status = 'pending', updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1
	`
	result, err := r.db.Exec(ctx, query, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("recover stuck notifications: %w", err)
	}
	return result.RowsAffected(), nil
}

// GetQueueStats returns the number of queue items per status.
func (r *Repository) GetQueueStats(ctx context.Context) (*notifications.QueueStats, error) {
	query := `SELECT status, COUNT(*) FROM notification_queue GROUP BY status`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get queue stats: %w", err)
	}
	defer rows.Close()

	var stats notifications.QueueStats
	for rows.Next() {
		var status notifications.QueueStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan queue stats: %w", err)
		}
		switch status {
		case notifications.QueueStatusPending:
			stats.Pending = count
		case notifications.QueueStatusProcessing:
			stats.Processing = count
		case notifications.QueueStatusSent:
			stats.Sent = count
		case notifications.QueueStatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue stats: %w", err)
	}
	return &stats, nil
}

func (r *Repository) exec(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if result.RowsAffected() == 0 {
		return notifications.ErrItemNotFound
	}
	return nil
}

func scanQueueItem(row pgx.Row) (*notifications.QueueItem, error) {
	var item notifications.QueueItem
	var payload []byte
	err := row.Scan(
		&item.ID,
		&item.SLAID,
		&item.NoticeKind,
		&item.ChannelType,
		&item.Target,
		&payload,
		&item.Status,
		&item.Attempts,
		&item.MaxAttempts,
		&item.NextAttemptAt,
		&item.LastError,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.SentAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan queue item: %w", err)
	}
	if err := json.Unmarshal(payload, &item.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload of %s: %w", item.ID, err)
	}
	return &item, nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

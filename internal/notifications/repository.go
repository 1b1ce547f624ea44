// Package notifications delivers SLA breach and warning notices through a
// durable queue.
package notifications

import (
	"context"
	"time"
)

// Repository defines the interface for notification queue storage.
type Repository interface {
	EnqueueBatch(ctx context.Context, items []*QueueItem) error

	// FetchPending claims up to limit due items, moving them to processing.
	FetchPending(ctx context.Context, limit int) ([]*QueueItem, error)

	MarkAsSent(ctx context.Context, id string) error
	MarkAsFailed(ctx context.Context, id string, err error) error
	MarkForRetry(ctx context.Context, id string, err error, nextAttempt time.Time) error

	// RecoverStuckProcessing returns items stuck in processing for longer
	// than olderThan to pending.
	RecoverStuckProcessing(ctx context.Context, olderThan time.Duration) (int64, error)

	GetQueueStats(ctx context.Context) (*QueueStats, error)
}

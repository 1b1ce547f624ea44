package notifications

import (
	"time"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
)

// QueueStatus represents the status of a queue item.
type QueueStatus string

// Queue statuses.
const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSent       QueueStatus = "sent"
	QueueStatusFailed     QueueStatus = "failed"
)

// QueueItem is one notice addressed to one channel target. Attempts counts
// finished deliveries; the item is failed for good once it reaches
// MaxAttempts.
type QueueItem struct {
	ID            string
	SLAID         string
	NoticeKind    domain.NoticeKind
	ChannelType   domain.ChannelType
	Target        string
	Payload       NotificationPayload
	Status        QueueStatus
	Attempts      int
	MaxAttempts   int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SentAt        *time.Time
}

// lastAttempt reports whether the delivery in progress is the final one
// allowed.
func (i *QueueItem) lastAttempt() bool {
	return i.Attempts+1 >= i.MaxAttempts
}

// QueueStats holds the number of queue items per status.
type QueueStats struct {
	Pending    int
	Processing int
	Sent       int
	Failed     int
}

func (s *QueueStats) byStatus() map[QueueStatus]int {
	return map[QueueStatus]int{
		QueueStatusPending:    s.Pending,
		QueueStatusProcessing: s.Processing,
		QueueStatusSent:       s.Sent,
		QueueStatusFailed:     s.Failed,
	}
}

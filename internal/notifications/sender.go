package notifications

import (
	"context"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
)

// Notification is a rendered message for one recipient.
type Notification struct {
	To      string
	Subject string
	Body    string
	// Key groups messages about the same SLA where the transport supports it.
	Key string
}

// Sender delivers notifications over one channel type.
type Sender interface {
	Type() domain.ChannelType
	Send(ctx context.Context, notification Notification) error
}

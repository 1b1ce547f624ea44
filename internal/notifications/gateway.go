package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/ctxlog"
)

// GatewayConfig contains notification gateway configuration.
type GatewayConfig struct {
	Channels    []domain.NotificationChannel
	MaxAttempts int
	BaseURL     string
}

// Gateway accepts SLA notices and queues one delivery per configured
// channel. Delivery happens later in the Worker.
type Gateway struct {
	config GatewayConfig
	repo   Repository
}

// NewGateway creates a new notification gateway. Channels without a
// registered sender are dropped with a warning.
func NewGateway(config GatewayConfig, repo Repository, dispatcher *Dispatcher) *Gateway {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultWorkerConfig().MaxAttempts
	}

	channels := make([]domain.NotificationChannel, 0, len(config.Channels))
	for _, ch := range config.Channels {
		if dispatcher != nil && !dispatcher.Supports(ch.Type) {
			slog.Warn("no sender for notification channel, skipping", "type", ch.Type)
			continue
		}
		channels = append(channels, ch)
	}
	config.Channels = channels

	return &Gateway{config: config, repo: repo}
}

// Dispatch queues the notice for every configured channel. A nil error
// means the notice was accepted for delivery.
func (g *Gateway) Dispatch(ctx context.Context, notice domain.Notice) error {
	if notice.Kind != domain.NoticeBreach && notice.Kind != domain.NoticeWarning {
		return fmt.Errorf("%w: %q", ErrInvalidKind, notice.Kind)
	}
	if len(g.config.Channels) == 0 {
		ctxlog.FromContext(ctx).Debug("no notification channels, notice dropped",
			"sla_id", notice.SLAID,
			"kind", notice.Kind,
		)
		return nil
	}

	payload := NewPayload(notice, g.config.BaseURL)
	items := make([]*QueueItem, 0, len(g.config.Channels))
	for _, ch := range g.config.Channels {
		items = append(items, &QueueItem{
			SLAID:       notice.SLAID,
			NoticeKind:  notice.Kind,
			ChannelType: ch.Type,
			Target:      ch.Target,
			Payload:     payload,
			Status:      QueueStatusPending,
			MaxAttempts: g.config.MaxAttempts,
		})
	}

	if err := g.repo.EnqueueBatch(ctx, items); err != nil {
		return fmt.Errorf("enqueue notices: %w", err)
	}
	recordQueued(notice.Kind, len(items))

	ctxlog.FromContext(ctx).Info("sla notice queued",
		"sla_id", notice.SLAID,
		"incident_id", notice.IncidentID,
		"kind", notice.Kind,
		"deadline", notice.Deadline,
		"channels", len(items),
	)
	return nil
}

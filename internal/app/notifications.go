package app

import (
	"fmt"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/config"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications/email"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications/kafka"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications/mattermost"
	notificationspostgres "github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications/postgres"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications/telegram"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/sla"
)

// setupNotifications builds the gateway and its delivery worker. With
// notifications disabled the notifier is nil and notices are dropped.
func (a *App) setupNotifications() (sla.Notifier, error) {
	cfg := a.config.Notifications

	a.logger.Info("notifications configured",
		"enabled", cfg.Enabled,
		"channels", len(cfg.Channels),
		"email_enabled", cfg.Email.Enabled,
		"telegram_enabled", cfg.Telegram.Enabled,
		"kafka_enabled", cfg.Kafka.Enabled,
	)
	if !cfg.Enabled {
		return nil, nil
	}

	dispatcher, err := a.newDispatcher(cfg)
	if err != nil {
		return nil, err
	}

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}

	repo := notificationspostgres.NewRepository(a.db)
	a.notificationWorker = notifications.NewWorker(notifications.WorkerConfig{
		BatchSize:         cfg.Worker.BatchSize,
		PollInterval:      cfg.Worker.PollInterval,
		NumWorkers:        cfg.Worker.NumWorkers,
		SendTimeout:       cfg.Worker.SendTimeout,
		StuckAfter:        cfg.Worker.StuckAfter,
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialBackoff:    cfg.Retry.InitialBackoff,
		MaxBackoff:        cfg.Retry.MaxBackoff,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	}, repo, dispatcher, renderer)

	return notifications.NewGateway(notifications.GatewayConfig{
		Channels:    cfg.Channels,
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseURL:     cfg.BaseURL,
	}, repo, dispatcher), nil
}

// newDispatcher creates one sender per channel type. Mattermost needs no
// credentials since the webhook URL is the channel target.
func (a *App) newDispatcher(cfg config.NotificationsConfig) (*notifications.Dispatcher, error) {
	emailSender, err := email.NewSender(email.Config{
		Enabled:      cfg.Email.Enabled,
		SMTPHost:     cfg.Email.SMTPHost,
		SMTPPort:     cfg.Email.SMTPPort,
		SMTPUser:     cfg.Email.SMTPUser,
		SMTPPassword: cfg.Email.SMTPPassword,
		FromAddress:  cfg.Email.FromAddress,
		BatchSize:    cfg.Email.BatchSize,
		Timeout:      cfg.Email.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create email sender: %w", err)
	}

	telegramSender, err := telegram.NewSender(telegram.Config{
		Enabled:   cfg.Telegram.Enabled,
		BotToken:  cfg.Telegram.BotToken,
		RateLimit: cfg.Telegram.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram sender: %w", err)
	}

	mattermostSender := mattermost.NewSender(mattermost.Config{
		DefaultUsername: cfg.Mattermost.Username,
		DefaultIconURL:  cfg.Mattermost.IconURL,
		Timeout:         cfg.Mattermost.Timeout,
	})

	a.kafkaSender, err = kafka.NewSender(kafka.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		WriteTimeout: cfg.Kafka.WriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka sender: %w", err)
	}

	return notifications.NewDispatcher(emailSender, telegramSender, mattermostSender, a.kafkaSender), nil
}

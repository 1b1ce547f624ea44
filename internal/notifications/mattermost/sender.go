// Package mattermost posts SLA notices to Mattermost incoming webhooks.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultUsername = "SLA Tracker"
	maxErrorBody    = 1 << 10
)

// Config holds Mattermost sender configuration.
// The webhook URL is the channel target, so there is no Enabled flag.
type Config struct {
	DefaultUsername string
	DefaultIconURL  string
	Timeout         time.Duration
}

// Sender posts notifications to incoming webhooks.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new Mattermost sender.
func NewSender(config Config) *Sender {
	if config.DefaultUsername == "" {
		config.DefaultUsername = defaultUsername
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypeMattermost
}

type webhookPayload struct {
	Text     string            `json:"text"`
	Username string            `json:"username,omitempty"`
	IconURL  string            `json:"icon_url,omitempty"`
	Channel  string            `json:"channel,omitempty"`
	Props    map[string]string `json:"props,omitempty"`
}

// Send posts the notification to the webhook in notification.To. A URL
// fragment overrides the webhook's default channel, as in
// https://mm.example.com/hooks/abc#sla-alerts.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	webhookURL, channel := splitTarget(notification.To)
	if webhookURL == "" {
		return notifications.NewNonRetryableError(errors.New("mattermost: webhook URL is empty"))
	}

	body, err := json.Marshal(s.payload(notification, channel))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return notifications.NewNonRetryableError(fmt.Errorf("mattermost: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return notifications.NewRetryableError(fmt.Errorf("mattermost: send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp); err != nil {
		return err
	}

	slog.Debug("mattermost message sent",
		"webhook", redactWebhook(webhookURL),
		"sla_id", notification.Key,
	)
	return nil
}

func (s *Sender) payload(notification notifications.Notification, channel string) webhookPayload {
	text := notification.Body
	if notification.Subject != "" {
		text = "#### " + notification.Subject + "\n\n" + notification.Body
	}

	p := webhookPayload{
		Text:     text,
		Username: s.config.DefaultUsername,
		IconURL:  s.config.DefaultIconURL,
		Channel:  channel,
	}
	if notification.Key != "" {
		p.Props = map[string]string{"sla_id": notification.Key}
	}
	return p
}

func splitTarget(target string) (webhookURL, channel string) {
	webhookURL, channel, _ = strings.Cut(strings.TrimSpace(target), "#")
	return webhookURL, channel
}

// StatusError is a webhook response other than 200 OK.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("mattermost webhook returned %d", e.Code)
	}
	return fmt.Sprintf("mattermost webhook returned %d: %s", e.Code, e.Body)
}

// IsRetryable reports whether the webhook may accept the message later.
// Rejected payloads and unknown or disabled hooks are final.
func (e *StatusError) IsRetryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// redactWebhook keeps the host of a webhook URL and drops the hook key.
func redactWebhook(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "invalid-url"
	}
	return u.Scheme + "://" + u.Host + "/hooks/***"
}

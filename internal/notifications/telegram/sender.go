// Package telegram provides telegram notification sending via the Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications"
)

const (
	defaultAPIURL     = "https://api.telegram.org/bot%s/sendMessage"
	defaultRateLimit  = 25.0
	defaultTimeout    = 10 * time.Second
	defaultRetryAfter = time.Second
)

// Config holds telegram sender configuration.
type Config struct {
	Enabled  bool
	BotToken string
	// RateLimit is the number of messages per second across all chats.
	RateLimit float64
}

// Sender implements telegram notification sender.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	apiURL     string
}

// NewSender creates a new telegram sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled {
		if config.BotToken == "" {
			return nil, errors.New("telegram sender: bot token is required when enabled")
		}
	}

	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}

	slog.Info("telegram sender configured",
		"enabled", config.Enabled,
		"rate_limit", config.RateLimit,
	)

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		apiURL:     defaultAPIURL,
	}, nil
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypeTelegram
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// Send sends a telegram notification. notification.To contains the chat ID.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	if !s.config.Enabled {
		slog.Debug("telegram sender disabled, skipping",
			"to", notification.To,
		)
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:                notification.To,
		Text:                  notification.Body,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf(s.apiURL, s.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(resp, notification.To)
}

func (s *Sender) handleResponse(resp *http.Response, chatID string) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RetryableError{Message: fmt.Sprintf("read response: %v", err)}
	}

	var result telegramResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		if resp.StatusCode >= 500 {
			return &RetryableError{Code: resp.StatusCode, Message: string(raw)}
		}
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	if result.OK {
		slog.Debug("telegram message sent", "chat_id", chatID)
		return nil
	}

	code := result.ErrorCode
	if code == 0 {
		code = resp.StatusCode
	}

	switch {
	case code == http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		if result.Parameters != nil && result.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(result.Parameters.RetryAfter) * time.Second
		}
		return &RateLimitError{RetryAfter: retryAfter, Message: result.Description}

	case code == http.StatusUnauthorized:
		return &PermanentError{Code: code, Message: "invalid bot token"}

	case code == http.StatusBadRequest, code == http.StatusForbidden, code == http.StatusNotFound:
		return &PermanentError{Code: code, Message: result.Description}

	case code >= 500:
		return &RetryableError{Code: code, Message: result.Description}

	default:
		return &PermanentError{Code: code, Message: result.Description}
	}
}

// RateLimitError is returned when telegram asks the client to slow down.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("telegram rate limited, retry after %s: %s", e.RetryAfter, e.Message)
}

// IsRetryable returns true as rate limits are temporary.
func (e *RateLimitError) IsRetryable() bool { return true }

// RetryDelay is the wait telegram asked for before the next attempt.
func (e *RateLimitError) RetryDelay() time.Duration { return e.RetryAfter }

// PermanentError indicates a permanent error that should not be retried.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsRetryable returns false as permanent errors should not be retried.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary error that can be retried.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("telegram error: %s", e.Message)
}

// IsRetryable returns true as these errors are temporary.
func (e *RetryableError) IsRetryable() bool { return true }

// IsRetryable reports whether err is a telegram error worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// GetRetryAfter returns the delay requested by telegram, zero if none.
func GetRetryAfter(err error) time.Duration {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.RetryAfter
	}
	return 0
}

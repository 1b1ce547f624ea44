// Package kafka publishes SLA notices to Kafka topics.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications"
)

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("kafka sender is closed")

// Config holds kafka sender configuration.
type Config struct {
	Enabled      bool
	Brokers      []string
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sender implements notification sending to Kafka. notification.To is the
// topic and the message key is the SLA ID, so notices about one SLA stay
// ordered within a partition.
type Sender struct {
	config Config
	writer messageWriter

	mu     sync.Mutex
	closed bool
}

// NewSender creates a new kafka sender.
// Returns error if enabled but no brokers are configured.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled && len(config.Brokers) == 0 {
		return nil, errors.New("kafka sender: brokers are required when enabled")
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 10 * time.Second
	}

	slog.Info("kafka sender configured",
		"enabled", config.Enabled,
		"brokers", config.Brokers,
	)

	s := &Sender{config: config}
	if config.Enabled {
		s.writer = &kafka.Writer{
			Addr:         kafka.TCP(config.Brokers...),
			Balancer:     &kafka.Hash{},
			Compression:  kafka.Gzip,
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: config.WriteTimeout,
		}
	}
	return s, nil
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypeKafka
}

// Send publishes the notification body to the topic in notification.To.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	if !s.config.Enabled {
		slog.Debug("kafka sender disabled, skipping", "topic", notification.To)
		return nil
	}
	if notification.To == "" {
		return notifications.NewNonRetryableError(errors.New("kafka sender: topic is empty"))
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return notifications.NewNonRetryableError(ErrSenderClosed)
	}

	msg := kafka.Message{
		Topic: notification.To,
		Key:   []byte(notification.Key),
		Value: []byte(notification.Body),
		Headers: []kafka.Header{
			{Key: "subject", Value: []byte(notification.Subject)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return notifications.NewRetryableError(fmt.Errorf("write kafka message: %w", err))
	}

	slog.Debug("kafka message published", "topic", notification.To, "key", notification.Key)
	return nil
}

// Close flushes and closes the underlying writer.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.writer == nil {
		s.closed = true
		return nil
	}
	s.closed = true
	return s.writer.Close()
}

// Package email delivers SLA notices over SMTP.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications"
)

const (
	defaultPort      = 587
	defaultBatchSize = 50
	defaultTimeout   = 30 * time.Second
)

var errNoAcceptedRecipients = errors.New("smtp server accepted no recipients")

// Config holds email sender configuration.
type Config struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	FromAddress  string
	BatchSize    int
	// Timeout bounds one SMTP session, dial included.
	Timeout time.Duration
}

// Sender delivers notifications to mailboxes. Recipients go into the
// envelope only, so every message is effectively BCC.
type Sender struct {
	config Config
	from   *mail.Address
	auth   smtp.Auth
	now    func() time.Time
}

// NewSender creates an email sender. An enabled sender needs a host and a
// parseable from address.
func NewSender(config Config) (*Sender, error) {
	if config.SMTPPort == 0 {
		config.SMTPPort = defaultPort
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	s := &Sender{config: config, now: time.Now}
	if !config.Enabled {
		return s, nil
	}

	if config.SMTPHost == "" {
		return nil, errors.New("email sender: SMTP host is required when enabled")
	}
	if config.FromAddress == "" {
		return nil, errors.New("email sender: from address is required when enabled")
	}
	from, err := mail.ParseAddress(config.FromAddress)
	if err != nil {
		return nil, fmt.Errorf("email sender: invalid from address: %w", err)
	}
	s.from = from

	if config.SMTPUser != "" && config.SMTPPassword != "" {
		s.auth = smtp.PlainAuth("", config.SMTPUser, config.SMTPPassword, config.SMTPHost)
	}

	slog.Info("email sender configured",
		"smtp_host", config.SMTPHost,
		"smtp_port", config.SMTPPort,
		"from", from.Address,
		"batch_size", config.BatchSize,
		"auth", s.auth != nil,
	)
	return s, nil
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypeEmail
}

// Send mails the notification to every address in notification.To, a
// comma separated list. Large lists are split into BatchSize sessions; the
// returned error reflects the last failed batch.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	if !s.config.Enabled {
		slog.Warn("email sender disabled, skipping send", "sla_id", notification.Key)
		return nil
	}

	recipients, err := parseRecipients(notification.To)
	if err != nil {
		return notifications.NewNonRetryableError(err)
	}

	msg := s.buildMessage(notification)

	var lastErr error
	for i, batch := range splitBatches(recipients, s.config.BatchSize) {
		if err := s.deliver(ctx, batch, msg); err != nil {
			slog.Error("email batch failed",
				"sla_id", notification.Key,
				"batch", i,
				"batch_size", len(batch),
				"error", err,
			)
			lastErr = err
		}
	}
	if lastErr == nil {
		return nil
	}
	return classify(lastErr)
}

// parseRecipients accepts RFC 5322 address lists and returns the bare
// addresses.
func parseRecipients(to string) ([]string, error) {
	if strings.TrimSpace(to) == "" {
		return nil, errors.New("email sender: no recipients")
	}
	list, err := mail.ParseAddressList(to)
	if err != nil {
		return nil, fmt.Errorf("email sender: parse recipients: %w", err)
	}
	if len(list) == 0 {
		return nil, errors.New("email sender: no recipients")
	}
	addresses := make([]string, 0, len(list))
	for _, a := range list {
		addresses = append(addresses, a.Address)
	}
	return addresses, nil
}

func splitBatches(recipients []string, size int) [][]string {
	if size <= 0 {
		size = len(recipients)
	}
	var batches [][]string
	for i := 0; i < len(recipients); i += size {
		batches = append(batches, recipients[i:min(i+size, len(recipients))])
	}
	return batches
}

func (s *Sender) buildMessage(notification notifications.Notification) []byte {
	var b strings.Builder

	header := func(key, value string) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	header("From", s.from.String())
	header("To", "undisclosed-recipients:;")
	header("Subject", mime.QEncoding.Encode("utf-8", notification.Subject))
	header("Date", s.now().UTC().Format(time.RFC1123Z))
	header("Message-ID", "<"+uuid.NewString()+"@"+s.config.SMTPHost+">")
	if notification.Key != "" {
		header("X-SLA-ID", notification.Key)
	}
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(notification.Body)

	return []byte(b.String())
}

// deliver runs one SMTP session for a batch. Recipients the server
// refuses are skipped as long as at least one is accepted.
func (s *Sender) deliver(ctx context.Context, recipients []string, msg []byte) error {
	addr := net.JoinHostPort(s.config.SMTPHost, strconv.Itoa(s.config.SMTPPort))

	dialer := &net.Dialer{Timeout: s.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(s.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: s.config.SMTPHost, MinVersion: tls.VersionTLS12}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.auth != nil {
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(s.from.Address); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}

	accepted := 0
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			slog.Warn("smtp recipient rejected", "error", err)
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return errNoAcceptedRecipients
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("end data: %w", err)
	}
	return client.Quit()
}

// classify marks a delivery error for the queue worker. Transient SMTP
// replies (4xx) and network failures are retried; permanent replies and
// refused recipients are not.
func classify(err error) error {
	if IsRetryable(err) {
		return notifications.NewRetryableError(err)
	}
	return notifications.NewNonRetryableError(err)
}

// IsRetryable reports whether a delivery error is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, errNoAcceptedRecipients) {
		return false
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code >= 400 && protoErr.Code < 500
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

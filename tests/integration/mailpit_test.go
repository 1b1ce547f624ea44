//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// mailbox reads what the senders delivered to Mailpit through its REST API.
type mailbox struct {
	baseURL string
	client  *http.Client
}

func newMailbox(host string, port int) *mailbox {
	return &mailbox{
		baseURL: fmt.Sprintf("http://%s:%d/api/v1", host, port),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type mailAddress struct {
	Name    string `json:"Name"`
	Address string `json:"Address"`
}

type mailMessage struct {
	ID      string        `json:"ID"`
	From    mailAddress   `json:"From"`
	To      []mailAddress `json:"To"`
	Bcc     []mailAddress `json:"Bcc"`
	Subject string        `json:"Subject"`
	Text    string        `json:"Text"`
}

// Recipients returns every delivered address. The sender leaves the To
// header undisclosed, so Mailpit reports envelope recipients as Bcc.
func (m *mailMessage) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Bcc))
	for _, a := range append(append([]mailAddress{}, m.To...), m.Bcc...) {
		out = append(out, a.Address)
	}
	return out
}

func (b *mailbox) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Summaries lists the inbox, newest first. Bodies are not included.
func (b *mailbox) Summaries(ctx context.Context) ([]mailMessage, error) {
	var page struct {
		Messages []mailMessage `json:"messages"`
	}
	err := b.do(ctx, http.MethodGet, "/messages?limit=200", &page)
	return page.Messages, err
}

// Message fetches one message with its plain text body.
func (b *mailbox) Message(ctx context.Context, id string) (*mailMessage, error) {
	var msg mailMessage
	if err := b.do(ctx, http.MethodGet, "/message/"+id, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Headers returns the raw headers of one message.
func (b *mailbox) Headers(ctx context.Context, id string) (map[string][]string, error) {
	headers := map[string][]string{}
	err := b.do(ctx, http.MethodGet, "/message/"+id+"/headers", &headers)
	return headers, err
}

// Clear deletes every message.
func (b *mailbox) Clear(ctx context.Context) error {
	return b.do(ctx, http.MethodDelete, "/messages", nil)
}

// clearMailbox empties Mailpit before a test that inspects it.
func clearMailbox(t *testing.T) {
	t.Helper()
	require.NoError(t, mailpit.Clear(context.Background()))
}

// waitForSubject polls Mailpit until a message whose subject contains
// needle arrives and returns it with its body.
func waitForSubject(t *testing.T, needle string, timeout time.Duration) *mailMessage {
	t.Helper()
	ctx := context.Background()

	var id string
	require.Eventually(t, func() bool {
		messages, err := mailpit.Summaries(ctx)
		if err != nil {
			return false
		}
		for _, m := range messages {
			if strings.Contains(m.Subject, needle) {
				id = m.ID
				return true
			}
		}
		return false
	}, timeout, 100*time.Millisecond, "no email with %q in subject", needle)

	msg, err := mailpit.Message(ctx, id)
	require.NoError(t, err)
	return msg
}

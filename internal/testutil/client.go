// Package testutil holds helpers shared by the integration suite.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/jwtauth"
)

// Client calls the SLA API the way an operator tool would: JSON bodies,
// bearer tokens, and optionally contract checks on every JSON response.
type Client struct {
	BaseURL string
	Token   string
	// Auth signs tokens for AuthenticateAs.
	Auth jwtauth.Config

	http      *http.Client
	validator *OpenAPIValidator
	t         *testing.T
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithValidator checks responses against the OpenAPI contract.
func WithValidator(v *OpenAPIValidator) ClientOption {
	return func(c *Client) { c.validator = v }
}

// WithAuth sets the signing config used by AuthenticateAs.
func WithAuth(cfg jwtauth.Config) ClientOption {
	return func(c *Client) { c.Auth = cfg }
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetT points contract failures at t. Subtests sharing a client call it
// so failures land on the right test.
func (c *Client) SetT(t *testing.T) {
	c.t = t
}

// AuthenticateAs issues a one hour token for subject with role.
func (c *Client) AuthenticateAs(t *testing.T, subject string, role domain.Role) {
	t.Helper()
	c.t = t

	token, err := jwtauth.Issue(c.Auth, subject, role, time.Hour)
	if err != nil {
		t.Fatalf("issue %s token: %v", role, err)
	}
	c.Token = token
}

// AuthenticateAsAdmin authenticates as an admin.
func (c *Client) AuthenticateAsAdmin(t *testing.T) {
	t.Helper()
	c.AuthenticateAs(t, "admin@example.com", domain.RoleAdmin)
}

// AuthenticateAsOperator authenticates as an operator.
func (c *Client) AuthenticateAsOperator(t *testing.T) {
	t.Helper()
	c.AuthenticateAs(t, "operator@example.com", domain.RoleOperator)
}

// AuthenticateAsUser authenticates as a read-only user.
func (c *Client) AuthenticateAsUser(t *testing.T) {
	t.Helper()
	c.AuthenticateAs(t, "user@example.com", domain.RoleUser)
}

// GET performs a GET request.
func (c *Client) GET(path string) (*http.Response, error) {
	return c.do(http.MethodGet, path, nil)
}

// POST sends body as JSON. A nil body sends no payload.
func (c *Client) POST(path string, body interface{}) (*http.Response, error) {
	return c.do(http.MethodPost, path, body)
}

func (c *Client) do(method, path string, body interface{}) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if c.validator != nil && c.t != nil {
		c.validator.CheckResponse(c.t, method, req.URL.Path, resp)
	}
	return resp, nil
}

// DecodeJSON decodes and closes the response body.
func DecodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %d response: %v", resp.StatusCode, err)
	}
}

// ReadBody returns the response body as a string and closes it.
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

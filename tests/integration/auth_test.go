//go:build integration

package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/jwtauth"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/testutil"
)

func TestAuth_RejectsMissingAndInvalidTokens(t *testing.T) {
	path := "/api/v1/slas/" + uuid.NewString()

	t.Run("no token", func(t *testing.T) {
		client := newTestClient(t)
		resp, err := client.GET(path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var result errorEnvelope
		testutil.DecodeJSON(t, resp, &result)
		assert.Equal(t, "missing authorization header", result.Error.Message)
	})

	t.Run("foreign signing key", func(t *testing.T) {
		token, err := jwtauth.Issue(jwtauth.Config{
			SecretKey: "some-other-secret",
			Issuer:    testAuth.Issuer,
		}, "intruder@example.com", domain.RoleAdmin, time.Hour)
		require.NoError(t, err)

		client := newTestClient(t)
		client.Token = token
		resp, err := client.GET(path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := jwtauth.Issue(testAuth, "admin@example.com", domain.RoleAdmin, -time.Minute)
		require.NoError(t, err)

		client := newTestClient(t)
		client.Token = token
		resp, err := client.GET(path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestAuth_RoleRequirements(t *testing.T) {
	operator := newTestClient(t)
	operator.AuthenticateAsOperator(t)
	created := createTestSLA(t, operator, newIncidentID("rbac"), domain.PriorityMedium, time.Time{})

	tests := []struct {
		name       string
		role       domain.Role
		method     string
		path       string
		body       interface{}
		wantStatus int
	}{
		{name: "user reads", role: domain.RoleUser, method: http.MethodGet, path: "/api/v1/slas/" + created.ID, wantStatus: http.StatusOK},
		{name: "user cannot pause", role: domain.RoleUser, method: http.MethodPost, path: "/api/v1/slas/" + created.ID + "/pause", wantStatus: http.StatusForbidden},
		{name: "user cannot create", role: domain.RoleUser, method: http.MethodPost, path: "/api/v1/slas", body: map[string]string{"incident_id": newIncidentID("rbac"), "priority": "low"}, wantStatus: http.StatusForbidden},
		{name: "operator cannot scan", role: domain.RoleOperator, method: http.MethodPost, path: "/api/v1/scans", wantStatus: http.StatusForbidden},
		{name: "admin pauses", role: domain.RoleAdmin, method: http.MethodPost, path: "/api/v1/slas/" + created.ID + "/pause", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t)
			client.AuthenticateAs(t, string(tt.role)+"@example.com", tt.role)

			var (
				resp *http.Response
				err  error
			)
			if tt.method == http.MethodGet {
				resp, err = client.GET(tt.path)
			} else {
				resp, err = client.POST(tt.path, tt.body)
			}
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

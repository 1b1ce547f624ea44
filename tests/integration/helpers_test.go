//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/sla"
	slapostgres "github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/sla/postgres"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/testutil"
)

type slaEnvelope struct {
	Data sla.SLAResponse `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// newIncidentID returns an incident ID that no other test uses.
func newIncidentID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// createTestSLA starts an SLA through the API. A zero createdAt means now.
func createTestSLA(t *testing.T, client *testutil.Client, incidentID string, priority domain.Priority, createdAt time.Time) sla.SLAResponse {
	t.Helper()

	payload := map[string]interface{}{
		"incident_id": incidentID,
		"priority":    string(priority),
	}
	if !createdAt.IsZero() {
		payload["created_at"] = createdAt.UTC().Format(time.RFC3339Nano)
	}

	resp, err := client.POST("/api/v1/slas", payload)
	require.NoError(t, err)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create sla: status=%d body=%s", resp.StatusCode, testutil.ReadBody(t, resp))
	}

	var result slaEnvelope
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

func getTestSLA(t *testing.T, client *testutil.Client, id string) sla.SLAResponse {
	t.Helper()

	resp, err := client.GET("/api/v1/slas/" + id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result slaEnvelope
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

// insertTestSLA stores an SLA directly, bypassing the API.
func insertTestSLA(t *testing.T, priority domain.Priority, createdAt time.Time) *domain.SLA {
	t.Helper()

	item, err := sla.DefaultPolicy().NewSLA(newIncidentID("repo"), priority, createdAt)
	require.NoError(t, err)
	require.NoError(t, slapostgres.NewRepository(testDB).Create(context.Background(), item))
	return item
}

func timePtr(t time.Time) *time.Time {
	return &t
}

//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications"
	notificationspostgres "github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications/postgres"
)

func newQueueItems(s *domain.SLA, channels ...domain.NotificationChannel) []*notifications.QueueItem {
	payload := notifications.NotificationPayload{
		Kind:              domain.NoticeBreach,
		SLAID:             s.ID,
		IncidentID:        s.IncidentID,
		Priority:          s.Priority,
		Deadline:          domain.DeadlineResponse,
		EffectiveDeadline: s.ResponseDeadline,
		Remaining:         -5 * time.Minute,
		DetectedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}

	items := make([]*notifications.QueueItem, 0, len(channels))
	for _, ch := range channels {
		items = append(items, &notifications.QueueItem{
			SLAID:       s.ID,
			NoticeKind:  domain.NoticeBreach,
			ChannelType: ch.Type,
			Target:      ch.Target,
			Payload:     payload,
			MaxAttempts: 3,
		})
	}
	return items
}

// fetchFor claims pending items and keeps the ones that belong to slaID.
func fetchFor(t *testing.T, repo *notificationspostgres.Repository, slaID string) []*notifications.QueueItem {
	t.Helper()

	items, err := repo.FetchPending(context.Background(), 100)
	require.NoError(t, err)

	var result []*notifications.QueueItem
	for _, item := range items {
		if item.SLAID == slaID {
			result = append(result, item)
		}
	}
	return result
}

func TestNotificationQueue_EnqueueAndFetch(t *testing.T) {
	ctx := context.Background()
	repo := notificationspostgres.NewRepository(testDB)
	s := insertTestSLA(t, domain.PriorityCritical, time.Now().Add(-2*time.Hour))

	items := newQueueItems(s,
		domain.NotificationChannel{Type: domain.ChannelTypeEmail, Target: "oncall@example.com"},
		domain.NotificationChannel{Type: domain.ChannelTypeKafka, Target: "sla-notices"},
	)
	require.NoError(t, repo.EnqueueBatch(ctx, items))
	for _, item := range items {
		assert.NotEmpty(t, item.ID)
		assert.Equal(t, notifications.QueueStatusPending, item.Status)
		assert.False(t, item.NextAttemptAt.IsZero())
	}

	fetched := fetchFor(t, repo, s.ID)
	require.Len(t, fetched, 2)
	for _, item := range fetched {
		assert.Equal(t, notifications.QueueStatusProcessing, item.Status)
		assert.Zero(t, item.Attempts, "fetching does not count as an attempt")
		assert.Equal(t, s.IncidentID, item.Payload.IncidentID)
		assert.Equal(t, domain.DeadlineResponse, item.Payload.Deadline)
		assert.Equal(t, -5*time.Minute, item.Payload.Remaining)
	}

	t.Run("claimed items are not fetched again", func(t *testing.T) {
		assert.Empty(t, fetchFor(t, repo, s.ID))
	})

	t.Run("sent item", func(t *testing.T) {
		require.NoError(t, repo.MarkAsSent(ctx, fetched[0].ID))

		var status string
		var attempts int
		var sentAt *time.Time
		err := testDB.QueryRow(ctx,
			`SELECT status, attempts, sent_at FROM notification_queue WHERE id = $1`, fetched[0].ID,
		).Scan(&status, &attempts, &sentAt)
		require.NoError(t, err)
		assert.Equal(t, "sent", status)
		assert.Equal(t, 1, attempts)
		assert.NotNil(t, sentAt)
	})

	t.Run("failed item", func(t *testing.T) {
		require.NoError(t, repo.MarkAsFailed(ctx, fetched[1].ID, errors.New("broker unavailable")))

		var status, lastError string
		err := testDB.QueryRow(ctx,
			`SELECT status, last_error FROM notification_queue WHERE id = $1`, fetched[1].ID,
		).Scan(&status, &lastError)
		require.NoError(t, err)
		assert.Equal(t, "failed", status)
		assert.Equal(t, "broker unavailable", lastError)
	})

	t.Run("unknown item", func(t *testing.T) {
		assert.ErrorIs(t, repo.MarkAsSent(ctx, uuid.NewString()), notifications.ErrItemNotFound)
	})
}

func TestNotificationQueue_RetrySchedule(t *testing.T) {
	ctx := context.Background()
	repo := notificationspostgres.NewRepository(testDB)
	s := insertTestSLA(t, domain.PriorityHigh, time.Now().Add(-5*time.Hour))

	items := newQueueItems(s, domain.NotificationChannel{Type: domain.ChannelTypeTelegram, Target: "12345"})
	require.NoError(t, repo.EnqueueBatch(ctx, items))

	fetched := fetchFor(t, repo, s.ID)
	require.Len(t, fetched, 1)

	require.NoError(t, repo.MarkForRetry(ctx, fetched[0].ID, errors.New("rate limited"), time.Now().Add(time.Hour)))
	assert.Empty(t, fetchFor(t, repo, s.ID), "retry is not due yet")

	require.NoError(t, repo.MarkForRetry(ctx, fetched[0].ID, errors.New("rate limited"), time.Now().Add(-time.Second)))
	due := fetchFor(t, repo, s.ID)
	require.Len(t, due, 1)
	assert.Equal(t, 2, due[0].Attempts)
	assert.Equal(t, "rate limited", due[0].LastError)

	require.NoError(t, repo.MarkAsSent(ctx, due[0].ID))
}

func TestNotificationQueue_RecoverStuck(t *testing.T) {
	ctx := context.Background()
	repo := notificationspostgres.NewRepository(testDB)
	s := insertTestSLA(t, domain.PriorityMedium, time.Now().Add(-9*time.Hour))

	items := newQueueItems(s, domain.NotificationChannel{Type: domain.ChannelTypeMattermost, Target: "https://mm.example.com/hooks/x"})
	require.NoError(t, repo.EnqueueBatch(ctx, items))
	require.Len(t, fetchFor(t, repo, s.ID), 1)

	_, err := testDB.Exec(ctx,
		`UPDATE notification_queue SET updated_at = NOW() - INTERVAL '1 hour' WHERE id = $1`, items[0].ID)
	require.NoError(t, err)

	recovered, err := repo.RecoverStuckProcessing(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, recovered, int64(1))

	again := fetchFor(t, repo, s.ID)
	require.Len(t, again, 1)
	assert.Equal(t, items[0].ID, again[0].ID)
	require.NoError(t, repo.MarkAsSent(ctx, again[0].ID))
}

func TestNotificationQueue_Stats(t *testing.T) {
	ctx := context.Background()
	repo := notificationspostgres.NewRepository(testDB)

	before, err := repo.GetQueueStats(ctx)
	require.NoError(t, err)

	s := insertTestSLA(t, domain.PriorityLow, time.Now().Add(-time.Hour))
	items := newQueueItems(s,
		domain.NotificationChannel{Type: domain.ChannelTypeEmail, Target: "a@example.com"},
		domain.NotificationChannel{Type: domain.ChannelTypeEmail, Target: "b@example.com"},
	)
	require.NoError(t, repo.EnqueueBatch(ctx, items))

	after, err := repo.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Pending+2, after.Pending)

	fetched := fetchFor(t, repo, s.ID)
	require.Len(t, fetched, 2)
	for _, item := range fetched {
		require.NoError(t, repo.MarkAsSent(ctx, item.ID))
	}

	final, err := repo.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Pending, final.Pending)
	assert.Equal(t, before.Sent+2, final.Sent)
}

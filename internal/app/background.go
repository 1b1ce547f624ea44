package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications"
	notificationspostgres "github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications/postgres"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/metrics"
)

const (
	poolStatsInterval  = 15 * time.Second
	queueStatsInterval = 15 * time.Second
	slaStatsInterval   = 30 * time.Second
)

func (a *App) startBackground(ctx context.Context) {
	go every(ctx, poolStatsInterval, func(context.Context) {
		metrics.RecordPoolStats(a.db.Stat())
	})
	go every(ctx, slaStatsInterval, a.collectSLAMetrics)

	if a.config.Scanner.Enabled {
		a.scanner.Start(ctx)
	} else {
		slog.Warn("sla scanner is disabled: breaches are only detected by manual scans")
	}

	if a.notificationWorker != nil {
		a.notificationWorker.Start(ctx)
		repo := notificationspostgres.NewRepository(a.db)
		go every(ctx, queueStatsInterval, func(ctx context.Context) {
			collectQueueMetrics(ctx, repo)
		})
	}
}

// every runs fn now and then on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		fn(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func collectQueueMetrics(ctx context.Context, repo notifications.Repository) {
	stats, err := repo.GetQueueStats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("failed to get queue stats", "error", err)
		}
		return
	}
	notifications.RecordQueueStats(stats)
}

func (a *App) collectSLAMetrics(ctx context.Context) {
	counts, err := a.slaRepo.CountByStatus(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("failed to count slas by status", "error", err)
		}
		return
	}
	metrics.RecordSLAStatusCounts(counts)
}

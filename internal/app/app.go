// Package app wires configuration, storage, the HTTP API and the
// background loops into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/config"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/notifications/kafka"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/postgres"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/sla"
	slapostgres "github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/sla/postgres"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/migrations"
)

// App owns every long lived resource of the process.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	redis         *redis.Client
	server        *http.Server
	metricsServer *http.Server
	bgCancel      context.CancelFunc

	slaRepo            *slapostgres.Repository
	scanner            *sla.Scanner
	notificationWorker *notifications.Worker
	kafkaSender        *kafka.Sender
}

// New connects to PostgreSQL, applies migrations when enabled, builds the
// router and starts the background loops.
func New(cfg *config.Config) (*App, error) {
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(cfg.Database.URL, migrations.FS); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	a := &App{config: cfg, logger: logger, db: db}

	router, err := a.setupRouter()
	if err != nil {
		if cerr := errors.Join(a.closeResources()...); cerr != nil {
			logger.Warn("failed to release resources", "error", cerr)
		}
		return nil, fmt.Errorf("setup router: %w", err)
	}

	srv := cfg.Server
	a.server = &http.Server{
		Addr:              net.JoinHostPort(srv.Host, srv.Port),
		Handler:           router,
		ReadTimeout:       srv.ReadTimeout,
		ReadHeaderTimeout: srv.ReadHeaderTimeout,
		WriteTimeout:      srv.WriteTimeout,
		IdleTimeout:       srv.IdleTimeout,
	}

	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())
	a.metricsServer = &http.Server{
		Addr:              net.JoinHostPort(srv.Host, srv.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var bgCtx context.Context
	bgCtx, a.bgCancel = context.WithCancel(context.Background())
	a.startBackground(bgCtx)

	return a, nil
}

// Run serves the API until Shutdown. The metrics server runs alongside;
// its failure is logged but does not stop the API.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server", "addr", a.metricsServer.Addr)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server", "addr", a.server.Addr)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the background loops first so no scan or delivery
// outlives the pool, then drains both servers and closes connections.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	if a.scanner != nil && a.config.Scanner.Enabled {
		a.scanner.Stop()
	}
	if a.notificationWorker != nil {
		a.notificationWorker.Stop()
	}
	a.bgCancel()

	var g errgroup.Group
	g.Go(func() error {
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	})
	err := g.Wait()

	return errors.Join(append([]error{err}, a.closeResources()...)...)
}

func (a *App) closeResources() []error {
	var errs []error
	if a.kafkaSender != nil {
		if err := a.kafkaSender.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka sender: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	a.db.Close()
	return errs
}

// Router returns the API handler. Integration tests serve it with httptest.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Scanner returns the breach scanner so tests can run scans with a fixed
// clock.
func (a *App) Scanner() *sla.Scanner {
	return a.scanner
}

// NotificationWorker returns nil when notifications are disabled.
func (a *App) NotificationWorker() *notifications.Worker {
	return a.notificationWorker
}

// Command sla-tracker runs the SLA clock and breach detection service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/app"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/config"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/version"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("sla-tracker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.PathFromEnv(), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	application, err := app.New(cfg)
	if err != nil {
		return err
	}

	build := version.Get()
	slog.Info("sla-tracker starting",
		"version", build.Version,
		"commit", build.Commit,
		"build_date", build.BuildDate,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(runErr, application.Shutdown(shutdownCtx))
}

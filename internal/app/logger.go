package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/config"
)

func newLogger(cfg config.LogConfig) *slog.Logger {
	return slog.New(logHandler(os.Stdout, cfg))
}

// logHandler accepts the slog level names in any case and falls back to
// info for anything it does not recognise.
func logHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

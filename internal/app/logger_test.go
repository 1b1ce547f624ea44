package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/config"
)

func TestLogHandler_Level(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			h := logHandler(&bytes.Buffer{}, config.LogConfig{Level: tt.level})
			assert.True(t, h.Enabled(context.Background(), tt.want))
			assert.False(t, h.Enabled(context.Background(), tt.want-1))
		})
	}
}

func TestLogHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	slog.New(logHandler(&buf, config.LogConfig{Level: "info", Format: "json"})).Info("scan finished", "breached", 2)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "scan finished", line["msg"])
	assert.Equal(t, float64(2), line["breached"])

	buf.Reset()
	slog.New(logHandler(&buf, config.LogConfig{Level: "info", Format: "text"})).Info("scan finished")
	assert.Contains(t, buf.String(), `msg="scan finished"`)
}

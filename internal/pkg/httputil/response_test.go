package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/ctxlog"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/metrics"
)

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, http.StatusCreated, map[string]string{"id": "s-1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":"s-1"}}`, rec.Body.String())
}

func TestValidationError(t *testing.T) {
	type request struct {
		Priority string `validate:"required,oneof=critical high"`
		Incident string `validate:"max=3"`
	}

	t.Run("field errors", func(t *testing.T) {
		err := validator.New().Struct(request{Priority: "p0", Incident: "INC-1"})
		require.Error(t, err)

		rec := httptest.NewRecorder()
		ValidationError(rec, err)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":{"message":"validation error","details":[
			{"field":"Priority","message":"oneof=critical high"},
			{"field":"Incident","message":"max=3"}
		]}}`, rec.Body.String())
	})

	t.Run("plain error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ValidationError(rec, errors.New("created_at is in the future"))
		assert.JSONEq(t, `{"error":{"message":"validation error","details":"created_at is in the future"}}`, rec.Body.String())
	})
}

func TestAccessLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, accessLevel("/healthz", http.StatusOK))
	assert.Equal(t, slog.LevelError, accessLevel("/readyz", http.StatusServiceUnavailable))
	assert.Equal(t, slog.LevelInfo, accessLevel("/api/v1/slas", http.StatusCreated))
	assert.Equal(t, slog.LevelWarn, accessLevel("/api/v1/slas/x", http.StatusConflict))
	assert.Equal(t, slog.LevelError, accessLevel("/api/v1/scans", http.StatusInternalServerError))
}

func TestRequestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLoggerMiddleware(logger))
	r.Get("/api/v1/slas/{id}", func(w http.ResponseWriter, r *http.Request) {
		ctxlog.FromContext(r.Context()).Info("inside handler")
		Error(w, http.StatusNotFound, "sla not found")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/slas/abc", nil))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inner, access map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &inner))
	require.NoError(t, json.Unmarshal(lines[1], &access))

	assert.NotEmpty(t, inner["request_id"])
	assert.Equal(t, inner["request_id"], access["request_id"])
	assert.Equal(t, "WARN", access["level"])
	assert.Equal(t, "/api/v1/slas/{id}", access["route"])
	assert.Equal(t, float64(http.StatusNotFound), access["status"])
}

func sampleCount(t *testing.T, route, status string) uint64 {
	t.Helper()
	var m dto.Metric
	observer := metrics.HTTPRequestDuration.WithLabelValues(http.MethodGet, route, status)
	require.NoError(t, observer.(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestMetricsMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/api/v1/slas/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})
	r.Post("/api/v1/slas/{id}/pause", func(w http.ResponseWriter, _ *http.Request) {
		Error(w, http.StatusConflict, "sla is not active")
	})

	okBefore := sampleCount(t, "/api/v1/slas/{id}", "200")
	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/slas/"+id, nil))
	}
	assert.Equal(t, okBefore+3, sampleCount(t, "/api/v1/slas/{id}", "200"))

	var m dto.Metric
	conflict := metrics.HTTPRequestDuration.WithLabelValues(http.MethodPost, "/api/v1/slas/{id}/pause", "409")
	require.NoError(t, conflict.(prometheus.Metric).Write(&m))
	before := m.GetHistogram().GetSampleCount()

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/slas/a/pause", nil))

	require.NoError(t, conflict.(prometheus.Metric).Write(&m))
	assert.Equal(t, before+1, m.GetHistogram().GetSampleCount())
}

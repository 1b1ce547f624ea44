package sla

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/ctxlog"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/httputil"
)

// ScanRunner runs one scan cycle on demand.
type ScanRunner interface {
	RunScan(ctx context.Context, now time.Time) (ScanResult, error)
}

// Handler handles HTTP requests for the SLA module.
type Handler struct {
	service   *Service
	scanner   ScanRunner
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler creates a new SLA handler.
func NewHandler(service *Service, scanner ScanRunner) *Handler {
	return &Handler{
		service:   service,
		scanner:   scanner,
		validator: newValidator(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RegisterReadRoutes registers routes available to every authenticated user.
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/slas/{id}", h.GetSLA)
	r.Get("/incidents/{incidentID}/sla", h.GetIncidentSLA)
}

// RegisterOperatorRoutes registers routes that require operator role.
func (h *Handler) RegisterOperatorRoutes(r chi.Router) {
	r.Post("/slas", h.CreateSLA)
	r.Post("/slas/{id}/pause", h.PauseSLA)
	r.Post("/slas/{id}/resume", h.ResumeSLA)
	r.Post("/incidents/{incidentID}/sla/response", h.RecordResponse)
	r.Post("/incidents/{incidentID}/sla/resolution", h.RecordResolution)
}

// RegisterAdminRoutes registers routes that require admin role.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/scans", h.TriggerScan)
}

// CreateSLARequest represents the request body for starting an SLA.
type CreateSLARequest struct {
	IncidentID string     `json:"incident_id" validate:"required,min=1,max=255"`
	Priority   string     `json:"priority" validate:"required,oneof=critical high medium low"`
	CreatedAt  *time.Time `json:"created_at"`
}

// ClockRequest represents the request body for pause and resume.
type ClockRequest struct {
	At *time.Time `json:"at"`
}

// ResponseRequest represents the request body for recording a first response.
type ResponseRequest struct {
	RespondedAt *time.Time `json:"responded_at"`
}

// ResolutionRequest represents the request body for recording a resolution.
type ResolutionRequest struct {
	ResolvedAt *time.Time `json:"resolved_at"`
}

// SLAResponse is the SLA read model.
type SLAResponse struct {
	ID                          string               `json:"id"`
	IncidentID                  string               `json:"incident_id"`
	Priority                    domain.Priority      `json:"priority"`
	Status                      domain.SLAStatus     `json:"status"`
	ResponseDeadline            time.Time            `json:"response_deadline"`
	ResolutionDeadline          time.Time            `json:"resolution_deadline"`
	EffectiveResponseDeadline   time.Time            `json:"effective_response_deadline"`
	EffectiveResolutionDeadline time.Time            `json:"effective_resolution_deadline"`
	ResponseRemainingSeconds    int64                `json:"response_remaining_seconds"`
	ResolutionRemainingSeconds  int64                `json:"resolution_remaining_seconds"`
	ResponseOverdue             bool                 `json:"response_overdue"`
	ResolutionOverdue           bool                 `json:"resolution_overdue"`
	AccumulatedPauseSeconds     int64                `json:"accumulated_pause_seconds"`
	PausedAt                    *time.Time           `json:"paused_at,omitempty"`
	ResponseAt                  *time.Time           `json:"response_at,omitempty"`
	ResolvedAt                  *time.Time           `json:"resolved_at,omitempty"`
	BreachedDeadline            *domain.DeadlineKind `json:"breached_deadline,omitempty"`
	BreachNotifiedAt            *time.Time           `json:"breach_notified_at,omitempty"`
	ClosedAt                    *time.Time           `json:"closed_at,omitempty"`
	Version                     int64                `json:"version"`
	EvaluatedAt                 time.Time            `json:"evaluated_at"`
	CreatedAt                   time.Time            `json:"created_at"`
	UpdatedAt                   time.Time            `json:"updated_at"`
}

// ScanResponse is the result of a manually triggered scan.
type ScanResponse struct {
	Scanned    int   `json:"scanned"`
	Breached   int   `json:"breached"`
	Repaired   int   `json:"repaired"`
	Warned     int   `json:"warned"`
	Conflicts  int   `json:"conflicts"`
	Failed     int   `json:"failed"`
	DurationMS int64 `json:"duration_ms"`
}

func toResponse(snap Snapshot) SLAResponse {
	s := snap.SLA
	return SLAResponse{
		ID:                          s.ID,
		IncidentID:                  s.IncidentID,
		Priority:                    s.Priority,
		Status:                      s.Status,
		ResponseDeadline:            s.ResponseDeadline,
		ResolutionDeadline:          s.ResolutionDeadline,
		EffectiveResponseDeadline:   snap.EffectiveResponseDeadline,
		EffectiveResolutionDeadline: snap.EffectiveResolutionDeadline,
		ResponseRemainingSeconds:    int64(snap.ResponseRemaining / time.Second),
		ResolutionRemainingSeconds:  int64(snap.ResolutionRemaining / time.Second),
		ResponseOverdue:             snap.ResponseOverdue,
		ResolutionOverdue:           snap.ResolutionOverdue,
		AccumulatedPauseSeconds:     int64(s.AccumulatedPause / time.Second),
		PausedAt:                    s.PausedAt,
		ResponseAt:                  s.ResponseAt,
		ResolvedAt:                  s.ResolvedAt,
		BreachedDeadline:            s.BreachedDeadline,
		BreachNotifiedAt:            s.BreachNotifiedAt,
		ClosedAt:                    s.ClosedAt,
		Version:                     s.Version,
		EvaluatedAt:                 snap.EvaluatedAt,
		CreatedAt:                   s.CreatedAt,
		UpdatedAt:                   s.UpdatedAt,
	}
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrSLANotFound, Status: http.StatusNotFound, Message: "sla not found"},
	{Error: ErrSLAAlreadyExists, Status: http.StatusConflict, Message: "sla already exists for incident"},
	{Error: ErrConcurrentModification, Status: http.StatusConflict},
	{Error: ErrScanInProgress, Status: http.StatusConflict, Message: "scan already in progress"},
	{Error: ErrTerminalState, Status: http.StatusConflict},
	{Error: ErrInvalidTransition, Status: http.StatusConflict},
	{Error: ErrClockInput, Status: http.StatusBadRequest},
	{Error: ErrInvalidPriority, Status: http.StatusBadRequest},
}

// CreateSLA handles POST /slas.
func (h *Handler) CreateSLA(w http.ResponseWriter, r *http.Request) {
	var req CreateSLARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	now := h.now()
	created, err := h.service.CreateForIncident(r.Context(), CreateInput{
		IncidentID: req.IncidentID,
		Priority:   domain.Priority(req.Priority),
		CreatedAt:  req.CreatedAt,
	}, now)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	logChange(r, "sla created", created)
	httputil.Success(w, http.StatusCreated, toResponse(Evaluate(created, now)))
}

// GetSLA handles GET /slas/{id}.
func (h *Handler) GetSLA(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), h.now())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, toResponse(snap))
}

// GetIncidentSLA handles GET /incidents/{incidentID}/sla.
func (h *Handler) GetIncidentSLA(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.GetByIncident(r.Context(), chi.URLParam(r, "incidentID"), h.now())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, toResponse(snap))
}

// PauseSLA handles POST /slas/{id}/pause.
func (h *Handler) PauseSLA(w http.ResponseWriter, r *http.Request) {
	var req ClockRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	now := h.now()
	h.respond(w, r, now, func() (*domain.SLA, error) {
		return h.service.Pause(r.Context(), chi.URLParam(r, "id"), orNow(req.At, now), now)
	})
}

// ResumeSLA handles POST /slas/{id}/resume.
func (h *Handler) ResumeSLA(w http.ResponseWriter, r *http.Request) {
	var req ClockRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	now := h.now()
	h.respond(w, r, now, func() (*domain.SLA, error) {
		return h.service.Resume(r.Context(), chi.URLParam(r, "id"), orNow(req.At, now), now)
	})
}

// RecordResponse handles POST /incidents/{incidentID}/sla/response.
func (h *Handler) RecordResponse(w http.ResponseWriter, r *http.Request) {
	var req ResponseRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	now := h.now()
	h.respond(w, r, now, func() (*domain.SLA, error) {
		return h.service.RecordResponse(r.Context(), chi.URLParam(r, "incidentID"), orNow(req.RespondedAt, now), now)
	})
}

// RecordResolution handles POST /incidents/{incidentID}/sla/resolution.
func (h *Handler) RecordResolution(w http.ResponseWriter, r *http.Request) {
	var req ResolutionRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	now := h.now()
	h.respond(w, r, now, func() (*domain.SLA, error) {
		return h.service.RecordResolution(r.Context(), chi.URLParam(r, "incidentID"), orNow(req.ResolvedAt, now), now)
	})
}

// TriggerScan handles POST /scans.
func (h *Handler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	result, err := h.scanner.RunScan(r.Context(), h.now())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	ctxlog.FromContext(r.Context()).Info("manual scan finished",
		"scanned", result.Scanned,
		"breached", result.Breached,
	)
	httputil.Success(w, http.StatusOK, ScanResponse{
		Scanned:    result.Scanned,
		Breached:   result.Breached,
		Repaired:   result.Repaired,
		Warned:     result.Warned,
		Conflicts:  result.Conflicts,
		Failed:     result.Failed,
		DurationMS: result.Duration.Milliseconds(),
	})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, now time.Time, op func() (*domain.SLA, error)) {
	updated, err := op()
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	logChange(r, "sla change applied", updated)
	httputil.Success(w, http.StatusOK, toResponse(Evaluate(updated, now)))
}

func logChange(r *http.Request, msg string, s *domain.SLA) {
	ctxlog.FromContext(r.Context()).Info(msg,
		"sla_id", s.ID,
		"incident_id", s.IncidentID,
		"status", s.Status,
		"version", s.Version,
	)
}

// decodeOptional decodes a JSON body that may be empty.
func decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func orNow(at *time.Time, now time.Time) time.Time {
	if at == nil {
		return now
	}
	return at.UTC()
}

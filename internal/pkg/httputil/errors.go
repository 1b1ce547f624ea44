package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/ctxlog"
)

// ErrorMapping maps a sentinel error to a status. An empty Message exposes
// err.Error(), which must then be safe to show callers.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string
}

// HandleError writes the response of the first mapping that err matches
// with errors.Is. Timeouts become 503. Anything else is logged and hidden
// behind a 500.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if !errors.Is(err, m.Error) {
			continue
		}
		msg := m.Message
		if msg == "" {
			msg = err.Error()
		}
		Error(w, m.Status, msg)
		return
	}

	logger := ctxlog.FromContext(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("request timed out", "error", err)
		Error(w, http.StatusServiceUnavailable, "request timed out")
		return
	}
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}

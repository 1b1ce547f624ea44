package httputil

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/ctxlog"
)

type contextKey string

// Context keys for the authenticated caller.
const (
	SubjectKey contextKey = "subject"
	RoleKey    contextKey = "role"
)

var (
	errNoAuthHeader  = errors.New("missing authorization header")
	errBadAuthHeader = errors.New("invalid authorization header format")
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (subject string, role domain.Role, err error)
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errNoAuthHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", errBadAuthHeader
	}
	return token, nil
}

// AuthMiddleware rejects requests without a valid bearer token. The caller
// identity is stored in the context and attached to the request logger.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				Error(w, http.StatusUnauthorized, err.Error())
				return
			}

			subject, role, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				ctxlog.FromContext(r.Context()).Debug("token rejected", "error", err)
				Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), SubjectKey, subject)
			ctx = context.WithValue(ctx, RoleKey, role)
			ctx = ctxlog.With(ctx, "actor", subject, "actor_role", role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose role is below minRole.
func RequireRole(minRole domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetRole(r.Context())
			switch {
			case role == "":
				Error(w, http.StatusUnauthorized, "unauthorized")
			case !role.HasPermission(minRole):
				Error(w, http.StatusForbidden, "insufficient permissions")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// GetSubject returns the token subject of the caller.
func GetSubject(ctx context.Context) string {
	subject, _ := ctx.Value(SubjectKey).(string)
	return subject
}

// GetRole returns the role of the caller, or "" when unauthenticated.
func GetRole(ctx context.Context) domain.Role {
	role, _ := ctx.Value(RoleKey).(domain.Role)
	return role
}

package httputil

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSMiddleware answers preflight requests from allowedOrigins. The API
// only exposes GET and POST.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:       allowedOrigins,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type", "Authorization"},
		ExposedHeaders:       []string{"X-Request-Id"},
		AllowCredentials:     true,
		MaxAge:               86400,
		OptionsSuccessStatus: http.StatusNoContent,
	})
}

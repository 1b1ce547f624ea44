package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/config"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/ctxlog"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/httputil"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/pkg/jwtauth"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/sla"
	slapostgres "github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/sla/postgres"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/sla/redislock"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/version"
)

const (
	requestTimeout = 60 * time.Second
	openAPIPath    = "api/openapi/openapi.yaml"
)

const docsPage = `<!DOCTYPE html>
<html>
<head>
    <title>SLA Tracker API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`

func (a *App) setupRouter() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics first so the histogram covers the whole chain; CORS before
	// auth so preflights are answered without a token.
	r.Use(httputil.MetricsMiddleware)
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)
	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, openAPIPath)
	})
	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(docsPage))
	})

	notifier, err := a.setupNotifications()
	if err != nil {
		return nil, err
	}

	a.slaRepo = slapostgres.NewRepository(a.db)
	service := sla.NewService(sla.ServiceConfig{
		Policy:           a.config.SLA.Policy.Policy(),
		OperationTimeout: a.config.SLA.OperationTimeout,
	}, a.slaRepo, notifier)

	sc := a.config.Scanner
	a.scanner = sla.NewScanner(sla.ScannerConfig{
		Interval:         sc.Interval,
		BatchSize:        sc.BatchSize,
		Workers:          sc.Workers,
		OperationTimeout: sc.OperationTimeout,
		WarningRatio:     sc.WarningRatio,
	}, a.slaRepo, notifier, a.scanLock())

	handler := sla.NewHandler(service, a.scanner)
	tokens := jwtauth.NewValidator(jwtauth.Config{
		SecretKey: a.config.JWT.SecretKey,
		Issuer:    a.config.JWT.Issuer,
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.AuthMiddleware(tokens))

		handler.RegisterReadRoutes(r)
		r.With(httputil.RequireRole(domain.RoleOperator)).Group(handler.RegisterOperatorRoutes)
		r.With(httputil.RequireRole(domain.RoleAdmin)).Group(handler.RegisterAdminRoutes)
	})

	return r, nil
}

// scanLock keeps scans from overlapping: in process by default, or across
// replicas through redis.
func (a *App) scanLock() sla.ScanLock {
	lock := a.config.Scanner.Lock
	if lock.Backend != config.LockBackendRedis {
		return sla.NewLocalLock()
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:         a.config.Redis.Addr,
		Password:     a.config.Redis.Password,
		DB:           a.config.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	a.logger.Info("using redis scan lock", "addr", a.config.Redis.Addr, "key", lock.Key, "ttl", lock.TTL)
	return redislock.New(a.redis, redislock.Config{Key: lock.Key, TTL: lock.TTL})
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

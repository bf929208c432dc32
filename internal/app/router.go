package app

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nexusride/nexusride-web/internal/access"
	"github.com/nexusride/nexusride-web/internal/approvals"
	"github.com/nexusride/nexusride-web/internal/auth"
	"github.com/nexusride/nexusride-web/internal/dashboard"
	"github.com/nexusride/nexusride-web/internal/observability"
	"github.com/nexusride/nexusride-web/internal/platform/httpx"
	"github.com/nexusride/nexusride-web/internal/shared"
	"github.com/nexusride/nexusride-web/internal/tokens"
	"github.com/nexusride/nexusride-web/internal/trips"
	"github.com/nexusride/nexusride-web/jobs"
	"github.com/nexusride/nexusride-web/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics
	HealthChecks   map[string]httpx.Check

	Refresher        *auth.Refresher
	AuthHandler      *auth.Handler
	DashboardHandler *dashboard.Handler
	ApprovalsHandler *approvals.Handler
	TripsHandler     *trips.Handler
	TokensHandler    *tokens.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router serving every page of the front end.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", httpx.Health(params.HealthChecks, 2*time.Second))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		if params.Refresher != nil {
			r.Use(params.Refresher.Middleware)
		}
		params.AuthHandler.MountRoutes(r)
		params.DashboardHandler.MountRoutes(r)
		params.TripsHandler.MountRoutes(r)
		params.TokensHandler.MountRoutes(r)
		params.ApprovalsHandler.MountRoutes(r)
	})

	toLogin := func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, access.PathLogin, http.StatusSeeOther)
	}
	r.Get("/", toLogin)
	r.NotFound(toLogin)

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler lets browsers keep static assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}

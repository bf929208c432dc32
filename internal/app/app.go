package app

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nexusride/nexusride-web/internal/access"
	"github.com/nexusride/nexusride-web/internal/approvals"
	"github.com/nexusride/nexusride-web/internal/auth"
	"github.com/nexusride/nexusride-web/internal/backend"
	"github.com/nexusride/nexusride-web/internal/dashboard"
	"github.com/nexusride/nexusride-web/internal/observability"
	"github.com/nexusride/nexusride-web/internal/platform/cache"
	"github.com/nexusride/nexusride-web/internal/platform/db"
	"github.com/nexusride/nexusride-web/internal/platform/httpx"
	"github.com/nexusride/nexusride-web/internal/shared"
	"github.com/nexusride/nexusride-web/internal/tokens"
	"github.com/nexusride/nexusride-web/internal/trips"
	"github.com/nexusride/nexusride-web/internal/view"
	"github.com/nexusride/nexusride-web/jobs"
)

// SessionCookie names the session cookie.
const SessionCookie = "nexusride_session"

// Dependencies are the process-level resources the web front end runs on.
// Pool, Jobs and JobInspector are optional.
type Dependencies struct {
	Config       *Config
	Logger       *slog.Logger
	Redis        *redis.Client
	Pool         *pgxpool.Pool
	Jobs         *jobs.Client
	JobInspector jobs.QueueInspector
	Metrics      *observability.Metrics
}

// NewServerHandler wires every package into the routed handler.
func NewServerHandler(deps Dependencies) (http.Handler, error) {
	if deps.Config == nil || deps.Redis == nil {
		return nil, errors.New("app: config and redis are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	templates, err := view.NewEngine()
	if err != nil {
		return nil, err
	}
	sessions := shared.NewSessionManager(deps.Redis, SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)

	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, backend.WithRecorder(deps.Metrics))
	gate := access.NewGate(client, logger, deps.Metrics)

	var (
		audit    shared.AuditRecorder
		guard    shared.SubmissionGuard
		requests dashboard.Notifier
		verdicts approvals.Notifier
	)
	checks := map[string]httpx.Check{"redis": cache.Ping(deps.Redis)}
	if deps.Pool != nil {
		audit = shared.NewAuditLogger(deps.Pool)
		guard = shared.NewIdempotencyStore(deps.Pool)
		checks["postgres"] = db.Ping(deps.Pool)
	}
	if deps.Jobs != nil {
		requests = deps.Jobs
		verdicts = deps.Jobs
	}

	authService := auth.NewService(client, cfg.OfficerEmail)
	throttle := auth.NewThrottle(cfg.LoginAttemptsPerMinute)

	var jobHandler *jobs.Handler
	if cfg.JobsEnabled {
		jobHandler = jobs.NewHandler(deps.JobInspector, logger)
	}

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    csrf,
		Metrics:        deps.Metrics,
		HealthChecks:   checks,

		Refresher:   auth.NewRefresher(authService, cfg.ProfileRefreshInterval, logger),
		AuthHandler: auth.NewHandler(logger, authService, templates, sessions, csrf, throttle, audit),
		DashboardHandler: dashboard.NewHandler(logger, client, templates, csrf, gate, dashboard.Options{
			Guard:    guard,
			Audit:    audit,
			Notifier: requests,
		}),
		ApprovalsHandler: approvals.NewHandler(logger, client, templates, csrf, gate, audit, verdicts),
		TripsHandler:     trips.NewHandler(logger, client, templates, csrf, gate),
		TokensHandler:    tokens.NewHandler(logger, templates, csrf, gate),
		JobHandler:       jobHandler,
	}), nil
}

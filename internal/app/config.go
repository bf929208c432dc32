package app

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the web front end and the worker.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	AppRateLimit      int           `envconfig:"APP_RATE_LIMIT" default:"120"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	BackendURL     string        `envconfig:"BACKEND_URL" default:"http://127.0.0.1:8000"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`
	OfficerEmail   string        `envconfig:"OFFICER_EMAIL" default:"officer@iut-dhaka.edu"`

	RedisAddr  string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"168h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	ProfileRefreshInterval time.Duration `envconfig:"PROFILE_REFRESH_INTERVAL" default:"5m"`
	LoginAttemptsPerMinute int           `envconfig:"LOGIN_ATTEMPTS_PER_MINUTE" default:"5"`

	PGDSN string `envconfig:"PG_DSN"`

	JobsEnabled          bool          `envconfig:"JOBS_ENABLED" default:"false"`
	WorkerConcurrency    int           `envconfig:"WORKER_CONCURRENCY" default:"5"`
	WorkerMetricsAddr    string        `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
	IdempotencyRetention time.Duration `envconfig:"IDEMPOTENCY_RETENTION" default:"72h"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if strings.TrimSpace(cfg.BackendURL) == "" {
		return nil, errors.New("backend url must be provided")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// HasDatabase reports whether the optional Postgres stores are configured.
func (c *Config) HasDatabase() bool {
	return c != nil && strings.TrimSpace(c.PGDSN) != ""
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nexusride/nexusride-web/internal/app"
	jobmetrics "github.com/nexusride/nexusride-web/internal/jobs"
	"github.com/nexusride/nexusride-web/internal/platform/db"
	"github.com/nexusride/nexusride-web/internal/shared"
	"github.com/nexusride/nexusride-web/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := jobmetrics.NewMetrics(nil)
	notifications := jobs.NewNotifications(jobs.LogMailer{Logger: logger}, cfg.OfficerEmail, metrics)

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskSubscriptionRequested, Handler: notifications.HandleRequested},
		{Type: jobs.TaskSubscriptionDecided, Handler: notifications.HandleDecided},
	}
	var cron []jobs.CronRegistration

	if cfg.HasDatabase() {
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()

		store := shared.NewIdempotencyStore(pool)
		handlers = append(handlers, jobs.TaskHandler{
			Type:    jobs.TaskIdempotencyCleanup,
			Handler: jobs.CleanupHandler(store, cfg.IdempotencyRetention, logger, metrics),
		})
		cron = append(cron, jobs.CronRegistration{
			Spec:    "30 3 * * *",
			Task:    jobs.NewIdempotencyCleanupTask(),
			Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    handlers,
		Cron:        cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := jobmetrics.NewServer(cfg.WorkerMetricsAddr, prometheus.DefaultGatherer)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting worker", slog.Int("handlers", len(handlers)), slog.Int("cron", len(cron)))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/verdant-pos/verdant-pos/internal/app"
	jobmetrics "github.com/verdant-pos/verdant-pos/internal/jobs"
	"github.com/verdant-pos/verdant-pos/internal/ledger"
	"github.com/verdant-pos/verdant-pos/internal/platform/db"
	"github.com/verdant-pos/verdant-pos/internal/pos"
	"github.com/verdant-pos/verdant-pos/internal/shared"
	"github.com/verdant-pos/verdant-pos/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := jobmetrics.NewMetrics(nil)
	ledgerRepo := ledger.NewRepository(pool)
	reaperLogger := logger.With(slog.String("component", "pos_reaper"))
	posService := pos.NewService(pos.NewRepository(pool), nil, nil, nil, 0, nil, reaperLogger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskIdempotencyCleanup, Handler: jobs.NewIdempotencyCleanupHandler(idempotencyStore, cfg.IdempotencyRetention, logger, metrics)},
			{Type: jobs.TaskReapSessions, Handler: jobs.NewReapSessionsHandler(posService, cfg.POSSessionMaxAge, logger, metrics)},
			{Type: jobs.TaskRepairRollups, Handler: jobs.NewRepairRollupsHandler(ledgerRepo, logger, metrics)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: asynq.NewTask(jobs.TaskIdempotencyCleanup, nil), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/10 * * * *", Task: asynq.NewTask(jobs.TaskReapSessions, nil), Options: []asynq.Option{asynq.MaxRetry(2)}},
			{Spec: "30 3 * * *", Task: asynq.NewTask(jobs.TaskRepairRollups, nil), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

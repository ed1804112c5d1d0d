package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/verdant-pos/verdant-pos/internal/app"
	"github.com/verdant-pos/verdant-pos/internal/auth"
	"github.com/verdant-pos/verdant-pos/internal/bulkops"
	"github.com/verdant-pos/verdant-pos/internal/ledger"
	"github.com/verdant-pos/verdant-pos/internal/masterdata"
	"github.com/verdant-pos/verdant-pos/internal/observability"
	"github.com/verdant-pos/verdant-pos/internal/payments"
	"github.com/verdant-pos/verdant-pos/internal/platform/db"
	"github.com/verdant-pos/verdant-pos/internal/pos"
	"github.com/verdant-pos/verdant-pos/internal/shared"
	"github.com/verdant-pos/verdant-pos/jobs"
	"github.com/verdant-pos/verdant-pos/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	authService := auth.NewService(auth.NewRepository(dbpool))
	authMiddleware := auth.Middleware(authService, logger)

	masterdataRepo := masterdata.NewRepository(dbpool)

	ledgerService := ledger.NewService(ledger.NewRepository(dbpool), auditLogger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, cfg.IsDevelopment())
	bulkOpsService := bulkops.NewService(ledgerService, masterdataRepo, metrics)
	bulkOpsHandler := bulkops.NewHandler(logger, bulkOpsService, cfg.IsDevelopment())

	paymentTxRepo := payments.NewPGTransactionRepository(dbpool)
	paymentResolver := payments.NewResolver(masterdataRepo, cfg.TerminalTimeout)
	paymentService := payments.NewService(paymentResolver, paymentTxRepo, idempotencyStore, auditLogger, metrics, logger)
	paymentsHandler := payments.NewHandler(logger, paymentService, cfg.IsDevelopment())

	posService := pos.NewService(pos.NewRepository(dbpool), paymentTxRepo, masterdataRepo, redisClient, cfg.POSStatusCacheTTL, auditLogger, logger)
	posHandler := pos.NewHandler(logger, posService, cfg.IsDevelopment())

	reportHandler := report.NewHandler(report.NewClient(cfg.GotenbergURL, cfg.GotenbergTimeout), posService, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AuthMiddleware:  authMiddleware,
		LedgerHandler:   ledgerHandler,
		BulkOpsHandler:  bulkOpsHandler,
		PaymentsHandler: paymentsHandler,
		POSHandler:      posHandler,
		ReportHandler:   reportHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

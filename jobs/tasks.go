package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/verdant-pos/verdant-pos/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskIdempotencyCleanup prunes processed idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// TaskReapSessions closes register sessions left open past the max age.
	TaskReapSessions = "pos:reap_sessions"
	// TaskRepairRollups reconciles product stock rollups with the ledger.
	TaskRepairRollups = "ledger:repair_rollups"
)

// IdempotencyCleaner prunes stale keys.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewIdempotencyCleanupHandler builds the cleanup task handler.
func NewIdempotencyCleanupHandler(store IdempotencyCleaner, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskIdempotencyCleanup)
		if err := store.Cleanup(ctx, retention); err != nil {
			logger.Error("idempotency cleanup failed", slog.String("error", err.Error()))
			return tracker.End(err)
		}
		logger.Info("idempotency cleanup complete", slog.Duration("retention", retention))
		return tracker.End(nil)
	}
}

// SessionReaper closes stale open sessions.
type SessionReaper interface {
	ReapStale(ctx context.Context, maxAge time.Duration, limit int) (int, error)
}

// NewReapSessionsHandler builds the session reaper task handler.
func NewReapSessionsHandler(reaper SessionReaper, maxAge time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskReapSessions)
		closed, err := reaper.ReapStale(ctx, maxAge, 500)
		if err != nil {
			logger.Error("session reap failed", slog.String("error", err.Error()))
			return tracker.End(err)
		}
		if closed > 0 {
			logger.Info("stale sessions closed", slog.Int("count", closed))
			metrics.AddReapedSessions(closed)
		}
		return tracker.End(nil)
	}
}

// RollupRepairer fixes drifted product rollups.
type RollupRepairer interface {
	RepairRollups(ctx context.Context) (int64, error)
}

// NewRepairRollupsHandler builds the rollup reconciliation task handler.
func NewRepairRollupsHandler(repairer RollupRepairer, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskRepairRollups)
		fixed, err := repairer.RepairRollups(ctx)
		if err != nil {
			logger.Error("rollup repair failed", slog.String("error", err.Error()))
			return tracker.End(err)
		}
		if fixed > 0 {
			// Rollups are maintained transactionally with every mutation,
			// so any repair here means something skipped the ledger.
			logger.Warn("product rollups repaired", slog.Int64("count", fixed))
		}
		return tracker.End(nil)
	}
}

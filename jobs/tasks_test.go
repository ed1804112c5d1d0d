package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeCleaner struct {
	olderThan time.Duration
	err       error
}

func (f *fakeCleaner) Cleanup(_ context.Context, olderThan time.Duration) error {
	f.olderThan = olderThan
	return f.err
}

type fakeReaper struct {
	maxAge time.Duration
	closed int
}

func (f *fakeReaper) ReapStale(_ context.Context, maxAge time.Duration, limit int) (int, error) {
	f.maxAge = maxAge
	return f.closed, nil
}

type fakeRepairer struct {
	fixed int64
	err   error
}

func (f *fakeRepairer) RepairRollups(context.Context) (int64, error) {
	return f.fixed, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIdempotencyCleanupHandler(t *testing.T) {
	cleaner := &fakeCleaner{}
	h := NewIdempotencyCleanupHandler(cleaner, 7*24*time.Hour, testLogger(), nil)
	require.NoError(t, h(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	require.Equal(t, 7*24*time.Hour, cleaner.olderThan)

	cleaner.err = errors.New("db down")
	require.Error(t, h(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
}

func TestReapSessionsHandler(t *testing.T) {
	reaper := &fakeReaper{closed: 3}
	h := NewReapSessionsHandler(reaper, 18*time.Hour, testLogger(), nil)
	require.NoError(t, h(context.Background(), asynq.NewTask(TaskReapSessions, nil)))
	require.Equal(t, 18*time.Hour, reaper.maxAge)
}

func TestRepairRollupsHandler(t *testing.T) {
	h := NewRepairRollupsHandler(&fakeRepairer{fixed: 2}, testLogger(), nil)
	require.NoError(t, h(context.Background(), asynq.NewTask(TaskRepairRollups, nil)))

	h = NewRepairRollupsHandler(&fakeRepairer{err: errors.New("boom")}, testLogger(), nil)
	require.Error(t, h(context.Background(), asynq.NewTask(TaskRepairRollups, nil)))
}

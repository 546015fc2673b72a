// Package tracker drives the fetch-cluster-reconcile cycle, either as a
// one-shot pass over a time window or as a periodic polling loop.
package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"commitclock/internal/model"
	"commitclock/internal/reconcile"
)

// CommitSource yields the commits to reconcile for a time window.
type CommitSource interface {
	FetchAll(ctx context.Context, since, until time.Time) ([]model.Commit, error)
}

// Tracker polls a commit source and reconciles what it finds.
type Tracker struct {
	source       CommitSource
	reconciler   *reconcile.Reconciler
	logger       *zap.Logger
	pollInterval time.Duration
	window       time.Duration
}

// New builds a Tracker. pollInterval only matters for Watch; window is how
// far back each polling cycle looks.
func New(source CommitSource, rec *reconcile.Reconciler, pollInterval, window time.Duration, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		source:       source,
		reconciler:   rec,
		logger:       logger,
		pollInterval: pollInterval,
		window:       window,
	}
}

// RunOnce fetches commits in [since, until] and reconciles them.
func (t *Tracker) RunOnce(ctx context.Context, since, until time.Time) (reconcile.Result, error) {
	commits, err := t.source.FetchAll(ctx, since, until)
	if err != nil {
		return reconcile.Result{}, err
	}
	t.logger.Debug("fetched commits", zap.Int("count", len(commits)))
	return t.reconciler.Reconcile(ctx, commits), nil
}

// Watch runs reconciliation cycles until ctx is cancelled. A cycle covers the
// trailing window ending at the cycle start. Fetch errors are logged and the
// loop keeps going; the next tick retries.
func (t *Tracker) Watch(ctx context.Context) error {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	t.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.cycle(ctx)
		}
	}
}

func (t *Tracker) cycle(ctx context.Context) {
	now := time.Now()
	result, err := t.RunOnce(ctx, now.Add(-t.window), now)
	if err != nil {
		t.logger.Warn("tracking cycle failed", zap.Error(err))
		return
	}
	t.logger.Info("tracking cycle complete",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
		zap.Int("duplicates", result.Duplicates))
}

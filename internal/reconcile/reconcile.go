// Package reconcile turns new commits into Clockify time entries without
// ever creating duplicates across runs. The ledger remembers which commits
// were processed and which entry belongs to each session key; re-running
// the pipeline over the same commits is a no-op.
package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"commitclock/internal/cluster"
	"commitclock/internal/ledger"
	"commitclock/internal/model"
)

// EntryAPI is the external time entry store. Each call is a single
// synchronous attempt: it returns the entry id on success, and any retry
// policy belongs to the implementation's HTTP layer, not here.
type EntryAPI interface {
	CreateEntry(ctx context.Context, start, end time.Time, description, projectID string) (string, error)
	UpdateEntry(ctx context.Context, id string, start, end time.Time, description string) (string, error)
}

// Result holds counters for one reconciliation batch.
type Result struct {
	Created    int
	Updated    int
	Failed     int
	Duplicates int
	// Dropped lists session keys that failed to sync after their commits
	// were already marked seen. Those commits will not be retried on the
	// next run; the keys are surfaced so callers can alert on them.
	Dropped []string
}

// Synced returns the number of sessions created or updated.
func (r Result) Synced() int {
	return r.Created + r.Updated
}

// Reconciler drives one batch of commits through clustering and into the
// external entry store, consulting and updating the ledger.
type Reconciler struct {
	calc      *cluster.Calculator
	ledger    *ledger.Ledger
	api       EntryAPI
	projectID string
	logger    *zap.Logger
}

// New returns a Reconciler. projectID may be empty; it is passed through to
// created entries as-is.
func New(calc *cluster.Calculator, led *ledger.Ledger, api EntryAPI, projectID string, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{calc: calc, ledger: led, api: api, projectID: projectID, logger: logger}
}

// Reconcile processes a batch of commits: unseen commits are clustered into
// sessions, and each session either updates its existing Clockify entry or
// creates a new one. Individual failures are logged and counted, never
// fatal; the ledger is persisted at the end of the batch.
//
// A commit is marked seen before its session syncs. If the sync then fails,
// the commit is not retried on later runs; such sessions are reported in
// Result.Dropped.
func (r *Reconciler) Reconcile(ctx context.Context, commits []model.Commit) Result {
	var result Result

	fresh := make([]model.Commit, 0, len(commits))
	for _, c := range commits {
		if r.ledger.MarkSeen(c.SHA) {
			fresh = append(fresh, c)
		} else {
			result.Duplicates++
		}
	}
	if len(fresh) == 0 {
		r.logger.Debug("no new commits to process", zap.Int("duplicates", result.Duplicates))
		return result
	}
	r.logger.Info("processing new commits", zap.Int("count", len(fresh)))

	for _, session := range r.calc.Sessions(fresh) {
		r.syncSession(ctx, session, &result)
	}

	if err := r.ledger.Save(); err != nil {
		// In-memory state stays valid; durability resumes on the next
		// successful save.
		r.logger.Error("saving state failed", zap.Error(err))
	}
	return result
}

func (r *Reconciler) syncSession(ctx context.Context, session model.Session, result *Result) {
	key := session.Key()

	if id, ok := r.ledger.EntryID(key); ok {
		newID, err := r.api.UpdateEntry(ctx, id, session.Start, session.End, session.Description())
		if err == nil && newID != "" {
			r.logger.Info("updated session entry",
				zap.String("key", key),
				zap.Float64("hours", session.Hours),
				zap.Int("commits", len(session.Commits)))
			result.Updated++
			return
		}
		// Known duplicate-risk path: the stored id no longer resolves to
		// a valid entry, so a fresh one is created below.
		r.logger.Warn("update failed, creating new entry",
			zap.String("key", key), zap.String("entry_id", id), zap.Error(err))
	}

	id, err := r.api.CreateEntry(ctx, session.Start, session.End, session.Description(), r.projectID)
	if err != nil || id == "" {
		r.logger.Error("create failed, session dropped",
			zap.String("key", key), zap.Error(err))
		result.Failed++
		result.Dropped = append(result.Dropped, key)
		return
	}
	r.ledger.SetEntryID(key, id)
	r.logger.Info("created session entry",
		zap.String("key", key),
		zap.Float64("hours", session.Hours),
		zap.Int("commits", len(session.Commits)))
	result.Created++
}

// Package ledger is the durable idempotency store for the sync pipeline:
// which commits have been processed, and which Clockify entry belongs to
// each (day, author, repo) session key.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// fileFormat is the on-disk JSON shape. It must stay stable across versions:
// existing state files are the only record of what has already been synced.
type fileFormat struct {
	SeenCommits     []string          `json:"seen_commits"`
	ClockifyEntries map[string]string `json:"clockify_entries"`
}

// Ledger tracks processed commit SHAs and the Clockify entry id per session
// key. All access is serialized internally; callers never need their own
// locking.
type Ledger struct {
	mu      sync.Mutex
	path    string
	seen    map[string]bool
	entries map[string]string
	logger  *zap.Logger
}

// Load reads the ledger from path. A missing file yields a fresh ledger;
// a corrupt file is logged and replaced by a fresh ledger rather than
// aborting the run.
func Load(path string, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		path:    path,
		seen:    map[string]bool{},
		entries: map[string]string{},
		logger:  logger,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file %s: %w", path, err)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		logger.Warn("corrupt state file, starting fresh",
			zap.String("path", path), zap.Error(err))
		return l, nil
	}
	for _, sha := range ff.SeenCommits {
		l.seen[sha] = true
	}
	for k, id := range ff.ClockifyEntries {
		l.entries[k] = id
	}
	logger.Info("loaded state",
		zap.String("path", path),
		zap.Int("seen_commits", len(l.seen)),
		zap.Int("clockify_entries", len(l.entries)))
	return l, nil
}

// Path returns the ledger's backing file path.
func (l *Ledger) Path() string {
	return l.path
}

// MarkSeen records a commit SHA as processed. It reports whether the SHA was
// new; false means the commit was already handled on an earlier run.
func (l *Ledger) MarkSeen(sha string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen[sha] {
		return false
	}
	l.seen[sha] = true
	return true
}

// Seen reports whether a commit SHA has been processed.
func (l *Ledger) Seen(sha string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seen[sha]
}

// EntryID returns the Clockify entry id stored for a session key, if any.
func (l *Ledger) EntryID(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.entries[key]
	return id, ok
}

// SetEntryID records the Clockify entry id for a session key, overwriting
// any previous id.
func (l *Ledger) SetEntryID(key, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[key] = id
}

// SeenCount returns the number of processed commits.
func (l *Ledger) SeenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// EntryCount returns the number of tracked Clockify entries.
func (l *Ledger) EntryCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Save writes the full ledger snapshot atomically: temp file in the same
// directory, then rename. A crash mid-write leaves the previous state file
// intact.
func (l *Ledger) Save() error {
	l.mu.Lock()
	ff := fileFormat{
		SeenCommits:     make([]string, 0, len(l.seen)),
		ClockifyEntries: make(map[string]string, len(l.entries)),
	}
	for sha := range l.seen {
		ff.SeenCommits = append(ff.SeenCommits, sha)
	}
	for k, id := range l.entries {
		ff.ClockifyEntries[k] = id
	}
	l.mu.Unlock()
	sort.Strings(ff.SeenCommits)

	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	tmpPath := l.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp state file: %w", err)
	}
	return nil
}

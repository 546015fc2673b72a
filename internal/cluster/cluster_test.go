package cluster_test

import (
	"math"
	"testing"
	"time"

	"commitclock/internal/cluster"
	"commitclock/internal/model"
)

func commit(sha, author, repo string, ts time.Time) model.Commit {
	return model.Commit{SHA: sha, Author: author, Repo: repo, Timestamp: ts, Message: "msg " + sha}
}

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func mustNew(t *testing.T, opts cluster.Options) *cluster.Calculator {
	t.Helper()
	c, err := cluster.New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts cluster.Options
	}{
		{"zero tau", cluster.Options{TauHours: 0, Threshold: 0.1, MaxSessionHours: 4}},
		{"negative tau", cluster.Options{TauHours: -1, Threshold: 0.1, MaxSessionHours: 4}},
		{"zero threshold", cluster.Options{TauHours: 2.5, Threshold: 0, MaxSessionHours: 4}},
		{"threshold above one", cluster.Options{TauHours: 2.5, Threshold: 1.5, MaxSessionHours: 4}},
		{"zero max hours", cluster.Options{TauHours: 2.5, Threshold: 0.1, MaxSessionHours: 0}},
	}
	for _, tt := range tests {
		if _, err := cluster.New(tt.opts); err == nil {
			t.Errorf("%s: expected error, got nil", tt.name)
		}
	}
}

func TestSessionsEmptyInput(t *testing.T) {
	c := mustNew(t, cluster.DefaultOptions())
	if got := c.Sessions(nil); len(got) != 0 {
		t.Errorf("Sessions(nil) = %d sessions, want 0", len(got))
	}
}

func TestSessionsCloseCommitsFormOneSession(t *testing.T) {
	c := mustNew(t, cluster.DefaultOptions())
	commits := []model.Commit{
		commit("a", "alice", "api", at(9, 0)),
		commit("b", "alice", "api", at(9, 10)),
		commit("c", "alice", "api", at(9, 20)),
	}

	sessions := c.Sessions(commits)
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if !s.Start.Equal(at(9, 0)) || !s.End.Equal(at(9, 20)) {
		t.Errorf("session span = %v–%v, want 09:00–09:20", s.Start, s.End)
	}
	if math.Abs(s.Hours-1.0/3.0) > 1e-9 {
		t.Errorf("Hours = %v, want 0.333", s.Hours)
	}
}

func TestSessionsLargeGapSplits(t *testing.T) {
	// 7h gap with tau=2.5h: w = e^(-7/2.5) ≈ 0.061 < 0.1.
	c := mustNew(t, cluster.DefaultOptions())
	sessions := c.Sessions([]model.Commit{
		commit("a", "alice", "api", at(9, 0)),
		commit("b", "alice", "api", at(16, 0)),
	})
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
}

func TestSessionsBoundaryFollowsWeightFormula(t *testing.T) {
	// Same 3h gap, different tau: boundary location must follow the
	// weight formula rather than any fixed gap.
	commits := []model.Commit{
		commit("a", "alice", "api", at(9, 0)),
		commit("b", "alice", "api", at(12, 0)),
	}

	wide := mustNew(t, cluster.Options{TauHours: 2.5, Threshold: 0.1, MaxSessionHours: 4})
	if got := wide.Sessions(commits); len(got) != 1 {
		t.Errorf("tau=2.5: got %d sessions, want 1", len(got))
	}

	narrow := mustNew(t, cluster.Options{TauHours: 1.0, Threshold: 0.1, MaxSessionHours: 4})
	if got := narrow.Sessions(commits); len(got) != 2 {
		t.Errorf("tau=1.0: got %d sessions, want 2", len(got))
	}
}

func TestSessionsSingleCommit(t *testing.T) {
	c := mustNew(t, cluster.DefaultOptions())
	sessions := c.Sessions([]model.Commit{commit("a", "alice", "api", at(9, 0))})
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if !s.End.Equal(at(9, 15)) {
		t.Errorf("End = %v, want start + 15m", s.End)
	}
	if s.Hours != 0.25 {
		t.Errorf("Hours = %v, want 0.25", s.Hours)
	}
}

func TestSessionsIdenticalTimestamps(t *testing.T) {
	c := mustNew(t, cluster.DefaultOptions())
	sessions := c.Sessions([]model.Commit{
		commit("a", "alice", "api", at(10, 0)),
		commit("b", "alice", "api", at(10, 0)),
	})
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1 (gap 0 is never a boundary)", len(sessions))
	}
	// A zero-width multi-commit session keeps zero hours; the 15-minute
	// floor applies to single-commit sessions only.
	if got := sessions[0].Hours; got != 0 {
		t.Errorf("Hours = %v, want 0 for identical timestamps", got)
	}
}

func TestSessionsLocationRebucketsDays(t *testing.T) {
	opts := cluster.DefaultOptions()
	opts.Location = time.UTC
	c := mustNew(t, opts)

	// 01:00 on Mar 2 in +09:00 is still Mar 1 in the reporting timezone.
	tokyo := time.FixedZone("UTC+9", 9*3600)
	sessions := c.Sessions([]model.Commit{
		commit("a", "alice", "api", time.Date(2026, 3, 2, 1, 0, 0, 0, tokyo)),
	})
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if got, want := s.Key(), "2026-03-01_alice_api"; got != want {
		t.Errorf("Key = %q, want %q", got, want)
	}
	if got := s.Start.Hour(); got != 16 {
		t.Errorf("Start hour = %d, want 16", got)
	}
}

func TestSessionsDurationCapped(t *testing.T) {
	c := mustNew(t, cluster.DefaultOptions())
	// 2h gaps keep weight well above threshold; raw span is 6h.
	sessions := c.Sessions([]model.Commit{
		commit("a", "alice", "api", at(9, 0)),
		commit("b", "alice", "api", at(11, 0)),
		commit("c", "alice", "api", at(13, 0)),
		commit("d", "alice", "api", at(15, 0)),
	})
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].Hours != 4.0 {
		t.Errorf("Hours = %v, want capped at 4.0", sessions[0].Hours)
	}
}

func TestSessionsPartitionCompleteness(t *testing.T) {
	c := mustNew(t, cluster.DefaultOptions())
	commits := []model.Commit{
		commit("a1", "alice", "api", at(9, 0)),
		commit("b1", "bob", "api", at(9, 5)),
		commit("a2", "alice", "web", at(9, 10)),
		commit("b2", "bob", "api", at(16, 30)),
		commit("a3", "alice", "api", at(9, 20)),
	}

	sessions := c.Sessions(commits)
	seen := map[string]int{}
	for _, s := range sessions {
		for _, cm := range s.Commits {
			seen[cm.SHA]++
			if cm.Author != s.Author || cm.Repo != s.Repo {
				t.Errorf("commit %s filed under %s/%s", cm.SHA, s.Author, s.Repo)
			}
		}
	}
	if len(seen) != len(commits) {
		t.Fatalf("got %d distinct commits across sessions, want %d", len(seen), len(commits))
	}
	for sha, n := range seen {
		if n != 1 {
			t.Errorf("commit %s appears %d times, want exactly once", sha, n)
		}
	}
}

func TestSessionsDeterministic(t *testing.T) {
	c := mustNew(t, cluster.DefaultOptions())
	commits := []model.Commit{
		commit("a1", "alice", "api", at(9, 0)),
		commit("b1", "bob", "api", at(9, 5)),
		commit("a2", "alice", "api", at(9, 30)),
		commit("b2", "bob", "web", at(10, 0)),
	}
	reversed := make([]model.Commit, len(commits))
	for i, cm := range commits {
		reversed[len(commits)-1-i] = cm
	}

	first := c.Sessions(commits)
	second := c.Sessions(reversed)
	if len(first) != len(second) {
		t.Fatalf("session counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Key() != second[i].Key() || first[i].Hours != second[i].Hours ||
			len(first[i].Commits) != len(second[i].Commits) {
			t.Errorf("session %d differs between call orders", i)
		}
	}
}

func TestMergeCloseSessions(t *testing.T) {
	// Small tau forces a boundary at the 20 minute gap, then the merge
	// pass fuses the two sessions again.
	c := mustNew(t, cluster.Options{
		TauHours: 0.1, Threshold: 0.1, MaxSessionHours: 4, MinGapMinutes: 30,
	})
	sessions := c.Sessions([]model.Commit{
		commit("a", "alice", "api", at(12, 0)),
		commit("b", "alice", "api", at(12, 20)),
	})
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1 merged", len(sessions))
	}
	s := sessions[0]
	if !s.Start.Equal(at(12, 0)) {
		t.Errorf("Start = %v, want 12:00", s.Start)
	}
	if len(s.Commits) != 2 {
		t.Errorf("merged session holds %d commits, want 2", len(s.Commits))
	}
}

func TestMergeDisabled(t *testing.T) {
	c := mustNew(t, cluster.Options{
		TauHours: 0.1, Threshold: 0.1, MaxSessionHours: 4, MinGapMinutes: 0,
	})
	sessions := c.Sessions([]model.Commit{
		commit("a", "alice", "api", at(12, 0)),
		commit("b", "alice", "api", at(12, 20)),
	})
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2 (merge pass disabled)", len(sessions))
	}
}

func TestMergeRespectsGroupBoundaries(t *testing.T) {
	c := mustNew(t, cluster.Options{
		TauHours: 0.1, Threshold: 0.1, MaxSessionHours: 4, MinGapMinutes: 30,
	})
	sessions := c.Sessions([]model.Commit{
		commit("a", "alice", "api", at(12, 0)),
		commit("b", "bob", "api", at(12, 20)),
	})
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2 (different authors never merge)", len(sessions))
	}
}

func TestDailyHours(t *testing.T) {
	c := mustNew(t, cluster.DefaultOptions())
	sessions := c.Sessions([]model.Commit{
		commit("a1", "alice", "api", at(9, 0)),
		commit("a2", "alice", "api", at(9, 30)),
		commit("a3", "alice", "web", at(20, 0)),
		commit("b1", "bob", "api", at(10, 0)),
	})

	totals := cluster.DailyHours(sessions)
	if len(totals) != 2 {
		t.Fatalf("got %d totals, want 2", len(totals))
	}
	if totals[0].Author != "alice" || totals[1].Author != "bob" {
		t.Errorf("totals not sorted by author: %+v", totals)
	}
	// alice: 0.5h session plus 0.25h single-commit session.
	if math.Abs(totals[0].Hours-0.75) > 1e-9 {
		t.Errorf("alice hours = %v, want 0.75", totals[0].Hours)
	}
}

func TestFormatSessionsEmpty(t *testing.T) {
	if got := cluster.FormatSessions(nil); got != "No work sessions detected" {
		t.Errorf("FormatSessions(nil) = %q", got)
	}
}

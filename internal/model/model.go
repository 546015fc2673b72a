package model

import (
	"fmt"
	"time"
)

// Commit is a single commit pulled from the activity feed.
// Immutable once fetched.
type Commit struct {
	SHA       string    `json:"sha"`
	Author    string    `json:"author"`
	Repo      string    `json:"repo"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Session is a reconstructed work session: a run of commits by one author in
// one repository, close enough in time to count as continuous work.
type Session struct {
	Author  string    `json:"author"`
	Repo    string    `json:"repo"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Commits []Commit  `json:"commits"`
	Hours   float64   `json:"hours"`
}

// Key identifies the session for ledger lookups: one external time entry
// per (day, author, repo).
func (s Session) Key() string {
	return fmt.Sprintf("%s_%s_%s", s.Start.Format("2006-01-02"), s.Author, s.Repo)
}

// Description is the text stored on the external time entry.
func (s Session) Description() string {
	return fmt.Sprintf("%s: %d commits (%s–%s)",
		s.Repo, len(s.Commits), s.Start.Format("15:04"), s.End.Format("15:04"))
}

// TimeEntry is a free-text time record pulled from Clockify.
// Read-only input to the matcher.
type TimeEntry struct {
	ID          string    `json:"id"`
	UserName    string    `json:"user_name"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// WorkItem is an Azure DevOps work item used as a match candidate.
type WorkItem struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	State string `json:"state"`
}

// Closed reports whether the work item is in a completed state.
func (w WorkItem) Closed() bool {
	switch w.State {
	case "Resolved", "Closed", "Done", "Removed":
		return true
	}
	return false
}

// Match strategies reported on a MatchResult.
const (
	StrategyStrict = "strict"
	StrategyFuzzy  = "fuzzy"
)

// MatchResult links one time entry to the work items found in its text.
type MatchResult struct {
	Entry       TimeEntry
	WorkItemIDs map[int]bool
	Confidence  float64
	Strategy    string
}

// Matched reports whether any work item was found.
func (r MatchResult) Matched() bool {
	return len(r.WorkItemIDs) > 0
}

// HighConfidence reports whether the match clears the 0.8 confidence bar.
func (r MatchResult) HighConfidence() bool {
	return r.Confidence >= 0.8
}

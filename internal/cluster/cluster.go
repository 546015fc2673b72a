// Package cluster reconstructs work sessions from commit timestamps.
//
// Commits by the same author in the same repository are grouped with
// exponential-decay temporal weighting: consecutive commits get weight
// w = e^(-gap/tau), and a weight below the threshold starts a new session.
// A second pass merges sessions separated by short gaps.
package cluster

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"commitclock/internal/model"
	"commitclock/internal/timecalc"
)

// Default clustering parameters. tau = 2.5h with threshold 0.1 puts the
// session boundary near a 5.75h gap.
const (
	DefaultTauHours        = 2.5
	DefaultThreshold       = 0.1
	DefaultMaxSessionHours = 4.0
	DefaultMinGapMinutes   = 30
)

// singleCommitSpan is the assumed span of a session containing one commit.
const singleCommitSpan = 15 * time.Minute

// Options configures the session calculator.
type Options struct {
	// TauHours is the exponential decay time constant in hours.
	TauHours float64
	// Threshold is the weight below which a new session starts.
	Threshold float64
	// MaxSessionHours caps the duration of a single session.
	MaxSessionHours float64
	// MinGapMinutes merges sessions closer than this. Zero or negative
	// disables the merge pass.
	MinGapMinutes int
	// Location is the timezone session times are reported in. Nil means
	// timestamps are kept as fetched.
	Location *time.Location
}

// DefaultOptions returns the standard clustering parameters.
func DefaultOptions() Options {
	return Options{
		TauHours:        DefaultTauHours,
		Threshold:       DefaultThreshold,
		MaxSessionHours: DefaultMaxSessionHours,
		MinGapMinutes:   DefaultMinGapMinutes,
	}
}

// Calculator turns raw commits into work sessions.
type Calculator struct {
	opts Options
}

// New validates opts and returns a Calculator. Invalid parameters are a
// construction-time error; nothing later in the pipeline checks them again.
func New(opts Options) (*Calculator, error) {
	if opts.TauHours <= 0 {
		return nil, fmt.Errorf("cluster: tau_hours must be positive, got %v", opts.TauHours)
	}
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("cluster: threshold must be in (0, 1], got %v", opts.Threshold)
	}
	if opts.MaxSessionHours <= 0 {
		return nil, fmt.Errorf("cluster: max_session_hours must be positive, got %v", opts.MaxSessionHours)
	}
	return &Calculator{opts: opts}, nil
}

// groupKey partitions commits by author and repository.
func groupKey(author, repo string) string {
	return author + "\x00" + repo
}

// Sessions clusters commits into work sessions and merges sessions separated
// by less than the configured minimum gap. The result is sorted by author,
// repository and start time; every input commit appears in exactly one
// session.
func (c *Calculator) Sessions(commits []model.Commit) []model.Session {
	if len(commits) == 0 {
		return nil
	}

	groups := map[string][]model.Commit{}
	var keys []string
	for _, commit := range commits {
		if c.opts.Location != nil {
			commit.Timestamp = commit.Timestamp.In(c.opts.Location)
		}
		k := groupKey(commit.Author, commit.Repo)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], commit)
	}
	sort.Strings(keys)

	var sessions []model.Session
	for _, k := range keys {
		group := groups[k]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Timestamp.Before(group[j].Timestamp)
		})
		sessions = append(sessions, c.clusterGroup(group)...)
	}

	return c.merge(sessions)
}

// clusterGroup splits one author+repo commit run into sessions. The first
// commit has weight 1.0 by convention and never opens a boundary.
func (c *Calculator) clusterGroup(group []model.Commit) []model.Session {
	var sessions []model.Session
	begin := 0
	for i := 1; i < len(group); i++ {
		gapHours := group[i].Timestamp.Sub(group[i-1].Timestamp).Hours()
		if math.Exp(-gapHours/c.opts.TauHours) < c.opts.Threshold {
			sessions = append(sessions, c.buildSession(group[begin:i]))
			begin = i
		}
	}
	sessions = append(sessions, c.buildSession(group[begin:]))
	return sessions
}

// buildSession creates a session from the given commits, which are sorted by
// timestamp and non-empty.
func (c *Calculator) buildSession(commits []model.Commit) model.Session {
	start := commits[0].Timestamp
	end := commits[len(commits)-1].Timestamp
	hours := math.Min(end.Sub(start).Hours(), c.opts.MaxSessionHours)
	if len(commits) == 1 {
		// A lone commit still represents some work: assume 15 minutes.
		end = start.Add(singleCommitSpan)
		hours = math.Min(0.25, c.opts.MaxSessionHours)
	}
	return model.Session{
		Author:  commits[0].Author,
		Repo:    commits[0].Repo,
		Start:   start,
		End:     end,
		Commits: append([]model.Commit(nil), commits...),
		Hours:   hours,
	}
}

// merge fuses sessions of the same author and repository whose gap is at
// most MinGapMinutes. A single deterministic left-to-right pass over the
// sessions sorted by start time; not a global optimum.
func (c *Calculator) merge(sessions []model.Session) []model.Session {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if a.Author != b.Author {
			return a.Author < b.Author
		}
		if a.Repo != b.Repo {
			return a.Repo < b.Repo
		}
		return a.Start.Before(b.Start)
	})
	if len(sessions) == 0 || c.opts.MinGapMinutes <= 0 {
		return sessions
	}

	var merged []model.Session
	current := sessions[0]
	for _, next := range sessions[1:] {
		sameGroup := next.Author == current.Author && next.Repo == current.Repo
		gap := next.Start.Sub(current.End).Minutes()
		if sameGroup && gap <= float64(c.opts.MinGapMinutes) {
			current = model.Session{
				Author:  current.Author,
				Repo:    current.Repo,
				Start:   current.Start,
				End:     next.End,
				Commits: append(append([]model.Commit(nil), current.Commits...), next.Commits...),
				Hours:   math.Min(next.End.Sub(current.Start).Hours(), c.opts.MaxSessionHours),
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}

// DailyTotal is the aggregated hours for one author on one date.
type DailyTotal struct {
	Date   string
	Author string
	Hours  float64
}

// DailyHours aggregates session hours per author and calendar date,
// sorted by date then author.
func DailyHours(sessions []model.Session) []DailyTotal {
	totals := map[string]*DailyTotal{}
	var keys []string
	for _, s := range sessions {
		date := s.Start.Format("2006-01-02")
		k := date + "\x00" + s.Author
		if _, ok := totals[k]; !ok {
			totals[k] = &DailyTotal{Date: date, Author: s.Author}
			keys = append(keys, k)
		}
		totals[k].Hours += s.Hours
	}
	sort.Strings(keys)
	out := make([]DailyTotal, 0, len(keys))
	for _, k := range keys {
		out = append(out, *totals[k])
	}
	return out
}

// FormatSessions renders a human-readable summary of the sessions,
// grouped per author with a running total.
func FormatSessions(sessions []model.Session) string {
	if len(sessions) == 0 {
		return "No work sessions detected"
	}

	ordered := append([]model.Session(nil), sessions...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Author != ordered[j].Author {
			return ordered[i].Author < ordered[j].Author
		}
		return ordered[i].Start.Before(ordered[j].Start)
	})

	var b strings.Builder
	b.WriteString("Work sessions:\n")
	b.WriteString(strings.Repeat("=", 60))

	author := ""
	total := 0.0
	flush := func() {
		if author != "" {
			fmt.Fprintf(&b, "  Total: %.2f hours\n", total)
		}
	}
	for _, s := range ordered {
		if s.Author != author {
			flush()
			author = s.Author
			total = 0
			fmt.Fprintf(&b, "\n%s:\n%s\n", author, strings.Repeat("-", 60))
		}
		endFormat := "15:04"
		if !timecalc.SameDay(s.Start, s.End) {
			endFormat = "2006-01-02 15:04"
		}
		fmt.Fprintf(&b, "  %s - %s (%s) | %s\n",
			s.Start.Format("2006-01-02 15:04"), s.End.Format(endFormat),
			timecalc.FormatHours(s.Hours), s.Description())
		total += s.Hours
	}
	flush()
	return b.String()
}

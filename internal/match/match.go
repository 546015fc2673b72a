// Package match links free-text time entries to Azure DevOps work items.
//
// Extraction runs a prioritized table of regular expressions over the entry
// text; explicit reference styles (#1234, ADO-1234, ...) score higher than a
// bare number. When no referenced work item exists, a fuzzy pass compares
// the text against open work item titles.
package match

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"commitclock/internal/model"
)

// Strategy selects how entries are matched to work items.
type Strategy string

const (
	// Strict uses pattern extraction only.
	Strict Strategy = "strict"
	// Fuzzy allows the title-similarity fallback for unmatched entries.
	Fuzzy Strategy = "fuzzy"
	// Hybrid extracts patterns first, then falls back to title
	// similarity for entries no pattern resolved.
	Hybrid Strategy = "hybrid"
)

// Work item ids are constrained to this range; anything else extracted from
// text is discarded silently.
const (
	minWorkItemID = 1
	maxWorkItemID = 999999
)

// fuzzyThreshold is the minimum title similarity for a fuzzy match, and
// fuzzyConfidence the fixed confidence assigned to fuzzy results.
const (
	fuzzyThreshold  = 0.7
	fuzzyConfidence = 0.6
)

// Pattern is one way of spelling a work item reference in free text.
// Lower priority numbers are more explicit spellings and score higher.
type Pattern struct {
	Name               string
	Regexp             *regexp.Regexp
	Priority           int
	RequiresValidation bool
}

// DefaultPatterns returns the recognized reference spellings in priority
// order. The bare number fallback requires validation and caps at 0.5
// confidence.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Name: "hash", Regexp: regexp.MustCompile(`(?i)#(\d{4,6})`), Priority: 1},
		{Name: "ado_dash", Regexp: regexp.MustCompile(`(?i)ADO-(\d{4,6})`), Priority: 2},
		{Name: "ado_underscore", Regexp: regexp.MustCompile(`(?i)ADO_(\d{4,6})`), Priority: 2},
		{Name: "wi_colon", Regexp: regexp.MustCompile(`(?i)WI:(\d{4,6})`), Priority: 3},
		{Name: "wi_underscore", Regexp: regexp.MustCompile(`(?i)WI_(\d{4,6})`), Priority: 3},
		{Name: "brackets", Regexp: regexp.MustCompile(`(?i)\[(\d{4,6})\]`), Priority: 4},
		{Name: "parentheses", Regexp: regexp.MustCompile(`(?i)\((\d{4,6})\)`), Priority: 5},
		{Name: "plain_number", Regexp: regexp.MustCompile(`(?i)\b(\d{4,6})\b`), Priority: 10, RequiresValidation: true},
	}
}

// extract returns the valid work item ids the pattern finds in text.
func (p Pattern) extract(text string) []int {
	var ids []int
	for _, m := range p.Regexp.FindAllStringSubmatch(text, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil || id < minWorkItemID || id > maxWorkItemID {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Matcher matches time entries against work items.
type Matcher struct {
	patterns []Pattern
	strategy Strategy
	metric   *metrics.SorensenDice
}

// New returns a Matcher with the default pattern table.
func New(strategy Strategy) *Matcher {
	return NewWithPatterns(DefaultPatterns(), strategy)
}

// NewWithPatterns returns a Matcher using a custom pattern table.
func NewWithPatterns(patterns []Pattern, strategy Strategy) *Matcher {
	sorted := append([]Pattern(nil), patterns...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return &Matcher{patterns: sorted, strategy: strategy, metric: metrics.NewSorensenDice()}
}

// ExtractIDs pulls work item ids out of text and scores how explicit the
// references were. Explicit patterns score 1.0 - priority*0.1, the validated
// bare-number fallback scores 0.5, and a second matching pattern family adds
// 0.1 (capped at 1.0). The boost counts pattern families, not distinct ids:
// two spellings of the same id still raise the score.
func (m *Matcher) ExtractIDs(text string) (map[int]bool, float64) {
	ids := map[int]bool{}
	if text == "" {
		return ids, 0
	}

	confidence := 0.0
	families := 0
	for _, p := range m.patterns {
		found := p.extract(text)
		if len(found) == 0 {
			continue
		}
		for _, id := range found {
			ids[id] = true
		}
		families++
		c := 0.5
		if !p.RequiresValidation {
			c = 1.0 - float64(p.Priority)*0.1
			if c < 0 {
				c = 0
			}
		}
		if c > confidence {
			confidence = c
		}
	}
	if families > 1 {
		confidence += 0.1
		if confidence > 1.0 {
			confidence = 1.0
		}
	}
	return ids, confidence
}

// Match resolves each time entry against the work item candidates. Extracted
// ids only count when the work item actually exists; entries with no pattern
// match fall back to fuzzy title matching when the strategy allows it.
func (m *Matcher) Match(entries []model.TimeEntry, items map[int]model.WorkItem) []model.MatchResult {
	results := make([]model.MatchResult, 0, len(entries))
	for _, entry := range entries {
		extracted, confidence := m.ExtractIDs(entry.Description)

		matched := map[int]bool{}
		for id := range extracted {
			if _, ok := items[id]; ok {
				matched[id] = true
			}
		}

		if len(matched) == 0 && (m.strategy == Fuzzy || m.strategy == Hybrid) {
			if id, ok := m.fuzzyMatch(entry.Description, items); ok {
				matched[id] = true
				confidence = fuzzyConfidence
			}
		}

		strategy := model.StrategyFuzzy
		if confidence > 0.7 {
			strategy = model.StrategyStrict
		}
		results = append(results, model.MatchResult{
			Entry:       entry,
			WorkItemIDs: matched,
			Confidence:  confidence,
			Strategy:    strategy,
		})
	}
	return results
}

// fuzzyMatch finds the single best open work item whose title resembles the
// entry text. Closed items are never selected.
func (m *Matcher) fuzzyMatch(text string, items map[int]model.WorkItem) (int, bool) {
	if text == "" {
		return 0, false
	}
	textLower := strings.ToLower(text)

	ids := make([]int, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	best := 0
	bestScore := 0.0
	for _, id := range ids {
		item := items[id]
		if item.Closed() {
			continue
		}
		score := m.similarity(textLower, strings.ToLower(item.Title))
		if score > bestScore && score >= fuzzyThreshold {
			bestScore = score
			best = id
		}
	}
	return best, best != 0
}

// similarity scores two lower-cased strings in [0, 1]. Besides the bigram
// ratio, containment of one string in the other, or of a word run covering
// most of the shorter string, floors the score at 0.8.
func (m *Matcher) similarity(a, b string) float64 {
	score := strutil.Similarity(a, b, m.metric)
	if strings.Contains(a, b) || strings.Contains(b, a) || sharedPhrase(a, b) {
		if score < 0.8 {
			score = 0.8
		}
	}
	return score
}

// sharedPhrase reports whether a contiguous word run covering the majority
// of the shorter string appears verbatim in the longer one.
func sharedPhrase(a, b string) bool {
	words, long := strings.Fields(a), b
	if other := strings.Fields(b); len(other) < len(words) {
		words, long = other, a
	}
	n := (len(words) + 1) / 2
	if n < 2 {
		return false
	}
	for i := 0; i+n <= len(words); i++ {
		if strings.Contains(long, strings.Join(words[i:i+n], " ")) {
			return true
		}
	}
	return false
}

// Stats summarizes a batch of match results.
type Stats struct {
	Total              int
	Matched            int
	Unmatched          int
	MatchRate          float64
	HighConfidence     int
	HighConfidenceRate float64
	AverageConfidence  float64
	ByStrategy         map[string]int
}

// Statistics computes aggregate numbers over match results.
func Statistics(results []model.MatchResult) Stats {
	s := Stats{Total: len(results), ByStrategy: map[string]int{}}
	if s.Total == 0 {
		return s
	}

	sum := 0.0
	for _, r := range results {
		if r.Matched() {
			s.Matched++
		}
		if r.HighConfidence() {
			s.HighConfidence++
		}
		s.ByStrategy[r.Strategy]++
		sum += r.Confidence
	}
	s.Unmatched = s.Total - s.Matched
	s.MatchRate = float64(s.Matched) / float64(s.Total)
	s.HighConfidenceRate = float64(s.HighConfidence) / float64(s.Total)
	s.AverageConfidence = sum / float64(s.Total)
	return s
}

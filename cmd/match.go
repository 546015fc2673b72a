package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"commitclock/internal/clockify"
	"commitclock/internal/devops"
	"commitclock/internal/match"
)

var (
	matchFrom    string
	matchTo      string
	matchDays    int
	matchMinConf float64
	matchFuzzy   bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match Clockify time entries against Azure DevOps work items",
	Long: `match pulls time entries from Clockify and open work items from Azure
DevOps, extracts work item references from entry descriptions and reports
which entries could be attributed to which items.`,
	Args: cobra.NoArgs,
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringVar(&matchFrom, "from", "", "Start date (YYYY-MM-DD)")
	matchCmd.Flags().StringVar(&matchTo, "to", "", "End date (YYYY-MM-DD); defaults to today")
	matchCmd.Flags().IntVar(&matchDays, "days", 0, "Match the last N days (default from config)")
	matchCmd.Flags().Float64Var(&matchMinConf, "min-confidence", 0, "Hide matches below this confidence")
	matchCmd.Flags().BoolVar(&matchFuzzy, "fuzzy", true, "Fall back to title similarity when no id is found")
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newLogger()
	defer logger.Sync()

	from, to, err := resolveWindow(matchFrom, matchTo, matchDays, cfg, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()

	entries, err := clockify.NewClient(cfg.Clockify.BaseURL, cfg.Clockify.APIKey, logger).
		TimeEntries(ctx, from, to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	items, err := devops.NewClient(cfg.DevOps.BaseURL, cfg.DevOps.Organization,
		cfg.DevOps.Project, cfg.DevOps.PAT).OpenWorkItems(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger.Debug("fetched candidates",
		zap.Int("entries", len(entries)), zap.Int("work_items", len(items)))

	strategy := match.Hybrid
	if !matchFuzzy {
		strategy = match.Strict
	}
	results := match.New(strategy).Match(entries, items)

	for _, r := range results {
		if r.Confidence < matchMinConf {
			continue
		}
		ids := make([]int, 0, len(r.WorkItemIDs))
		for id := range r.WorkItemIDs {
			ids = append(ids, id)
		}
		sort.Ints(ids)

		if !r.Matched() {
			fmt.Printf("  ????     %-50.50s  (no match)\n", r.Entry.Description)
			continue
		}
		fmt.Printf("  %-8s %-50.50s  →", formatIDs(ids), r.Entry.Description)
		for _, id := range ids {
			fmt.Printf(" #%d %s", id, items[id].Title)
		}
		fmt.Printf("  [%.2f %s]\n", r.Confidence, r.Strategy)
	}

	stats := match.Statistics(results)
	fmt.Println()
	fmt.Printf("%d entries, %d matched (%.0f%%), %d high confidence (%.0f%%), avg confidence %.2f\n",
		stats.Total, stats.Matched, stats.MatchRate*100,
		stats.HighConfidence, stats.HighConfidenceRate*100, stats.AverageConfidence)
	names := make([]string, 0, len(stats.ByStrategy))
	for name := range stats.ByStrategy {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %d\n", name, stats.ByStrategy[name])
	}
	return nil
}

func formatIDs(ids []int) string {
	if len(ids) == 0 {
		return "-"
	}
	s := fmt.Sprintf("%d", ids[0])
	if len(ids) > 1 {
		s += fmt.Sprintf("+%d", len(ids)-1)
	}
	return s
}

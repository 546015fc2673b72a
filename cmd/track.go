package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"commitclock/internal/clockify"
	"commitclock/internal/cluster"
	"commitclock/internal/config"
	"commitclock/internal/github"
	"commitclock/internal/ledger"
	"commitclock/internal/model"
	"commitclock/internal/reconcile"
	"commitclock/internal/timecalc"
	"commitclock/internal/tracker"
)

var (
	trackFrom   string
	trackTo     string
	trackDays   int
	trackWatch  bool
	trackDryRun bool
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Reconcile GitHub commits into Clockify time entries",
	Long: `track fetches commits from the configured GitHub org or user, clusters
them into work sessions and creates or updates the matching Clockify
entries. Already-synced commits are skipped via the local state file.`,
	Args: cobra.NoArgs,
	RunE: runTrack,
}

func init() {
	trackCmd.Flags().StringVar(&trackFrom, "from", "", "Start date (YYYY-MM-DD)")
	trackCmd.Flags().StringVar(&trackTo, "to", "", "End date (YYYY-MM-DD); defaults to today")
	trackCmd.Flags().IntVar(&trackDays, "days", 0, "Track the last N days (default from config)")
	trackCmd.Flags().BoolVar(&trackWatch, "watch", false, "Keep polling instead of a one-shot run")
	trackCmd.Flags().BoolVar(&trackDryRun, "dry-run", false, "Print planned operations without writing")
}

func runTrack(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newLogger()
	defer logger.Sync()

	from, to, err := resolveWindow(trackFrom, trackTo, trackDays, cfg, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	calc, err := newCalculator(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	source, err := newCommitSource(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	base, err := config.BaseDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	led, err := ledger.Load(config.StatePath(base), logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if trackDryRun {
		return runTrackDryRun(ctx, source, calc, led, from, to)
	}

	api := clockify.NewClient(cfg.Clockify.BaseURL, cfg.Clockify.APIKey, logger)
	rec := reconcile.New(calc, led, api, cfg.Clockify.ProjectID, logger)
	tr := tracker.New(source, rec,
		time.Duration(cfg.Tracker.PollIntervalSeconds)*time.Second,
		to.Sub(from), logger)

	if trackWatch {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Printf("Watching for commits every %ds (window %s)...\n",
			cfg.Tracker.PollIntervalSeconds, timecalc.FormatDuration(to.Sub(from)))
		if err := tr.Watch(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}

	result, err := tr.RunOnce(ctx, from, to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	printTrackSummary(result)
	if result.Failed > 0 {
		os.Exit(2)
	}
	return nil
}

// resolveWindow turns --from/--to/--days flag values into a concrete range.
func resolveWindow(fromFlag, toFlag string, days int, cfg config.Config, now time.Time) (time.Time, time.Time, error) {
	if fromFlag == "" && toFlag != "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--from is required when --to is specified")
	}
	if fromFlag != "" && days > 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("--days cannot be combined with --from")
	}

	if fromFlag != "" {
		from, err := time.Parse("2006-01-02", fromFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from value %q: %w", fromFlag, err)
		}
		to := now
		if toFlag != "" {
			t, err := time.Parse("2006-01-02", toFlag)
			if err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("invalid --to value %q: %w", toFlag, err)
			}
			to = timecalc.EndOfDay(t)
		}
		return timecalc.StartOfDay(from), to, nil
	}

	if days <= 0 {
		days = cfg.Tracker.HistoryDays
	}
	return now.AddDate(0, 0, -days), now, nil
}

// newCalculator maps the tracker config onto clustering options.
func newCalculator(cfg config.Config) (*cluster.Calculator, error) {
	opts := cluster.Options{
		TauHours:        cfg.Tracker.TauHours,
		Threshold:       cfg.Tracker.ClusterThreshold,
		MaxSessionHours: cfg.Tracker.MaxSessionHours,
		MinGapMinutes:   cfg.Tracker.MinGapMinutes,
	}
	opts.Location = time.Local
	if cfg.Tracker.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Tracker.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Tracker.Timezone, err)
		}
		opts.Location = loc
	}
	return cluster.New(opts)
}

func newCommitSource(ctx context.Context, cfg config.Config, logger *zap.Logger) (*github.Client, error) {
	ts, err := github.TokenSource(ctx, cfg.GitHub)
	if err != nil {
		return nil, err
	}
	return github.NewClient(ctx, ts, github.Options{
		Org:  cfg.GitHub.Org,
		User: cfg.GitHub.User,
	}, logger)
}

// runTrackDryRun previews the sessions a real run would sync. Nothing is
// written, neither to Clockify nor to the state file.
func runTrackDryRun(ctx context.Context, source tracker.CommitSource, calc *cluster.Calculator, led *ledger.Ledger, from, to time.Time) error {
	commits, err := source.FetchAll(ctx, from, to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var fresh []model.Commit
	for _, c := range commits {
		if !led.Seen(c.SHA) {
			fresh = append(fresh, c)
		}
	}
	sessions := calc.Sessions(fresh)

	fmt.Printf("[dry-run] %d commits fetched, %d new, %d sessions:\n",
		len(commits), len(fresh), len(sessions))
	for _, s := range sessions {
		op := "create"
		if _, ok := led.EntryID(s.Key()); ok {
			op = "update"
		}
		fmt.Printf("  %s  %s  %s  %s\n", op, s.Author, s.Description(), timecalc.FormatHours(s.Hours))
	}
	return nil
}

func printTrackSummary(result reconcile.Result) {
	fmt.Printf("Synced %d sessions: %d created, %d updated, %d failed, %d duplicate commits skipped.\n",
		result.Synced(), result.Created, result.Updated, result.Failed, result.Duplicates)
	for _, key := range result.Dropped {
		fmt.Printf("  dropped: %s (will not be retried)\n", key)
	}
}

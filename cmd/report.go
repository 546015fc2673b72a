package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"commitclock/internal/cluster"
)

var (
	reportFrom string
	reportTo   string
	reportDays int
	reportCSV  bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show inferred work sessions without syncing",
	Long: `report fetches commits, clusters them into sessions and prints the
result together with per-day totals. Nothing is written to Clockify or
the local state file.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "Start date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "End date (YYYY-MM-DD); defaults to today")
	reportCmd.Flags().IntVar(&reportDays, "days", 0, "Report the last N days (default from config)")
	reportCmd.Flags().BoolVar(&reportCSV, "csv", false, "Emit daily totals as CSV")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newLogger()
	defer logger.Sync()

	from, to, err := resolveWindow(reportFrom, reportTo, reportDays, cfg, time.Now())
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

	commits, err := source.FetchAll(ctx, from, to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	sessions := calc.Sessions(commits)
	totals := cluster.DailyHours(sessions)

	if reportCSV {
		fmt.Println("date,author,hours")
		for _, d := range totals {
			fmt.Printf("%s,%s,%.2f\n", d.Date, d.Author, d.Hours)
		}
		return nil
	}

	fmt.Printf("Sessions %s → %s (%d commits)\n\n",
		from.Format("2006-01-02"), to.Format("2006-01-02"), len(commits))
	fmt.Print(cluster.FormatSessions(sessions))

	if len(totals) > 0 {
		fmt.Println()
		fmt.Println("Daily totals")
		fmt.Println("--------------------------------")
		var sum float64
		for _, d := range totals {
			fmt.Printf("%s  %-16s%6.2fh\n", d.Date, d.Author, d.Hours)
			sum += d.Hours
		}
		fmt.Println("--------------------------------")
		fmt.Printf("%-28s%6.2fh\n", "Total", sum)
	}
	return nil
}

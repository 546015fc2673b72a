package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"commitclock/internal/config"
	"commitclock/internal/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	base, err := config.BaseDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	path := config.StatePath(base)
	led, err := ledger.Load(path, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	target := cfg.GitHub.Org
	if target == "" {
		target = cfg.GitHub.User
	}
	if target == "" {
		target = "(not configured)"
	}

	fmt.Printf("Tracking: %s\n", target)
	fmt.Printf("State file: %s\n", path)
	if info, err := os.Stat(path); err == nil {
		fmt.Printf("Last saved: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Last saved: never")
	}
	fmt.Printf("Commits seen: %d\n", led.SeenCount())
	fmt.Printf("Clockify entries tracked: %d\n", led.EntryCount())
	return nil
}

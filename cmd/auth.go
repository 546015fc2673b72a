package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"commitclock/internal/github"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Log in to GitHub via the device code flow",
	Long: `auth runs the GitHub device code flow and stores the resulting token
under ~/.commitclock/auth/. Not needed when a personal access token is
configured; that always takes precedence.`,
	Args: cobra.NoArgs,
	RunE: runAuth,
}

func runAuth(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	if cfg.GitHub.Token != "" {
		fmt.Println("A personal access token is configured; it will be used instead of the device flow login.")
	}

	tok, err := github.Authenticate(context.Background(), cfg.GitHub.ClientID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Authentication failed: %v\n", err)
		os.Exit(1)
	}

	if tok.Expiry.IsZero() {
		fmt.Println("Logged in.")
	} else {
		fmt.Printf("Logged in. Token valid until %s.\n", tok.Expiry.Format("2006-01-02 15:04"))
	}
	return nil
}

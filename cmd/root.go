package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"commitclock/internal/config"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "commitclock",
	Short: "commitclock – turn GitHub commits into Clockify time entries",
	Long: `commitclock infers work sessions from your GitHub commit history and
keeps them reconciled into Clockify. Configuration lives in
~/.commitclock/config.json; a commented template is written on first run.`,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(statusCmd)
}

// newLogger builds the CLI logger. Output goes to stderr so command output
// on stdout stays pipeable.
func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return logger
}

// loadConfig reads the config file, exiting with a hint on first run.
func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return cfg
}

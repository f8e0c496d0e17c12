// Package cmd contains CLI command definitions
package cmd

import (
	"fmt"
	"os"

	"github.com/crmqa/crm-e2e/internal/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Logger is the shared logger instance for all commands
	Logger = logrus.New()

	rootCmd = &cobra.Command{
		Use:   "crm-e2e",
		Short: "CRM end-to-end harness tooling",
		Long: `crm-e2e manages the artifacts and session state of the CRM end-to-end suites.

The suites themselves run with "go test ./e2e/...". Run without arguments to
launch interactive mode, or use subcommands for direct operations.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			InitLogger()
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInteractive()
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// InitLogger sets the shared logger level from LOG_LEVEL, reading .env first.
func InitLogger() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		// Can't use Logger here since it might not be set up yet
		fmt.Printf("Invalid LOG_LEVEL '%s', defaulting to 'info'\n", logLevel)
		level = logrus.InfoLevel
	}
	Logger.SetLevel(level)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

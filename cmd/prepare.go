package cmd

import (
	"os"

	"github.com/crmqa/crm-e2e/internal/actions"
	"github.com/spf13/cobra"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Create the artifact directories",
	Long: `Creates api-logs, reports, screenshots, traces, videos and test-results below
ARTIFACTS_DIR. Safe to run multiple times.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return actions.Prepare(os.Stdout, cfg)
	},
}

func init() {
	rootCmd.AddCommand(prepareCmd)
}

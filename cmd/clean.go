package cmd

import (
	"fmt"
	"os"

	"github.com/crmqa/crm-e2e/internal/actions"
	"github.com/spf13/cobra"
)

var cleanYes bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete artifacts of previous runs (destructive)",
	Long: `Deletes api-logs, reports, screenshots, traces, videos and attachments below
ARTIFACTS_DIR. Cross-test session state is kept; use "state clear" for it.

Without --yes the directories are only listed.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if err := actions.Clean(os.Stdout, cfg, cleanYes); err != nil {
			return err
		}
		if !cleanYes {
			fmt.Println("Re-run with --yes to delete them.")
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanYes, "yes", false, "Delete without listing first")
	rootCmd.AddCommand(cleanCmd)
}

package cmd

import (
	"os"

	"github.com/crmqa/crm-e2e/internal/actions"
	"github.com/spf13/cobra"
)

var reportFile string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the API metrics of the last run",
	Long: `Reads reports/api-metrics.json (or --file) and prints the run summary and the
per-endpoint latency table.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		path := reportFile
		if path == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path = actions.ReportPath(cfg)
		}
		return actions.Report(os.Stdout, Logger, path)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFile, "file", "", "Metrics JSON report to read")
	rootCmd.AddCommand(reportCmd)
}

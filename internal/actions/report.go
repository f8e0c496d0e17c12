package actions

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/crmqa/crm-e2e/internal/config"
	"github.com/crmqa/crm-e2e/internal/testing/metrics"
	"github.com/crmqa/crm-e2e/internal/testing/output"
	"github.com/crmqa/crm-e2e/internal/testing/table"
	"github.com/sirupsen/logrus"
)

// ReportPath returns the default location of the run metrics JSON report.
func ReportPath(cfg *config.Config) string {
	return filepath.Join(cfg.Path(config.ReportsDir), metrics.JSONReportFile)
}

// Report prints the run summary stored at path as tables.
func Report(w io.Writer, log logrus.FieldLogger, path string) error {
	summary, err := metrics.ReadSummary(path)
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}

	renderer := table.NewRenderer(log)
	if err := renderer.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start renderer: %w", err)
	}
	defer func() {
		_ = renderer.Stop()
	}()

	out := output.NewFormatter(w,
		table.NewSummaryFormatter(log, renderer),
		table.NewEndpointsFormatter(log, renderer),
	)
	out.PrintPhase(fmt.Sprintf("Report %s", path))
	out.PrintProgress(fmt.Sprintf("generated %s", summary.GeneratedAt.Format(time.RFC3339)), 0)
	out.PrintSummary(summary, 0)
	out.PrintEndpoints(summary)

	return nil
}

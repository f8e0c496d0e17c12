package table

import (
	"fmt"
	"time"

	"github.com/crmqa/crm-e2e/internal/testing/format"
	"github.com/crmqa/crm-e2e/internal/testing/metrics"
	"github.com/sirupsen/logrus"
)

// SummaryFormatter formats run-level API statistics as a table.
type SummaryFormatter struct {
	log      logrus.FieldLogger
	renderer Renderer
	colors   *ColorHelper
}

// NewSummaryFormatter creates a new summary table formatter.
func NewSummaryFormatter(log logrus.FieldLogger, renderer Renderer) *SummaryFormatter {
	return &SummaryFormatter{
		log:      log.WithField("component", "table.summary_formatter"),
		renderer: renderer,
		colors:   NewColorHelper(),
	}
}

// Format converts a run summary into a formatted table string. elapsed is the
// wall time of the run; zero omits the row.
func (f *SummaryFormatter) Format(summary *metrics.RunSummary, elapsed time.Duration) string {
	if summary == nil {
		return "No API calls recorded"
	}

	successValue := fmt.Sprintf("%d", summary.Success)
	if summary.Success == summary.TotalRequests {
		successValue = f.colors.Success(successValue)
	}

	failedValue := f.colors.Success("0")
	if summary.Failed > 0 {
		failedValue = f.colors.Failure(fmt.Sprintf("%d", summary.Failed))
	}

	var (
		headers = []string{"Metric", "Value"}
		rows    = [][]string{
			{"Run", f.colors.Muted(summary.RunID)},
			{"Total Requests", f.colors.Bold(fmt.Sprintf("%d", summary.TotalRequests))},
			{"Success", successValue},
			{"Failed", failedValue},
			{"Success Rate", f.colors.FormatPercentage(summary.SuccessRate)},
			{"Endpoints", fmt.Sprintf("%d", len(summary.Endpoints))},
		}
	)

	if elapsed > 0 {
		rows = append(rows, []string{"Run Duration", format.Duration(elapsed)})
	}

	return "\n" + f.colors.Header("▸ API Summary") + "\n\n" + f.renderer.RenderToString(headers, rows)
}

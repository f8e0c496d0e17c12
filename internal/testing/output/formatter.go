// Package output prints the human-facing run report.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/crmqa/crm-e2e/internal/testing/format"
	"github.com/crmqa/crm-e2e/internal/testing/metrics"
	"github.com/crmqa/crm-e2e/internal/testing/table"
	"github.com/fatih/color"
)

// Formatter provides clean, human-friendly output
type Formatter interface {
	PrintPhase(phase string)
	PrintProgress(message string, duration time.Duration)
	PrintSuccess(message string)
	PrintError(message string, err error)
	PrintSummary(summary *metrics.RunSummary, elapsed time.Duration)
	PrintEndpoints(summary *metrics.RunSummary)
}

type formatter struct {
	writer io.Writer

	summaryFormatter   *table.SummaryFormatter
	endpointsFormatter *table.EndpointsFormatter

	red  *color.Color
	blue *color.Color
	gray *color.Color
	ok   *color.Color
}

// NewFormatter creates a new output formatter
func NewFormatter(
	writer io.Writer,
	summaryFormatter *table.SummaryFormatter,
	endpointsFormatter *table.EndpointsFormatter,
) Formatter {
	return &formatter{
		writer:             writer,
		summaryFormatter:   summaryFormatter,
		endpointsFormatter: endpointsFormatter,
		red:                color.New(color.FgRed),
		blue:               color.New(color.FgBlue),
		gray:               color.New(color.FgHiBlack),
		ok:                 color.New(color.FgGreen),
	}
}

// PrintPhase prints phase separator
func (f *formatter) PrintPhase(phase string) {
	f.blue.Fprintf(f.writer, "\n▸ %s\n", phase)
}

// PrintProgress prints a message with its timing when known.
func (f *formatter) PrintProgress(message string, duration time.Duration) {
	if duration > 0 {
		f.gray.Fprintf(f.writer, "%s (%s)\n", message, format.Duration(duration))
	} else {
		fmt.Fprintf(f.writer, "%s\n", message)
	}
}

// PrintSuccess prints message in green.
func (f *formatter) PrintSuccess(message string) {
	f.ok.Fprintf(f.writer, "%s\n", message)
}

// PrintError prints message and the error in red.
func (f *formatter) PrintError(message string, err error) {
	f.red.Fprintf(f.writer, "%s", message)
	if err != nil {
		f.red.Fprintf(f.writer, ": %v", err)
	}
	fmt.Fprintf(f.writer, "\n")
}

// PrintSummary prints the run-level API statistics.
func (f *formatter) PrintSummary(summary *metrics.RunSummary, elapsed time.Duration) {
	fmt.Fprintln(f.writer, f.summaryFormatter.Format(summary, elapsed))
}

// PrintEndpoints prints the per-endpoint latency table. Nothing is printed
// for an empty run.
func (f *formatter) PrintEndpoints(summary *metrics.RunSummary) {
	if summary == nil {
		return
	}
	fmt.Fprintln(f.writer, f.endpointsFormatter.Format(summary.Endpoints))
}

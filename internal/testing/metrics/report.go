package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// JSONReportFile is the structured run summary file name.
	JSONReportFile = "api-metrics.json"
	// TextReportFile is the flat human-readable summary file name.
	TextReportFile = "api-metrics.txt"
)

// WriteReports persists summary as JSON and as flat text inside dir.
func WriteReports(dir string, summary *RunSummary) (jsonPath, textPath string, err error) {
	if summary == nil {
		return "", "", nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating report dir: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encoding run summary: %w", err)
	}

	jsonPath = filepath.Join(dir, JSONReportFile)
	if err := os.WriteFile(jsonPath, data, 0o600); err != nil {
		return "", "", fmt.Errorf("writing %s: %w", jsonPath, err)
	}

	textPath = filepath.Join(dir, TextReportFile)
	if err := os.WriteFile(textPath, []byte(FormatText(summary)), 0o600); err != nil {
		return "", "", fmt.Errorf("writing %s: %w", textPath, err)
	}

	return jsonPath, textPath, nil
}

// FormatText renders the flat summary written to api-metrics.txt.
func FormatText(summary *RunSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Total requests: %d\n", summary.TotalRequests)
	fmt.Fprintf(&b, "Success: %d\n", summary.Success)
	fmt.Fprintf(&b, "Failed: %d\n", summary.Failed)
	fmt.Fprintf(&b, "Success rate: %.2f%%\n", summary.SuccessRate)

	return b.String()
}

// ReadSummary loads a previously written api-metrics.json.
func ReadSummary(path string) (*RunSummary, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- report path chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var summary RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	return &summary, nil
}

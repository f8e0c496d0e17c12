package actions

import (
	"fmt"
	"io"
	"os"

	"github.com/crmqa/crm-e2e/internal/config"
)

// cleanTargets are removed by Clean. Cross-test state is kept; see ClearState.
var cleanTargets = []string{
	config.APILogsDir,
	config.ReportsDir,
	config.ScreenshotsDir,
	config.TracesDir,
	config.VideosDir,
	config.AttachmentsDir,
}

// Clean deletes the artifacts of previous runs. With apply false it only
// lists what would be removed so the caller can ask for confirmation.
func Clean(w io.Writer, cfg *config.Config, apply bool) error {
	if !apply {
		fmt.Fprintln(w, "\n⚠️  The following directories will be deleted:")
		for _, dir := range cleanTargets {
			fmt.Fprintf(w, "  - %s\n", cfg.Path(dir))
		}
		fmt.Fprintln(w)
		return nil
	}

	for _, dir := range cleanTargets {
		path := cfg.Path(dir)
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		fmt.Fprintf(w, "🗑️  removed %s\n", path)
	}

	return nil
}

package actions

import (
	"fmt"
	"io"
	"os"

	"github.com/crmqa/crm-e2e/internal/config"
)

// Prepare creates every artifact directory under the configured root. It is
// safe to run repeatedly.
func Prepare(w io.Writer, cfg *config.Config) error {
	for _, dir := range config.ArtifactDirs {
		path := cfg.Path(dir)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		fmt.Fprintf(w, "✅ %s\n", path)
	}

	return nil
}

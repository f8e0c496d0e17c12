// Package actions implements the operations behind the CLI commands and the
// interactive menu.
package actions

import (
	"fmt"
	"io"

	"github.com/crmqa/crm-e2e/internal/config"
)

// ShowConfig displays the current configuration
func ShowConfig(w io.Writer, cfg *config.Config) error {
	_, err := fmt.Fprintln(w, cfg.String())
	return err
}

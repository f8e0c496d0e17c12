package actions

import (
	"errors"
	"fmt"
	"io"

	"github.com/crmqa/crm-e2e/internal/config"
	"github.com/crmqa/crm-e2e/internal/state"
)

// State targets accepted by ClearState.
const (
	StateAuth    = "auth"
	StateContact = "contact"
	StateAll     = "all"
)

// ErrUnknownStateTarget is returned for a target other than auth, contact or all.
var ErrUnknownStateTarget = errors.New("unknown state target")

// ShowState prints the persisted cross-test state.
func ShowState(w io.Writer, cfg *config.Config) error {
	auth := state.NewAuthStore(cfg.Path(config.AuthStateFile))
	contacts := state.NewContactStore(cfg.Path(config.LastContactFile))

	fmt.Fprintln(w, "Session State:")
	fmt.Fprintln(w, "==============")

	st, err := auth.Load()
	switch {
	case errors.Is(err, state.ErrNotFound):
		fmt.Fprintf(w, "Auth state:      (not found) %s\n", auth.Path)
	case err != nil:
		return fmt.Errorf("failed to read auth state: %w", err)
	default:
		fmt.Fprintf(w, "Auth state:      %s (%d cookies, %d origins)\n", auth.Path, len(st.Cookies), len(st.Origins))
	}

	contact, err := contacts.Load()
	switch {
	case errors.Is(err, state.ErrNotFound):
		fmt.Fprintf(w, "Last contact:    (not found) %s\n", contacts.Path)
	case err != nil:
		return fmt.Errorf("failed to read last contact: %w", err)
	default:
		fmt.Fprintf(w, "Last contact:    %s (edits: %d)\n", contact.FullName, contact.EditCount)
	}

	return nil
}

// ClearState removes the persisted state named by target.
func ClearState(w io.Writer, cfg *config.Config, target string) error {
	auth := state.NewAuthStore(cfg.Path(config.AuthStateFile))
	contacts := state.NewContactStore(cfg.Path(config.LastContactFile))

	var clears []func() error
	switch target {
	case StateAuth:
		clears = append(clears, auth.Clear)
	case StateContact:
		clears = append(clears, contacts.Clear)
	case StateAll:
		clears = append(clears, auth.Clear, contacts.Clear)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStateTarget, target)
	}

	for _, fn := range clears {
		if err := fn(); err != nil {
			return fmt.Errorf("failed to clear state: %w", err)
		}
	}

	fmt.Fprintf(w, "✅ cleared %s state\n", target)
	return nil
}

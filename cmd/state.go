package cmd

import (
	"os"

	"github.com/crmqa/crm-e2e/internal/actions"
	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or clear cross-test session state",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved auth state and last contact",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return actions.ShowState(os.Stdout, cfg)
	},
}

var stateClearCmd = &cobra.Command{
	Use:       "clear [auth|contact|all]",
	Short:     "Remove saved session state",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{actions.StateAuth, actions.StateContact, actions.StateAll},
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		target := actions.StateAll
		if len(args) == 1 {
			target = args[0]
		}
		return actions.ClearState(os.Stdout, cfg, target)
	},
}

func init() {
	stateCmd.AddCommand(stateShowCmd, stateClearCmd)
	rootCmd.AddCommand(stateCmd)
}

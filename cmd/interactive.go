package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/crmqa/crm-e2e/internal/actions"
	"github.com/crmqa/crm-e2e/internal/interactive"
	"github.com/spf13/cobra"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Launch interactive mode",
	Long:  `Launches the interactive menu for the harness artifacts and session state.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runInteractive()
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

// withPause prints an action failure and waits for Enter either way.
func withPause(fn func() error) func() error {
	return func() error {
		if err := fn(); err != nil {
			fmt.Printf("\n❌ Error: %v\n", err)
		}
		interactive.PauseForEnter()
		return nil
	}
}

func runInteractive() error {
	fmt.Println("CRM E2E - Interactive Mode")
	fmt.Println("==========================")
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	for {
		options := []interactive.MenuOption{
			{
				Name:        "📋 Show Config",
				Description: "Display current environment configuration",
				Action:      withPause(func() error { return actions.ShowConfig(os.Stdout, cfg) }),
			},
			{
				Name:        "📁 Prepare",
				Description: "Create the artifact directories (safe to run multiple times)",
				Action:      withPause(func() error { return actions.Prepare(os.Stdout, cfg) }),
			},
			{
				Name:        "📊 Report",
				Description: "Print the API metrics of the last run",
				Action: withPause(func() error {
					return actions.Report(os.Stdout, Logger, actions.ReportPath(cfg))
				}),
			},
			{
				Name:        "🔑 Session State",
				Description: "Show or clear the saved login and last contact",
				Action: withPause(func() error {
					if err := actions.ShowState(os.Stdout, cfg); err != nil {
						return err
					}
					if !interactive.Confirm("Clear all session state?") {
						return nil
					}
					return actions.ClearState(os.Stdout, cfg, actions.StateAll)
				}),
			},
			{
				Name:        "🗑️  Clean",
				Description: "Delete artifacts of previous runs (destructive)",
				Action: withPause(func() error {
					if err := actions.Clean(os.Stdout, cfg, false); err != nil {
						return err
					}
					if !interactive.Confirm("⚠️  Delete these directories?") {
						fmt.Println("Clean canceled.")
						return nil
					}
					return actions.Clean(os.Stdout, cfg, true)
				}),
			},
		}

		if err := interactive.ShowMenu("What would you like to do?", options); err != nil {
			if errors.Is(err, interactive.ErrExit) {
				fmt.Println("Goodbye!")
				return nil
			}
			return err
		}

		fmt.Println()
	}
}

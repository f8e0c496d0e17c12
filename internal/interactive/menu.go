// Package interactive provides the terminal menu of the harness CLI.
package interactive

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
)

const exitChoice = "Exit"

// MenuOption is one entry of a menu.
type MenuOption struct {
	Name        string
	Description string
	Action      func() error
}

var (
	// ErrExit is returned when the user leaves the menu.
	ErrExit = errors.New("exit")
	// ErrInvalidSelection is returned when the answer matches no option.
	ErrInvalidSelection = errors.New("invalid selection")
)

// Choices renders the labels shown for options, Exit last.
func Choices(options []MenuOption) []string {
	choices := make([]string, 0, len(options)+1)
	for _, opt := range options {
		choices = append(choices, label(opt))
	}
	return append(choices, exitChoice)
}

// Dispatch runs the action of the option whose label is selected.
func Dispatch(options []MenuOption, selected string) error {
	if selected == exitChoice {
		return ErrExit
	}

	for _, opt := range options {
		if label(opt) == selected {
			return opt.Action()
		}
	}

	return ErrInvalidSelection
}

func label(opt MenuOption) string {
	if opt.Description == "" {
		return opt.Name
	}
	return fmt.Sprintf("%s - %s", opt.Name, opt.Description)
}

// ShowMenu asks for one of options and runs it. An interrupted prompt is
// treated as Exit.
func ShowMenu(message string, options []MenuOption) error {
	var selected string
	prompt := &survey.Select{
		Message: message,
		Options: Choices(options),
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return ErrExit
	}

	return Dispatch(options, selected)
}

// PauseForEnter waits for the user to press Enter
func PauseForEnter() {
	fmt.Println("\nPress Enter to continue...")
	_, _ = fmt.Scanln()
}

// Confirm asks a yes/no question defaulting to no.
func Confirm(message string) bool {
	confirmed := false
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	_ = survey.AskOne(prompt, &confirmed)
	return confirmed
}

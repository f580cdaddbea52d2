package output

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh/spinner"
	"golang.org/x/term"
)

// IsTTY reports whether stdout is attached to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// RunWithSpinner executes action while a spinner titled title is shown.
// Without a TTY the action runs directly.
func RunWithSpinner(title string, action func() error) error {
	if !IsTTY() {
		return action()
	}

	var actionErr error
	if err := spinner.New().
		Title(title).
		Action(func() {
			actionErr = action()
		}).
		Run(); err != nil {
		return fmt.Errorf("spinner error: %w", err)
	}

	return actionErr
}

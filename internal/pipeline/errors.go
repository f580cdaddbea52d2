package pipeline

import (
	"errors"
	"fmt"

	oerrors "github.com/appforge/cli/internal/errors"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("runner is closed")

// DeadlineError reports a run abandoned because the caller's deadline
// passed before its write phase.
type DeadlineError struct {
	RunID string
}

func (e *DeadlineError) Error() string {
	return fmt.Sprintf("run %s: caller deadline passed before the write phase", e.RunID)
}

func (e *DeadlineError) Unwrap() error {
	return oerrors.ErrCanceled
}

// SupersededError reports a run whose output would overwrite the tree of a
// newer run of the same project that already completed.
type SupersededError struct {
	RunID string
	By    string
}

func (e *SupersededError) Error() string {
	return fmt.Sprintf("run %s superseded by newer run %s", e.RunID, e.By)
}

func (e *SupersededError) Unwrap() error {
	return oerrors.ErrCanceled
}

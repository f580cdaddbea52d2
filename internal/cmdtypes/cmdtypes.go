// Package cmdtypes provides shared types for the cmd package and the
// helpers it delegates to. It is separate from internal/cmd to avoid
// import cycles.
package cmdtypes

import (
	oerrors "github.com/appforge/cli/internal/errors"

	"github.com/appforge/cli/internal/config"
)

// GlobalConfig holds CLI-wide configuration resolved during
// PersistentPreRunE. It is populated once at startup and passed into every
// sub-command constructor.
type GlobalConfig struct {
	Config     *config.Config
	ConfigPath string // resolved --config path
	Verbose    bool
}

// Exit codes, aliased from internal/errors.
const (
	ExitSuccess         = oerrors.ExitSuccess
	ExitGeneralError    = oerrors.ExitGeneralError
	ExitValidationError = oerrors.ExitValidationError
	ExitNotFound        = oerrors.ExitNotFound
)

// ExitError is a type alias to internal/errors.ExitError.
type ExitError = oerrors.ExitError

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/appforge/cli/internal/cmdtypes"
	"github.com/appforge/cli/internal/config"
	oerrors "github.com/appforge/cli/internal/errors"
)

// NewConfigVetCmd creates the config vet command.
func NewConfigVetCmd(gc *cmdtypes.GlobalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "vet",
		Short: "Validate the appforge configuration file",
		Long: `Validate the appforge configuration file.

The file is merged with APPFORGE_* environment variables and defaults, then
every setting is checked. The command validates ~/.appforge/config.yaml by
default. Use --config flag to specify a different location.`,
		Annotations: map[string]string{annotationSkipConfig: "true"},
		Args:        cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runConfigVet(c, gc)
		},
	}
}

func runConfigVet(c *cobra.Command, gc *cmdtypes.GlobalConfig) error {
	path, err := configPath(gc)
	if err != nil {
		return fmt.Errorf("getting config file path: %w", err)
	}

	expandedPath, err := config.ExpandPath(path)
	if err != nil {
		return fmt.Errorf("expanding config path: %w", err)
	}

	exists, err := config.ConfigFileExists(expandedPath)
	if err != nil {
		return fmt.Errorf("checking config file: %w", err)
	}
	if !exists {
		return &oerrors.ExitError{
			Code: oerrors.ExitNotFound,
			Err:  fmt.Errorf("config file not found: %s", expandedPath),
		}
	}

	cfg, err := config.NewLoader().LoadWithDefaults(expandedPath)
	if err != nil {
		return &oerrors.ExitError{Code: oerrors.ExitValidationError, Err: err}
	}

	if err := config.Validate(cfg); err != nil {
		var validationErrs config.ValidationErrors
		if errors.As(err, &validationErrs) {
			fmt.Fprintln(c.ErrOrStderr(), "Error: config validation failed")
			fmt.Fprintf(c.ErrOrStderr(), "  File: %s\n\n", expandedPath)
			for _, e := range validationErrs {
				fmt.Fprintf(c.ErrOrStderr(), "  %s: %s\n", e.Field, e.Message)
			}
			return &oerrors.ExitError{Code: oerrors.ExitValidationError, Err: err, Printed: true}
		}
		return fmt.Errorf("validating config: %w", err)
	}

	fmt.Fprintf(c.OutOrStdout(), "Config file is valid: %s\n", expandedPath)
	return nil
}

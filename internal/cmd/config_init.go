package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/appforge/cli/internal/cmdtypes"
	"github.com/appforge/cli/internal/config"
	oerrors "github.com/appforge/cli/internal/errors"
)

const configHeader = "# appforge CLI configuration\n# Every key can be overridden with an APPFORGE_* environment variable.\n\n"

// NewConfigInitCmd creates the config init command.
func NewConfigInitCmd(gc *cmdtypes.GlobalConfig) *cobra.Command {
	var force bool

	c := &cobra.Command{
		Use:   "init",
		Short: "Create a new appforge configuration file",
		Long: `Create a new appforge configuration file with default values.

The configuration file is created at ~/.appforge/config.yaml by default.
Use --config flag to specify a different location.`,
		Annotations: map[string]string{annotationSkipConfig: "true"},
		Args:        cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runConfigInit(c, gc, force)
		},
	}

	c.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing config file")

	return c
}

func runConfigInit(c *cobra.Command, gc *cmdtypes.GlobalConfig, force bool) error {
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
	if exists && !force {
		return &oerrors.ExitError{
			Code: oerrors.ExitGeneralError,
			Err:  fmt.Errorf("config file already exists at %s (use --force to overwrite)", expandedPath),
		}
	}

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append([]byte(configHeader), data...)

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Fprintf(c.OutOrStdout(), "Config file created: %s\n", expandedPath)
	return nil
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/appforge/cli/internal/cmdtypes"
	"github.com/appforge/cli/internal/config"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd(gc *cmdtypes.GlobalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  `Configuration management for the appforge CLI.`,
	}

	c.AddCommand(NewConfigInitCmd(gc))
	c.AddCommand(NewConfigVetCmd(gc))

	return c
}

// configPath returns the resolved config file path, falling back to the
// default location when the root command did not run.
func configPath(gc *cmdtypes.GlobalConfig) (string, error) {
	if gc.ConfigPath != "" {
		return gc.ConfigPath, nil
	}
	resolved, err := config.ResolveConfigPath("")
	if err != nil {
		return "", err
	}
	return resolved.Value, nil
}

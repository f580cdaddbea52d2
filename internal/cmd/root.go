// Package cmd provides CLI command implementations.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/appforge/cli/internal/cmdtypes"
	"github.com/appforge/cli/internal/config"
	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/output"
	"github.com/appforge/cli/internal/version"
)

// annotationSkipConfig marks commands that must work with a missing or
// broken config file.
const annotationSkipConfig = "appforge.dev/skip-config"

// rootFlags holds the persistent flags of the root command.
type rootFlags struct {
	config     string
	verbose    bool
	timestamps bool
}

// NewRootCmd creates the root command for the appforge CLI.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	gc := &cmdtypes.GlobalConfig{}

	rootCmd := &cobra.Command{
		Use:   "appforge",
		Short: "Generate full-stack app scaffolds",
		Long: `appforge turns an app description into a ready-to-run project.

An app is described by a config file (appName, entities, features) or by a
plain-language prompt. Every generation run writes the project's source tree
to the workspace and packages it into a zip archive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			return initializeGlobals(c, flags, gc)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.config, "config", "", "Path to config file (env: APPFORGE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&flags.timestamps, "timestamps", true, "Show timestamps in log output")

	rootCmd.AddCommand(NewGenerateCmd(gc))
	rootCmd.AddCommand(NewStatusCmd(gc))
	rootCmd.AddCommand(NewFilesCmd(gc))
	rootCmd.AddCommand(NewServeCmd(gc))
	rootCmd.AddCommand(NewConfigCmd(gc))
	rootCmd.AddCommand(NewVersionCmd(gc))

	return rootCmd
}

// initializeGlobals loads configuration and sets up logging.
func initializeGlobals(c *cobra.Command, flags *rootFlags, gc *cmdtypes.GlobalConfig) error {
	gc.Verbose = flags.verbose

	configPath, err := config.ResolveConfigPath(flags.config)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}
	gc.ConfigPath = configPath.Value

	cfg, loadErr := config.NewLoader().LoadWithDefaults(configPath.Value)
	if loadErr == nil {
		gc.Config = cfg
	}

	// Build LogConfig with precedence: flag > config > default(true)
	logCfg := output.LogConfig{Verbose: flags.verbose}
	if c.Flags().Changed("timestamps") {
		logCfg.Timestamps = output.BoolPtr(flags.timestamps)
	} else if cfg != nil && cfg.Log.Timestamps != nil {
		logCfg.Timestamps = cfg.Log.Timestamps
	}
	output.SetupLogging(logCfg)

	if loadErr != nil {
		if c.Annotations[annotationSkipConfig] == "true" {
			output.Debug("config load error", "error", loadErr)
			return nil
		}
		return &oerrors.ExitError{
			Code: oerrors.ExitValidationError,
			Err:  fmt.Errorf("loading config %s: %w", configPath.Value, loadErr),
		}
	}

	config.LogResolvedValues([]config.ResolvedValue{configPath})
	output.Debug("initializing CLI",
		"version", version.Version,
		"workspace", cfg.WorkspaceDir,
		"artifacts", cfg.ArtifactsDir,
		"registry", cfg.Registry.Driver,
	)

	return nil
}

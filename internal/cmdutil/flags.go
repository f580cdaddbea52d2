// Package cmdutil provides shared command utilities for appforge
// subcommands. It centralizes flag groups, runner construction, and
// output formatting helpers.
package cmdutil

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/appforge/cli/internal/appconfig"
	"github.com/appforge/cli/internal/config"
)

// OwnerFlags holds the owner recorded in generated apps.
type OwnerFlags struct {
	Email string
	Name  string
}

// AddTo registers the owner flags on the given cobra command.
func (f *OwnerFlags) AddTo(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Email, "owner-email", "",
		"Owner email (env: APPFORGE_OWNER_EMAIL, default: from config)")
	cmd.Flags().StringVar(&f.Name, "owner-name", "",
		"Owner display name (env: APPFORGE_OWNER_NAME, default: from config)")
}

// Resolve applies flag > env > config > default precedence and logs the
// outcome at debug level.
func (f *OwnerFlags) Resolve(cfg *config.Config) appconfig.Owner {
	email := config.Resolve(config.ResolveOptions{
		Key:         "owner.email",
		FlagValue:   f.Email,
		EnvVar:      "APPFORGE_OWNER_EMAIL",
		ConfigValue: cfg.Owner.Email,
		Default:     config.DefaultOwnerEmail,
	})

	// A name only falls back to the default when the email did too.
	nameDefault := ""
	if email.Source == config.SourceDefault {
		nameDefault = config.DefaultOwnerName
	}
	name := config.Resolve(config.ResolveOptions{
		Key:         "owner.name",
		FlagValue:   f.Name,
		EnvVar:      "APPFORGE_OWNER_NAME",
		ConfigValue: cfg.Owner.Name,
		Default:     nameDefault,
	})

	config.LogResolvedValues([]config.ResolvedValue{email, name})
	return appconfig.Owner{Email: email.Value, Name: name.Value}
}

// GenerateFlags holds the flags of `appforge generate`.
type GenerateFlags struct {
	ProjectID string
	Prompt    string
	Watch     bool
	Diff      bool
	Timeout   time.Duration
	Owner     OwnerFlags
}

// AddTo registers the generate flags on the given cobra command.
func (f *GenerateFlags) AddTo(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.ProjectID, "project", "p", "",
		"Project id (default: derived from the app name)")
	cmd.Flags().StringVar(&f.Prompt, "prompt", "",
		"Describe the app in plain words instead of passing a config file")
	cmd.Flags().BoolVarP(&f.Watch, "watch", "w", false,
		"Regenerate on every write to the config file")
	cmd.Flags().BoolVar(&f.Diff, "diff", false,
		"Show how the project manifest changed after each run")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 0,
		"Fail the run if its write phase has not started within this duration (0 = no limit)")
	f.Owner.AddTo(cmd)
}

// Validate checks flag and argument combinations.
func (f *GenerateFlags) Validate(args []string) error {
	switch {
	case f.Prompt != "" && len(args) > 0:
		return fmt.Errorf("pass either a config file or --prompt, not both")
	case f.Prompt == "" && len(args) == 0:
		return fmt.Errorf("a config file or --prompt is required")
	case f.Watch && f.Prompt != "":
		return fmt.Errorf("--watch needs a config file")
	case f.Watch && f.ProjectID == "":
		return fmt.Errorf("--watch needs --project so every run targets the same project")
	case f.Diff && f.ProjectID == "":
		return fmt.Errorf("--diff needs --project to find the previous manifest")
	}
	if f.ProjectID != "" {
		if err := appconfig.ValidateProjectID(f.ProjectID); err != nil {
			return err
		}
	}
	return nil
}

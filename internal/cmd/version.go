package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/appforge/cli/internal/cmdtypes"
	"github.com/appforge/cli/internal/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd(_ *cmdtypes.GlobalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Show appforge CLI version information.

Displays:
  - appforge CLI version, commit, and build date
  - CUE SDK version used to check app configs`,
		Annotations: map[string]string{annotationSkipConfig: "true"},
		Args:        cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			fmt.Fprintln(c.OutOrStdout(), version.Get().String())
			return nil
		},
	}
}

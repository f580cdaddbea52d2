package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/appforge/cli/internal/appconfig"
	"github.com/appforge/cli/internal/cmdtypes"
	"github.com/appforge/cli/internal/cmdutil"
	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/output"
	"github.com/appforge/cli/internal/registry"
)

// Output formats accepted by --output.
const (
	formatTable = "table"
	formatYAML  = "yaml"
	formatJSON  = "json"
)

// NewStatusCmd creates the status command.
func NewStatusCmd(gc *cmdtypes.GlobalConfig) *cobra.Command {
	var outputFormat string

	c := &cobra.Command{
		Use:   "status [project]",
		Short: "Show generation runs",
		Long: `Show generation runs recorded in the registry.

Without a project, the newest run of every project is listed. With a project,
every run of that project is listed, newest first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runStatus(c.Context(), c.OutOrStdout(), args, outputFormat, gc)
		},
	}

	c.Flags().StringVarP(&outputFormat, "output", "o", formatTable, "Output format: table, yaml, json")

	return c
}

func runStatus(ctx context.Context, w io.Writer, args []string, format string, gc *cmdtypes.GlobalConfig) error {
	switch format {
	case formatTable, formatYAML, formatJSON:
	default:
		return &oerrors.ExitError{
			Code: oerrors.ExitValidationError,
			Err:  fmt.Errorf("unknown output format %q (use table, yaml or json)", format),
		}
	}

	store, err := cmdutil.OpenStore(gc.Config)
	if err != nil {
		return err
	}
	defer store.Close()

	var recs []*registry.Record
	if len(args) == 1 {
		if err := appconfig.ValidateProjectID(args[0]); err != nil {
			return &oerrors.ExitError{Code: oerrors.ExitValidationError, Err: err}
		}
		recs, err = store.Runs(ctx, args[0])
		if err == nil && len(recs) == 0 {
			err = oerrors.NewNotFoundError(fmt.Sprintf("no runs for project %q", args[0]), "",
				"Generate the project first")
		}
	} else {
		recs, err = store.List(ctx)
	}
	if err != nil {
		cmdutil.PrintError("listing runs", err)
		return &oerrors.ExitError{Code: oerrors.ExitCodeFromError(err), Err: err, Printed: true}
	}

	return writeRecords(w, recs, format, time.Now())
}

func writeRecords(w io.Writer, recs []*registry.Record, format string, now time.Time) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(recs, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling runs: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case formatYAML:
		data, err := yaml.Marshal(recs)
		if err != nil {
			return fmt.Errorf("marshaling runs: %w", err)
		}
		fmt.Fprint(w, string(data))
	default:
		if len(recs) == 0 {
			fmt.Fprintln(w, "No projects found.")
			return nil
		}
		fmt.Fprintln(w, output.RenderRunTable(cmdutil.RunRows(recs, now)))
	}
	return nil
}

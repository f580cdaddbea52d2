package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/appforge/cli/internal/appconfig"
	"github.com/appforge/cli/internal/cmdtypes"
	"github.com/appforge/cli/internal/cmdutil"
	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/output"
	"github.com/appforge/cli/internal/workspace"
)

// NewFilesCmd creates the files command.
func NewFilesCmd(gc *cmdtypes.GlobalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "files <project> [path]",
		Short: "Browse a project's generated source tree",
		Long: `Browse a project's generated source tree.

With only a project, the tree is printed with file sizes. With a path, the
content of that file is printed.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(c *cobra.Command, args []string) error {
			return runFiles(c.OutOrStdout(), args, gc)
		},
	}
}

func runFiles(w io.Writer, args []string, gc *cmdtypes.GlobalConfig) error {
	projectID := args[0]
	if err := appconfig.ValidateProjectID(projectID); err != nil {
		return &oerrors.ExitError{Code: oerrors.ExitValidationError, Err: err}
	}

	entries, err := workspace.NewMaterializer(gc.Config.WorkspaceDir).Browse(projectID)
	if err != nil {
		cmdutil.PrintError("browsing project", err)
		return &oerrors.ExitError{Code: oerrors.ExitCodeFromError(err), Err: err, Printed: true}
	}

	if len(args) == 2 {
		for _, e := range entries {
			if e.Path == args[1] {
				fmt.Fprint(w, e.Content)
				return nil
			}
		}
		err := oerrors.NewNotFoundError(fmt.Sprintf("no file %q in project %q", args[1], projectID), args[1], "")
		cmdutil.PrintError("browsing project", err)
		return &oerrors.ExitError{Code: oerrors.ExitNotFound, Err: err, Printed: true}
	}

	files := make(map[string]string, len(entries))
	for _, e := range entries {
		files[e.Path] = fmt.Sprintf("%d B", len(e.Content))
	}
	fmt.Fprintln(w, output.RenderFileTree(projectID, files))
	return nil
}

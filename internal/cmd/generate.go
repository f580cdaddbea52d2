package cmd

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/appforge/cli/internal/appconfig"
	"github.com/appforge/cli/internal/cmdtypes"
	"github.com/appforge/cli/internal/cmdutil"
	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/output"
	"github.com/appforge/cli/internal/pipeline"
	"github.com/appforge/cli/internal/prompt"
)

// NewGenerateCmd creates the generate command.
func NewGenerateCmd(gc *cmdtypes.GlobalConfig) *cobra.Command {
	var flags cmdutil.GenerateFlags

	c := &cobra.Command{
		Use:   "generate [config-file]",
		Short: "Generate an app from a config file or a prompt",
		Long: `Generate an app from a config file or a prompt.

The config file is YAML or JSON with appName, entities and features. With
--prompt the app is classified from a short description instead. Each run
replaces the project's source tree and archive only if it succeeds; a failed
run leaves the previous output in place.`,
		Example: `  # Generate from a config file
  appforge generate shop.yaml

  # Generate from a description
  appforge generate --prompt "an online shop with payments"

  # Regenerate on every save and show what changed
  appforge generate shop.yaml --project my-shop --watch --diff`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runGenerate(c.Context(), args, &flags, gc)
		},
	}

	flags.AddTo(c)

	return c
}

func runGenerate(ctx context.Context, args []string, flags *cmdutil.GenerateFlags, gc *cmdtypes.GlobalConfig) error {
	if err := flags.Validate(args); err != nil {
		return &oerrors.ExitError{Code: oerrors.ExitValidationError, Err: err}
	}

	runner, store, err := cmdutil.NewRunner(gc.Config)
	if err != nil {
		return &oerrors.ExitError{Code: oerrors.ExitCodeFromError(err), Err: err}
	}
	defer func() {
		runner.Close()
		_ = store.Close()
	}()

	owner := flags.Owner.Resolve(gc.Config)

	if !flags.Watch {
		return generateOnce(ctx, runner, args, flags, owner)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Failures are printed by generateOnce; watching continues.
	_ = generateOnce(ctx, runner, args, flags, owner)
	output.Info("watching for changes", "file", args[0])

	return cmdutil.WatchFile(ctx, args[0], func() {
		output.Info("config changed, regenerating", "file", args[0])
		_ = generateOnce(ctx, runner, args, flags, owner)
	})
}

// generateOnce runs one generation and prints its outcome.
func generateOnce(ctx context.Context, runner *pipeline.Runner, args []string, flags *cmdutil.GenerateFlags, owner appconfig.Owner) error {
	doc, err := loadDocument(args, flags)
	if err != nil {
		code := oerrors.ExitCodeFromError(err)
		if errors.Is(err, fs.ErrNotExist) {
			code = oerrors.ExitNotFound
		}
		cmdutil.PrintError("loading app config", err)
		return &oerrors.ExitError{Code: code, Err: err, Printed: true}
	}

	req := pipeline.Request{
		ProjectID: flags.ProjectID,
		Doc:       doc,
		Owner:     owner,
	}
	if flags.Timeout > 0 {
		req.Deadline = time.Now().Add(flags.Timeout)
	}

	var before []byte
	if flags.Diff {
		if before, err = cmdutil.ReadManifest(runner.Materializer(), flags.ProjectID); err != nil {
			output.Warn("reading previous manifest", "error", err)
		}
	}

	var res *pipeline.Result
	err = output.RunWithSpinner("Generating app...", func() error {
		var genErr error
		res, genErr = runner.Generate(ctx, req)
		return genErr
	})
	if err != nil {
		cmdutil.PrintError("generation failed", err)
		if res != nil && res.RunID != "" {
			output.Println(output.FormatRunLine(res.ProjectID, res.RunID, string(res.Status)))
		}
		return &oerrors.ExitError{Code: oerrors.ExitCodeFromError(err), Err: err, Printed: true}
	}

	cmdutil.WriteResult(res)
	if flags.Diff {
		writeManifestDiff(runner, res.ProjectID, before)
	}
	return nil
}

// writeManifestDiff prints how the project manifest changed. A diff
// failure never fails the run.
func writeManifestDiff(runner *pipeline.Runner, projectID string, before []byte) {
	if before == nil {
		output.Println("No previous manifest; this is the first generation.")
		return
	}
	after, err := cmdutil.ReadManifest(runner.Materializer(), projectID)
	if err != nil {
		output.Warn("reading generated manifest", "error", err)
		return
	}
	report, err := cmdutil.ManifestDiff(before, after, output.IsTTY())
	if err != nil {
		output.Warn("diffing manifests", "error", err)
		return
	}
	if report == "" {
		output.Println("Manifest unchanged.")
		return
	}
	output.Println(report)
}

// loadDocument returns the raw app config from the file argument or the
// prompt.
func loadDocument(args []string, flags *cmdutil.GenerateFlags) (map[string]any, error) {
	if flags.Prompt != "" {
		doc := prompt.Classify(flags.Prompt)
		output.Debug("classified prompt", "appName", doc["appName"], "features", doc["features"])
		return doc, nil
	}
	return appconfig.Load(args[0])
}

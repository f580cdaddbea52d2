package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/appforge/cli/internal/cmdtypes"
	"github.com/appforge/cli/internal/cmdutil"
	"github.com/appforge/cli/internal/config"
	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/output"
	"github.com/appforge/cli/internal/server"
)

type serveFlags struct {
	addr  string
	owner cmdutil.OwnerFlags
}

// NewServeCmd creates the serve command.
func NewServeCmd(gc *cmdtypes.GlobalConfig) *cobra.Command {
	flags := &serveFlags{}

	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generation API over HTTP",
		Long: `Serve the generation API over HTTP.

Generation requests are accepted asynchronously and run in the background;
clients poll the project or run for its outcome. The server shuts down
gracefully on SIGINT or SIGTERM after in-flight runs finish.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runServe(c.Context(), flags, gc)
		},
	}

	c.Flags().StringVar(&flags.addr, "addr", "", "Listen address (env: APPFORGE_SERVER_ADDR, default: from config)")
	flags.owner.AddTo(c)

	return c
}

func runServe(ctx context.Context, flags *serveFlags, gc *cmdtypes.GlobalConfig) error {
	addr := config.Resolve(config.ResolveOptions{
		Key:         "server.addr",
		FlagValue:   flags.addr,
		EnvVar:      "APPFORGE_SERVER_ADDR",
		ConfigValue: gc.Config.Server.Addr,
		Default:     config.DefaultServerAddr,
	})
	config.LogResolvedValues([]config.ResolvedValue{addr})

	runner, store, err := cmdutil.NewRunner(gc.Config)
	if err != nil {
		return &oerrors.ExitError{Code: oerrors.ExitCodeFromError(err), Err: err}
	}
	defer func() {
		runner.Close()
		_ = store.Close()
	}()

	srv, err := server.New(server.Options{
		Runner:       runner,
		DefaultOwner: flags.owner.Resolve(gc.Config),
	})
	if err != nil {
		return &oerrors.ExitError{Code: oerrors.ExitCodeFromError(err), Err: err}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	output.Info("serving generation API", "addr", addr.Value, "registry", gc.Config.Registry.Driver)
	return srv.Run(ctx, addr.Value)
}

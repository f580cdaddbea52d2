package cmdutil

import (
	"fmt"

	"github.com/appforge/cli/internal/appconfig"
	"github.com/appforge/cli/internal/archive"
	"github.com/appforge/cli/internal/config"
	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/pipeline"
	"github.com/appforge/cli/internal/registry"
	"github.com/appforge/cli/internal/templates"
	"github.com/appforge/cli/internal/workspace"
)

// OpenStore opens the registry named by cfg.
func OpenStore(cfg *config.Config) (registry.Store, error) {
	store, err := registry.Open(cfg.RegistryOptions())
	if err != nil {
		return nil, &oerrors.ExitError{Code: oerrors.ExitGeneralError, Err: fmt.Errorf("opening registry: %w", err)}
	}
	return store, nil
}

// NewRunner wires every generation stage from cfg. The caller owns the
// returned store and must close it after closing the runner.
func NewRunner(cfg *config.Config) (*pipeline.Runner, registry.Store, error) {
	policy, ok := appconfig.ParseIdentityPolicy(cfg.Identity.Policy)
	if !ok {
		return nil, nil, oerrors.NewValidationError(
			fmt.Sprintf("unknown identity policy %q", cfg.Identity.Policy),
			"identity.policy", "policy", "Use merge or reject")
	}

	normalizer, err := appconfig.NewNormalizer(policy)
	if err != nil {
		return nil, nil, err
	}
	composer, err := templates.NewComposer()
	if err != nil {
		return nil, nil, err
	}

	store, err := OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	runner, err := pipeline.NewRunner(pipeline.Options{
		Normalizer:   normalizer,
		Composer:     composer,
		Materializer: workspace.NewMaterializer(cfg.WorkspaceDir),
		Packager:     archive.NewPackager(cfg.ArtifactsDir),
		Store:        store,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return runner, store, nil
}

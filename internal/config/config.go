// Package config provides configuration loading and management.
package config

import (
	"github.com/appforge/cli/internal/appconfig"
	"github.com/appforge/cli/internal/registry"
)

// RegistryConfig selects where run records are kept.
type RegistryConfig struct {
	// Driver is memory, sql, or kubernetes.
	// Env: APPFORGE_REGISTRY_DRIVER, Default: sql
	Driver string `mapstructure:"driver" yaml:"driver"`

	// DSN is a SQLite file or a PostgreSQL DSN for the sql driver.
	// Env: APPFORGE_REGISTRY_DSN, Default: ~/.appforge/registry.db
	DSN string `mapstructure:"dsn" yaml:"dsn,omitempty"`

	// Namespace holds run ConfigMaps for the kubernetes driver.
	// Env: APPFORGE_REGISTRY_NAMESPACE, Default: appforge
	Namespace string `mapstructure:"namespace" yaml:"namespace,omitempty"`

	// Kubeconfig is the kubeconfig path for the kubernetes driver.
	// Env: APPFORGE_KUBECONFIG, Default: ~/.kube/config
	Kubeconfig string `mapstructure:"kubeconfig" yaml:"kubeconfig,omitempty"`

	// Context is the kubeconfig context for the kubernetes driver.
	// Env: APPFORGE_CONTEXT, Default: current-context from kubeconfig
	Context string `mapstructure:"context" yaml:"context,omitempty"`
}

// ServerConfig configures `appforge serve`.
type ServerConfig struct {
	// Addr is the listen address.
	// Env: APPFORGE_SERVER_ADDR, Default: :8080
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// IdentityConfig configures identity entity handling.
type IdentityConfig struct {
	// Policy is merge or reject. It decides what happens when a config
	// declares its own User entity.
	// Env: APPFORGE_IDENTITY_POLICY, Default: merge
	Policy string `mapstructure:"policy" yaml:"policy"`
}

// OwnerConfig is the default owner recorded in generated apps.
type OwnerConfig struct {
	// Env: APPFORGE_OWNER_EMAIL
	Email string `mapstructure:"email" yaml:"email"`

	// Env: APPFORGE_OWNER_NAME
	Name string `mapstructure:"name" yaml:"name,omitempty"`
}

// LogConfig contains logging-related settings.
type LogConfig struct {
	// Timestamps controls whether timestamps are shown in log output.
	// Default: true. Override with --timestamps flag.
	Timestamps *bool `mapstructure:"timestamps" yaml:"timestamps,omitempty"`
}

// Config represents the appforge configuration, loaded from
// ~/.appforge/config.yaml.
type Config struct {
	// WorkspaceDir holds one materialized source tree per project.
	// Env: APPFORGE_WORKSPACE_DIR, Default: ~/.appforge/workspace
	WorkspaceDir string `mapstructure:"workspaceDir" yaml:"workspaceDir"`

	// ArtifactsDir holds one archive per project.
	// Env: APPFORGE_ARTIFACTS_DIR, Default: ~/.appforge/artifacts
	ArtifactsDir string `mapstructure:"artifactsDir" yaml:"artifactsDir"`

	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Identity IdentityConfig `mapstructure:"identity" yaml:"identity"`
	Owner    OwnerConfig    `mapstructure:"owner" yaml:"owner"`
	Log      LogConfig      `mapstructure:"log" yaml:"log,omitempty"`
}

// Defaults.
const (
	DefaultServerAddr = ":8080"
	DefaultNamespace  = "appforge"
	DefaultOwnerEmail = "guest@example.com"
	DefaultOwnerName  = "Guest User"
)

// DefaultConfig returns a Config with all default values populated.
// Used by `appforge config init` to generate the initial config file.
func DefaultConfig() *Config {
	return &Config{
		WorkspaceDir: "~/.appforge/workspace",
		ArtifactsDir: "~/.appforge/artifacts",
		Registry: RegistryConfig{
			Driver:    registry.DriverSQL,
			DSN:       "~/.appforge/registry.db",
			Namespace: DefaultNamespace,
		},
		Server:   ServerConfig{Addr: DefaultServerAddr},
		Identity: IdentityConfig{Policy: string(appconfig.PolicyMerge)},
		Owner:    OwnerConfig{Email: DefaultOwnerEmail, Name: DefaultOwnerName},
	}
}

// WithDefaults returns a copy of c with empty values filled from
// DefaultConfig.
func (c *Config) WithDefaults() *Config {
	d := DefaultConfig()
	out := *c

	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&out.WorkspaceDir, d.WorkspaceDir)
	fill(&out.ArtifactsDir, d.ArtifactsDir)
	fill(&out.Registry.Driver, d.Registry.Driver)
	if out.Registry.Driver == registry.DriverSQL {
		fill(&out.Registry.DSN, d.Registry.DSN)
	}
	fill(&out.Registry.Namespace, d.Registry.Namespace)
	fill(&out.Server.Addr, d.Server.Addr)
	fill(&out.Identity.Policy, d.Identity.Policy)
	if out.Owner.Email == "" {
		out.Owner = d.Owner
	}

	return &out
}

// ExpandPaths expands ~ in every path-valued setting.
func (c *Config) ExpandPaths() error {
	paths := []*string{&c.WorkspaceDir, &c.ArtifactsDir, &c.Registry.Kubeconfig}
	if c.Registry.Driver == registry.DriverSQL && !registry.IsPostgresDSN(c.Registry.DSN) {
		paths = append(paths, &c.Registry.DSN)
	}
	for _, p := range paths {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// RegistryOptions converts the registry settings into store options.
func (c *Config) RegistryOptions() registry.Options {
	return registry.Options{
		Driver:     c.Registry.Driver,
		DSN:        c.Registry.DSN,
		Namespace:  c.Registry.Namespace,
		Kubeconfig: c.Registry.Kubeconfig,
		Context:    c.Registry.Context,
	}
}

// DefaultOwner returns the configured owner.
func (c *Config) DefaultOwner() appconfig.Owner {
	return appconfig.Owner{Email: c.Owner.Email, Name: c.Owner.Name}
}

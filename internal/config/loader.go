package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Environment variable prefix for appforge configuration.
const envPrefix = "APPFORGE"

// envBindings maps config keys to their environment variables.
var envBindings = map[string]string{
	"workspaceDir":        "APPFORGE_WORKSPACE_DIR",
	"artifactsDir":        "APPFORGE_ARTIFACTS_DIR",
	"registry.driver":     "APPFORGE_REGISTRY_DRIVER",
	"registry.dsn":        "APPFORGE_REGISTRY_DSN",
	"registry.namespace":  "APPFORGE_REGISTRY_NAMESPACE",
	"registry.kubeconfig": "APPFORGE_KUBECONFIG",
	"registry.context":    "APPFORGE_CONTEXT",
	"server.addr":         "APPFORGE_SERVER_ADDR",
	"identity.policy":     "APPFORGE_IDENTITY_POLICY",
	"owner.email":         "APPFORGE_OWNER_EMAIL",
	"owner.name":          "APPFORGE_OWNER_NAME",
	"log.timestamps":      "APPFORGE_LOG_TIMESTAMPS",
}

// Loader handles loading and merging configuration from multiple sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	// Set up environment variable bindings
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	return &Loader{v: v}
}

// Load loads configuration from the given file path.
// If configFile is empty, it uses the default config file path.
// Environment variables take precedence over file values. A missing file
// is not an error.
func (l *Loader) Load(configFile string) (*Config, error) {
	if configFile == "" {
		var err error
		configFile, err = GetConfigFile()
		if err != nil {
			return nil, fmt.Errorf("getting config file path: %w", err)
		}
	}

	// Expand ~ in path
	expandedPath, err := ExpandPath(configFile)
	if err != nil {
		return nil, fmt.Errorf("expanding config path: %w", err)
	}

	l.v.SetConfigFile(expandedPath)
	l.v.SetConfigType("yaml")

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads configuration, applies defaults, and expands ~ in
// paths.
func (l *Loader) LoadWithDefaults(configFile string) (*Config, error) {
	cfg, err := l.Load(configFile)
	if err != nil {
		return nil, err
	}

	cfg = cfg.WithDefaults()
	if err := cfg.ExpandPaths(); err != nil {
		return nil, fmt.Errorf("expanding paths: %w", err)
	}
	return cfg, nil
}

// ConfigFileExists checks if the config file exists.
func ConfigFileExists(configFile string) (bool, error) {
	if configFile == "" {
		var err error
		configFile, err = GetConfigFile()
		if err != nil {
			return false, err
		}
	}

	expandedPath, err := ExpandPath(configFile)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(expandedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

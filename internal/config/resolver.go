package config

import (
	"os"

	"github.com/appforge/cli/internal/output"
)

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

const (
	// SourceFlag indicates value came from command-line flag.
	SourceFlag ConfigSource = "flag"
	// SourceEnv indicates value came from environment variable.
	SourceEnv ConfigSource = "env"
	// SourceConfig indicates value came from config file.
	SourceConfig ConfigSource = "config"
	// SourceDefault indicates value is the built-in default.
	SourceDefault ConfigSource = "default"
)

// ResolvedValue is one setting after precedence was applied.
type ResolvedValue struct {
	Key    string
	Value  string
	Source ConfigSource
	// Shadowed contains values that were overridden by higher precedence.
	Shadowed map[ConfigSource]string
}

// ResolveOptions describes the candidates for one setting.
type ResolveOptions struct {
	Key string
	// FlagValue is the flag value (empty if not set).
	FlagValue string
	// EnvVar names the environment variable consulted.
	EnvVar string
	// ConfigValue is the loaded config value (empty if not set). The loader
	// already folds the environment in, so a ConfigValue equal to the env
	// value is attributed to the environment.
	ConfigValue string
	// Default is used when nothing else is set.
	Default string
}

// Resolve applies precedence flag > env > config > default.
func Resolve(opts ResolveOptions) ResolvedValue {
	result := ResolvedValue{Key: opts.Key, Shadowed: make(map[ConfigSource]string)}

	var envValue string
	if opts.EnvVar != "" {
		envValue = os.Getenv(opts.EnvVar)
	}
	configValue := opts.ConfigValue
	if configValue == envValue {
		configValue = ""
	}

	candidates := []struct {
		source ConfigSource
		value  string
	}{
		{SourceFlag, opts.FlagValue},
		{SourceEnv, envValue},
		{SourceConfig, configValue},
		{SourceDefault, opts.Default},
	}

	for _, c := range candidates {
		if c.value == "" {
			continue
		}
		if result.Source == "" {
			result.Value = c.value
			result.Source = c.source
			continue
		}
		result.Shadowed[c.source] = c.value
	}

	return result
}

// ResolveConfigPath resolves the config file path using precedence:
// (1) --config flag, (2) APPFORGE_CONFIG env, (3) ~/.appforge/config.yaml
func ResolveConfigPath(flagValue string) (ResolvedValue, error) {
	paths, err := DefaultPaths()
	if err != nil {
		return ResolvedValue{}, err
	}

	return Resolve(ResolveOptions{
		Key:       "config",
		FlagValue: flagValue,
		EnvVar:    "APPFORGE_CONFIG",
		Default:   paths.ConfigFile,
	}), nil
}

// LogResolvedValues logs configuration resolution at DEBUG level.
func LogResolvedValues(values []ResolvedValue) {
	for _, v := range values {
		output.Debug("config value resolved",
			"key", v.Key,
			"value", v.Value,
			"source", v.Source,
		)
		for source, shadowed := range v.Shadowed {
			output.Debug("  shadowed by higher precedence",
				"key", v.Key,
				"shadowed_source", source,
				"shadowed_value", shadowed,
			)
		}
	}
}

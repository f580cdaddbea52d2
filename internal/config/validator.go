package config

import (
	"fmt"
	"net"
	"regexp"
	"slices"
	"strings"

	"github.com/appforge/cli/internal/appconfig"
	"github.com/appforge/cli/internal/registry"
)

// namespaceRegex validates Kubernetes namespace names per RFC 1123.
var namespaceRegex = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// Validate checks a configuration after defaults were applied.
func Validate(cfg *Config) error {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if strings.TrimSpace(cfg.WorkspaceDir) == "" {
		add("workspaceDir", "must not be empty or whitespace only")
	}
	if strings.TrimSpace(cfg.ArtifactsDir) == "" {
		add("artifactsDir", "must not be empty or whitespace only")
	}

	switch cfg.Registry.Driver {
	case registry.DriverMemory:
	case registry.DriverSQL:
		if strings.TrimSpace(cfg.Registry.DSN) == "" {
			add("registry.dsn", "is required for the sql driver")
		}
	case registry.DriverKubernetes:
		if err := ValidateNamespace(cfg.Registry.Namespace); err != nil {
			add("registry.namespace", err.(*ValidationError).Message)
		}
	default:
		add("registry.driver", fmt.Sprintf("must be one of %s", strings.Join(registry.Drivers(), ", ")))
	}

	if _, _, err := net.SplitHostPort(cfg.Server.Addr); err != nil {
		add("server.addr", "must be host:port or :port")
	}

	if _, ok := appconfig.ParseIdentityPolicy(cfg.Identity.Policy); !ok {
		add("identity.policy", "must be merge or reject")
	}

	if err := cfg.DefaultOwner().Validate(); err != nil {
		add("owner.email", "must be a valid email address")
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// ValidateNamespace checks if a namespace name is valid.
func ValidateNamespace(namespace string) error {
	if !namespaceRegex.MatchString(namespace) {
		return &ValidationError{
			Field:   "namespace",
			Message: "must be a valid Kubernetes namespace name (lowercase alphanumeric with hyphens)",
		}
	}

	if len(namespace) > 63 {
		return &ValidationError{
			Field:   "namespace",
			Message: "must be at most 63 characters",
		}
	}

	return nil
}

// Fields lists the validation error fields, for tests and summaries.
func (e ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(e))
	for _, err := range e {
		if !slices.Contains(fields, err.Field) {
			fields = append(fields, err.Field)
		}
	}
	return fields
}

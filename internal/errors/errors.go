// Package errors provides the error taxonomy shared by every generation stage.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for known conditions.
var (
	// ErrValidation indicates a malformed or semantically invalid app config.
	ErrValidation = errors.New("validation error")

	// ErrComposition indicates an internal defect while composing the file tree.
	ErrComposition = errors.New("composition error")

	// ErrMaterialization indicates a filesystem failure while writing the tree.
	ErrMaterialization = errors.New("materialization error")

	// ErrPackaging indicates a failure while building or verifying the archive.
	ErrPackaging = errors.New("packaging error")

	// ErrNotFound indicates a project, run, or artifact was not found.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a write against a record that can no longer change.
	ErrConflict = errors.New("conflict")

	// ErrCanceled indicates a run was abandoned because its deadline passed.
	ErrCanceled = errors.New("deadline exceeded before run completed")
)

// Error kinds recorded on failed runs.
const (
	KindValidation      = "validation"
	KindComposition     = "composition"
	KindMaterialization = "materialization"
	KindPackaging       = "packaging"
	KindCanceled        = "canceled"
	KindInternal        = "internal"
)

// DetailError captures structured error information.
type DetailError struct {
	// Type is the error category (required).
	Type string

	// Message is the specific description (required).
	Message string

	// Location is the config path or file the error refers to (optional).
	Location string

	// Field is the offending field name (optional).
	Field string

	// Context contains additional key-value context (optional).
	Context map[string]string

	// Hint provides actionable guidance (optional).
	Hint string

	// Cause is the underlying error (optional).
	Cause error
}

// Error implements the error interface.
func (e *DetailError) Error() string {
	var b strings.Builder

	b.WriteString("Error: ")
	b.WriteString(e.Type)
	b.WriteString("\n")

	if e.Location != "" {
		b.WriteString("  Location: ")
		b.WriteString(e.Location)
		b.WriteString("\n")
	}
	if e.Field != "" {
		b.WriteString("  Field: ")
		b.WriteString(e.Field)
		b.WriteString("\n")
	}
	for k, v := range e.Context {
		b.WriteString("  ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\n")
	}

	b.WriteString("\n  ")
	b.WriteString(e.Message)
	b.WriteString("\n")

	if e.Hint != "" {
		b.WriteString("\nHint: ")
		b.WriteString(e.Hint)
		b.WriteString("\n")
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *DetailError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a validation error with details.
func NewValidationError(message, location, field, hint string) error {
	return &DetailError{
		Type:     "validation failed",
		Message:  message,
		Location: location,
		Field:    field,
		Hint:     hint,
		Cause:    ErrValidation,
	}
}

// NewCompositionError creates a composition error. Composition errors are
// programming defects, never caused by caller input.
func NewCompositionError(message, location string) error {
	return &DetailError{
		Type:     "composition failed",
		Message:  message,
		Location: location,
		Cause:    ErrComposition,
	}
}

// NewMaterializationError wraps a filesystem failure for the given path.
func NewMaterializationError(location string, cause error) error {
	return &DetailError{
		Type:     "materialization failed",
		Message:  cause.Error(),
		Location: location,
		Hint:     "Start a new generation run once the filesystem problem is fixed.",
		Cause:    errors.Join(ErrMaterialization, cause),
	}
}

// NewPackagingError wraps an archive failure for the given path.
func NewPackagingError(location string, cause error) error {
	return &DetailError{
		Type:     "packaging failed",
		Message:  cause.Error(),
		Location: location,
		Hint:     "Start a new generation run once the problem is fixed.",
		Cause:    errors.Join(ErrPackaging, cause),
	}
}

// NewNotFoundError creates a not found error with details.
func NewNotFoundError(message, location, hint string) error {
	return &DetailError{
		Type:     "not found",
		Message:  message,
		Location: location,
		Hint:     hint,
		Cause:    ErrNotFound,
	}
}

// Wrap wraps an error with a sentinel error type.
func Wrap(sentinel error, message string) error {
	return fmt.Errorf("%s: %w", message, sentinel)
}

// Kind classifies an error into one of the Kind* constants.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrComposition):
		return KindComposition
	case errors.Is(err, ErrMaterialization):
		return KindMaterialization
	case errors.Is(err, ErrPackaging):
		return KindPackaging
	case errors.Is(err, ErrCanceled):
		return KindCanceled
	default:
		return KindInternal
	}
}

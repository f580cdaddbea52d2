package errors

import "errors"

// Exit codes returned by the appforge binary.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError = 1

	// ExitValidationError indicates the app config was rejected.
	ExitValidationError = 2

	// ExitCompositionError indicates an internal composition defect.
	ExitCompositionError = 3

	// ExitMaterializationError indicates the source tree could not be written.
	ExitMaterializationError = 4

	// ExitPackagingError indicates the archive could not be produced.
	ExitPackagingError = 5

	// ExitNotFound indicates a project, run, or artifact was not found.
	ExitNotFound = 6
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Err  error
	Code int

	// Printed is set when the command layer already rendered the error.
	Printed bool
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCodeFromError determines the appropriate exit code for an error.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch {
	case errors.Is(err, ErrValidation):
		return ExitValidationError
	case errors.Is(err, ErrComposition):
		return ExitCompositionError
	case errors.Is(err, ErrMaterialization):
		return ExitMaterializationError
	case errors.Is(err, ErrPackaging):
		return ExitPackagingError
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	default:
		return ExitGeneralError
	}
}

// ExitCodeName returns the name of the exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitSuccess:
		return "Success"
	case ExitGeneralError:
		return "General Error"
	case ExitValidationError:
		return "Validation Error"
	case ExitCompositionError:
		return "Composition Error"
	case ExitMaterializationError:
		return "Materialization Error"
	case ExitPackagingError:
		return "Packaging Error"
	case ExitNotFound:
		return "Not Found"
	default:
		return "Unknown"
	}
}

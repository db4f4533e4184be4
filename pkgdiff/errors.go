package pkgdiff

import (
	"github.com/sergcen/npm-package-diff/errors"
	"github.com/sergcen/npm-package-diff/resolve"
)

// ErrIdenticalReferences is returned when both references are the same string.
var ErrIdenticalReferences = errors.New(errors.CodeInvalidInput, "references are identical")

// UsageError reports a request that is invalid before any work starts.
type UsageError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *UsageError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain traversal.
func (e *UsageError) Unwrap() error {
	return e.Err
}

// Code implements errors.Coded.
func (e *UsageError) Code() errors.ErrorCode {
	return errors.CodeInvalidInput
}

// ResolutionError reports a reference that could not be turned into an archive.
type ResolutionError = resolve.Error

// ToolExecutionError reports a failure of an external capability.
type ToolExecutionError = errors.ToolError

// IsUsageError checks if an error is a UsageError or contains one in its chain.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

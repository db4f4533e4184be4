// Package errors provides the error vocabulary shared by the package diff engine.
// It extends Go's standard error handling with structured error codes, context
// preservation and a typed error for failed external tool invocations.
package errors

// ErrorCode represents a specific error condition.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Resource errors.

	// CodeNotFound indicates a requested resource (archive, file, version) does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeDownloadFailed indicates a package could not be fetched from its registry.
	CodeDownloadFailed ErrorCode = "DOWNLOAD_FAILED"

	// CodePermissionDenied indicates the caller is not authorized to access a resource.
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates a configuration error prevents the operation.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// Infrastructure errors.

	// CodeNetwork indicates a network operation failed.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// Execution errors.

	// CodeExecutionFailed indicates an external tool or archive operation faulted.
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// CodeArchiveCorrupt indicates an archive could not be read.
	CodeArchiveCorrupt ErrorCode = "ARCHIVE_CORRUPT"

	// System errors.

	// CodeInternal indicates an internal error occurred.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeNotImplemented indicates the requested functionality is not implemented.
	CodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"

	// Generic errors.

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)

package errors

import (
	"fmt"
	"strings"
)

// ToolError reports that an external capability (diff tool, package manager,
// archive reader) faulted for a reason other than reporting a difference.
// It is never used to signal that two inputs differ.
type ToolError struct {
	// Tool names the capability that failed (e.g. "diff", "npm", "tar").
	Tool string

	// Args are the arguments the tool was invoked with, if any.
	Args []string

	// ExitCode is the process exit status, or -1 when the tool did not run.
	ExitCode int

	// Stderr holds the tool's diagnostic output, trimmed.
	Stderr string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Tool)
	if len(e.Args) > 0 {
		fmt.Fprintf(&b, " (args %v)", e.Args)
	}
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, ": %s", e.Stderr)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain traversal.
func (e *ToolError) Unwrap() error {
	return e.Err
}

// Code implements Coded.
func (e *ToolError) Code() ErrorCode {
	return CodeExecutionFailed
}

// NewToolError creates a ToolError for a tool that did not produce an exit status.
func NewToolError(tool string, err error) *ToolError {
	return &ToolError{Tool: tool, ExitCode: -1, Err: err}
}

// IsToolError checks if an error is a ToolError or contains one in its chain.
func IsToolError(err error) bool {
	var te *ToolError
	return As(err, &te)
}

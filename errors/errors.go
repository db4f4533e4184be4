package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// PlatformError is an error carrying a code, a human readable message, optional
// key/value context and the underlying cause.
type PlatformError struct {
	Code    ErrorCode
	Message string
	Context map[string]interface{}
	Cause   error
}

// Error implements the error interface.
func (e *PlatformError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *PlatformError) Unwrap() error {
	return e.Cause
}

// New creates a PlatformError without a cause.
func New(code ErrorCode, message string) *PlatformError {
	return &PlatformError{Code: code, Message: message}
}

// Wrap wraps err with a code and message. It returns nil when err is nil.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &PlatformError{Code: code, Message: message, Cause: err}
}

// WrapWithContext wraps err with a code, message and key/value context.
// It returns nil when err is nil.
func WrapWithContext(err error, code ErrorCode, message string, ctx map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &PlatformError{Code: code, Message: message, Context: ctx, Cause: err}
}

// Coded is implemented by errors that report an ErrorCode.
type Coded interface {
	Code() ErrorCode
}

// GetCode returns the first error code found in err's chain, or CodeUnknown.
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		switch v := e.(type) {
		case *PlatformError:
			return v.Code
		case Coded:
			return v.Code()
		}
	}
	return CodeUnknown
}

// Is forwards to the standard library so callers only need this package.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As forwards to the standard library so callers only need this package.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }

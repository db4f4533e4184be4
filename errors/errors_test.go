package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapWithContext(t *testing.T) {
	cause := stderrors.New("boom")

	err := WrapWithContext(cause, CodeInvalidConfig, "failed to load configuration", map[string]interface{}{
		"path": ".pkgdiff.yaml",
		"line": 3,
	})
	require.Error(t, err)

	assert.Equal(t, "failed to load configuration (line=3, path=.pkgdiff.yaml): boom", err.Error())
	assert.True(t, stderrors.Is(err, cause), "cause should stay reachable")
	assert.Equal(t, CodeInvalidConfig, GetCode(err))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeInternal, "ignored"))
	assert.Nil(t, WrapWithContext(nil, CodeInternal, "ignored", nil))
	assert.Equal(t, ErrorCode(""), GetCode(nil))
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{"platform error", New(CodeNotFound, "missing"), CodeNotFound},
		{"wrapped platform error", fmt.Errorf("outer: %w", New(CodeTimeout, "slow")), CodeTimeout},
		{"tool error", NewToolError("diff", stderrors.New("exec: not found")), CodeExecutionFailed},
		{"wrapped tool error", fmt.Errorf("pair 3: %w", &ToolError{Tool: "diff", ExitCode: 2}), CodeExecutionFailed},
		{"plain error", stderrors.New("plain"), CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetCode(tt.err))
		})
	}
}

func TestToolError(t *testing.T) {
	cause := stderrors.New("exit status 2")
	err := &ToolError{
		Tool:     "diff",
		Args:     []string{"-q", "a", "b"},
		ExitCode: 2,
		Stderr:   "diff: a: Permission denied",
		Err:      cause,
	}

	assert.Equal(t, "diff failed (args [-q a b]) with exit code 2: diff: a: Permission denied: exit status 2", err.Error())
	assert.True(t, IsToolError(fmt.Errorf("wrapped: %w", err)))
	assert.True(t, stderrors.Is(err, cause))
	assert.False(t, IsToolError(cause))

	notRun := NewToolError("npm", stderrors.New("executable file not found"))
	assert.Equal(t, -1, notRun.ExitCode)
	assert.Equal(t, "npm failed: executable file not found", notRun.Error())
}

package executor_test

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergcen/npm-package-diff/errors"
	"github.com/sergcen/npm-package-diff/executor"
)

// MockExecutor implements the Executor interface for testing
type MockExecutor struct {
	ExecuteFunc func(ctx context.Context, program string, args []string, opts ...executor.Option) (*executor.Result, error)
	Calls       [][]string
}

func (m *MockExecutor) Execute(
	ctx context.Context,
	program string,
	args []string,
	opts ...executor.Option,
) (*executor.Result, error) {
	m.Calls = append(m.Calls, append([]string{program}, args...))
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, program, args, opts...)
	}
	return &executor.Result{Stdout: "mock stdout"}, nil
}

func TestBasicExecution(t *testing.T) {
	result, err := executor.New().Execute(context.Background(), "echo", []string{"hello", "world"})
	require.NoError(t, err)

	assert.Contains(t, result.Stdout, "hello world")
	assert.Equal(t, 0, result.ExitCode)
}

func TestAcceptedExitCode(t *testing.T) {
	result, err := executor.New().Execute(
		context.Background(),
		"sh", []string{"-c", "echo changed; exit 1"},
		executor.WithAcceptExitCodes(1),
	)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ExitCode)
	assert.Contains(t, result.Stdout, "changed")
}

func TestUnacceptedExitCodeIsToolError(t *testing.T) {
	result, err := executor.New().Execute(
		context.Background(),
		"sh", []string{"-c", "echo broken >&2; exit 2"},
		executor.WithAcceptExitCodes(1),
	)
	require.Error(t, err)

	var toolErr *errors.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "sh", toolErr.Tool)
	assert.Equal(t, 2, toolErr.ExitCode)
	assert.Equal(t, "broken", toolErr.Stderr)
	assert.Equal(t, 2, result.ExitCode)
}

func TestMissingProgramIsToolError(t *testing.T) {
	_, err := executor.New().Execute(context.Background(), "definitely-not-a-real-binary-42", nil)
	require.Error(t, err)

	var toolErr *errors.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, -1, toolErr.ExitCode)
	assert.Equal(t, "definitely-not-a-real-binary-42", toolErr.Tool)
	assert.Equal(t, errors.CodeExecutionFailed, errors.GetCode(err))
}

func TestStreamOnly(t *testing.T) {
	var buf bytes.Buffer
	result, err := executor.New().Execute(
		context.Background(),
		"echo", []string{"streamed"},
		executor.StreamOnly(&buf),
	)
	require.NoError(t, err)

	assert.Empty(t, result.Stdout)
	assert.Equal(t, "streamed\n", buf.String())
}

func TestWorkingDir(t *testing.T) {
	dir := t.TempDir()

	result, err := executor.New().Execute(
		context.Background(),
		"pwd", nil,
		executor.WithWorkingDir(dir),
	)
	require.NoError(t, err)
	assert.Contains(t, strings.TrimSpace(result.Stdout), filepath.Base(dir))
}

func TestRetryMechanism(t *testing.T) {
	marker := t.TempDir() + "/attempts"

	// Fails until the third attempt appends the third line.
	script := fmt.Sprintf(`echo x >> %q; [ $(wc -l < %q) -ge 3 ]`, marker, marker)
	result, err := executor.New().Execute(
		context.Background(),
		"sh", []string{"-c", script},
		executor.WithRetry(3, 10*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
}

func TestRetryCondition(t *testing.T) {
	calls := 0
	_, err := executor.New().Execute(
		context.Background(),
		"sh", []string{"-c", "exit 3"},
		executor.WithRetry(5, time.Millisecond),
		executor.WithRetryCondition(func(error) bool {
			calls++
			return false
		}),
	)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "a refused retry must stop after the first attempt")
}

func TestBaseOptionsAreOverridable(t *testing.T) {
	exec := executor.New(executor.WithCapture(false))

	result, err := exec.Execute(context.Background(), "echo", []string{"x"}, executor.WithCapture(true))
	require.NoError(t, err)
	assert.Equal(t, "x\n", result.Stdout)
}

func TestWrappedExecutor(t *testing.T) {
	mock := &MockExecutor{}
	diff := executor.NewWrappedExecutor("diff", mock)

	result, err := diff.Execute(context.Background(), []string{"-q", "a", "b"})
	require.NoError(t, err)

	assert.Equal(t, "mock stdout", result.Stdout)
	require.Len(t, mock.Calls, 1)
	assert.Equal(t, []string{"diff", "-q", "a", "b"}, mock.Calls[0])
}

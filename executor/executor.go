// Package executor runs the external tools the diff engine delegates to
// (diff, npm) with output capture, streaming, retry and exit status
// classification.
//
// A command whose exit status is listed in Options.AcceptExitCodes is not a
// failure: tools such as diff(1) use a non-zero status to report a result.
// Every other non-zero status, and any failure to start the process, is
// returned as an *errors.ToolError.
package executor

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/sergcen/npm-package-diff/errors"
)

// Result holds the output and exit status of a command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor defines the interface for command execution.
type Executor interface {
	// Execute runs program with args.
	Execute(ctx context.Context, program string, args []string, opts ...Option) (*Result, error)
}

// Options configures command execution behavior.
type Options struct {
	// CaptureStdout keeps stdout in Result.Stdout.
	CaptureStdout bool

	// StdoutWriter receives stdout as it is produced.
	StdoutWriter io.Writer

	// WorkingDir is the process working directory.
	WorkingDir string

	// AcceptExitCodes lists non-zero exit statuses that are results, not failures.
	AcceptExitCodes []int

	// MaxRetries is the number of additional attempts after a failed run.
	MaxRetries int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration

	// RetryOn decides whether a failure is worth retrying. Nil retries every failure.
	RetryOn func(error) bool
}

// Option is a function that modifies Options.
type Option func(*Options)

// DefaultOptions returns default execution options.
func DefaultOptions() *Options {
	return &Options{
		CaptureStdout: true,
		RetryDelay:    time.Second,
	}
}

// CommandExecutor implements Executor with os/exec.
type CommandExecutor struct {
	base []Option
}

// New creates a CommandExecutor. Options given here apply to every execution
// and can be overridden per call.
func New(opts ...Option) *CommandExecutor {
	return &CommandExecutor{base: opts}
}

// Execute implements Executor.
func (c *CommandExecutor) Execute(
	ctx context.Context,
	program string,
	args []string,
	opts ...Option,
) (*Result, error) {
	options := c.mergeOptions(opts...)

	maxAttempts := options.MaxRetries + 1
	var (
		result *Result
		err    error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err = c.executeOnce(ctx, program, args, options)
		if err == nil || attempt == maxAttempts {
			return result, err
		}
		if options.RetryOn != nil && !options.RetryOn(err) {
			return result, err
		}

		select {
		case <-ctx.Done():
			return result, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(options.RetryDelay):
		}
	}
	return result, err
}

func (c *CommandExecutor) executeOnce(
	ctx context.Context,
	program string,
	args []string,
	options *Options,
) (*Result, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var stdoutWriters []io.Writer
	if options.CaptureStdout {
		stdoutWriters = append(stdoutWriters, &stdoutBuf)
	}
	if options.StdoutWriter != nil {
		stdoutWriters = append(stdoutWriters, options.StdoutWriter)
	}
	if len(stdoutWriters) > 0 {
		cmd.Stdout = io.MultiWriter(stdoutWriters...)
	}
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()

	result := &Result{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		result.ExitCode = 0
		return result, nil
	case stderrors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		if accepts(options.AcceptExitCodes, result.ExitCode) {
			return result, nil
		}
	default:
		result.ExitCode = -1
		toolErr := errors.NewToolError(program, runErr)
		toolErr.Args = args
		return result, toolErr
	}

	return result, &errors.ToolError{
		Tool:     program,
		Args:     args,
		ExitCode: result.ExitCode,
		Stderr:   strings.TrimSpace(result.Stderr),
		Err:      runErr,
	}
}

func accepts(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func (c *CommandExecutor) mergeOptions(opts ...Option) *Options {
	merged := DefaultOptions()
	for _, opt := range c.base {
		opt(merged)
	}
	for _, opt := range opts {
		opt(merged)
	}
	return merged
}

// WrappedExecutor binds an Executor to a single program.
type WrappedExecutor struct {
	program string
	exec    Executor
}

// NewWrappedExecutor creates an executor for a specific program.
func NewWrappedExecutor(program string, e Executor) *WrappedExecutor {
	if e == nil {
		e = New()
	}
	return &WrappedExecutor{program: program, exec: e}
}

// Execute runs the wrapped program with args.
func (w *WrappedExecutor) Execute(ctx context.Context, args []string, opts ...Option) (*Result, error) {
	return w.exec.Execute(ctx, w.program, args, opts...)
}

// Available reports whether the wrapped program can be found on PATH.
func (w *WrappedExecutor) Available() bool {
	_, err := exec.LookPath(w.program)
	return err == nil
}

// WithCapture configures stdout capture.
func WithCapture(stdout bool) Option {
	return func(o *Options) {
		o.CaptureStdout = stdout
	}
}

// WithWorkingDir sets the working directory.
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithAcceptExitCodes marks non-zero exit statuses as results rather than failures.
func WithAcceptExitCodes(codes ...int) Option {
	return func(o *Options) {
		o.AcceptExitCodes = append(o.AcceptExitCodes, codes...)
	}
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(o *Options) {
		o.MaxRetries = maxRetries
		o.RetryDelay = delay
	}
}

// WithRetryCondition sets a custom retry condition.
func WithRetryCondition(fn func(error) bool) Option {
	return func(o *Options) {
		o.RetryOn = fn
	}
}

// StreamOnly streams stdout to w without keeping a copy.
func StreamOnly(w io.Writer) Option {
	return func(o *Options) {
		o.CaptureStdout = false
		o.StdoutWriter = w
	}
}

package compare

import (
	"context"
	"io"

	"github.com/sergcen/npm-package-diff/executor"
)

// Differ is the line-diff capability content comparison delegates to.
type Differ interface {
	// Unified writes the unified diff of oldPath against newPath to w. A
	// missing file is treated as empty. Identical files write nothing.
	Unified(ctx context.Context, oldPath, newPath string, w io.Writer) error

	// Same reports whether both files have identical content.
	Same(ctx context.Context, oldPath, newPath string) (bool, error)
}

// diffExitDifferent is the exit status diff(1) uses to report differences.
const diffExitDifferent = 1

// ExecDiffer runs diff(1).
type ExecDiffer struct {
	diff *executor.WrappedExecutor
}

var _ Differ = (*ExecDiffer)(nil)

// NewExecDiffer creates a Differ running diff through e. A nil e runs the
// real binary.
func NewExecDiffer(e executor.Executor) *ExecDiffer {
	return &ExecDiffer{diff: executor.NewWrappedExecutor("diff", e)}
}

// Available reports whether diff is on PATH.
func (d *ExecDiffer) Available() bool {
	return d.diff.Available()
}

// Unified implements Differ.
func (d *ExecDiffer) Unified(ctx context.Context, oldPath, newPath string, w io.Writer) error {
	_, err := d.diff.Execute(ctx,
		[]string{"--unified", "--new-file", oldPath, newPath},
		executor.StreamOnly(w),
		executor.WithAcceptExitCodes(diffExitDifferent),
	)
	return err
}

// Same implements Differ.
func (d *ExecDiffer) Same(ctx context.Context, oldPath, newPath string) (bool, error) {
	result, err := d.diff.Execute(ctx,
		[]string{"-q", "--new-file", oldPath, newPath},
		executor.WithCapture(false),
		executor.WithAcceptExitCodes(diffExitDifferent),
	)
	if err != nil {
		return false, err
	}
	return result.ExitCode == 0, nil
}

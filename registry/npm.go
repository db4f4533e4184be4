package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/sergcen/npm-package-diff/errors"
	"github.com/sergcen/npm-package-diff/executor"
)

// NPM fetches tarballs with `npm pack`.
type NPM struct {
	npm        *executor.WrappedExecutor
	logger     *slog.Logger
	retries    int
	retryDelay time.Duration
}

var _ Fetcher = (*NPM)(nil)

// NewNPM creates an npm backend.
func NewNPM(opts ...Option) *NPM {
	return newNPM(newConfig(opts))
}

func newNPM(c *config) *NPM {
	return &NPM{
		npm:        executor.NewWrappedExecutor("npm", c.executor),
		logger:     c.logger,
		retries:    c.retries,
		retryDelay: c.retryDelay,
	}
}

// Fetch implements Fetcher.
func (n *NPM) Fetch(ctx context.Context, name, spec string, opts Options) (string, error) {
	target := name
	if spec != "" {
		target = name + "@" + spec
	}

	args := []string{"pack", target}
	if opts.URL != "" {
		args = append(args, "--registry", opts.URL)
	}
	if opts.PreferOffline {
		args = append(args, "--prefer-offline")
	}

	n.logger.Info("downloading tar file", "package", target)
	start := time.Now()

	result, err := n.npm.Execute(ctx, args,
		executor.WithWorkingDir(opts.DestDir),
		executor.WithRetry(n.retries, n.retryDelay),
		executor.WithRetryCondition(retryableNPM),
	)
	if err != nil {
		return "", err
	}

	filename := lastLine(result.Stdout)
	if filename == "" {
		return "", &errors.ToolError{
			Tool:     "npm",
			Args:     args,
			ExitCode: result.ExitCode,
			Stderr:   strings.TrimSpace(result.Stderr),
			Err:      fmt.Errorf("npm pack printed no tarball name"),
		}
	}

	n.logger.Info("done", "package", target, "file", filename, "duration", time.Since(start))
	return filepath.Join(opts.DestDir, filename), nil
}

// retryableNPM skips retries for failures npm reports as permanent.
func retryableNPM(err error) bool {
	var toolErr *errors.ToolError
	if !errors.As(err, &toolErr) {
		return true
	}
	if toolErr.ExitCode < 0 {
		return false
	}
	stderr := strings.ToLower(toolErr.Stderr)
	for _, permanent := range []string{"e404", "etarget", "einvalidtagname", "einvalidpackagename"} {
		if strings.Contains(stderr, permanent) {
			return false
		}
	}
	return true
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// pkgdiff compares two package archives and prints their unified diff.
//
// Each package is a local archive (tar, tar.gz, tgz, tar.zst) or a registry
// reference such as lodash@4.17.21. A bare old package ("4.17.20", "next")
// takes the name of the new one.
//
// Exit status is 0 when the packages are identical, 1 when they differ and
// 2 on error. --no-exit-code reports 0 for both verdicts.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/pflag"

	"github.com/sergcen/npm-package-diff/config"
	"github.com/sergcen/npm-package-diff/pkgdiff"
	"github.com/sergcen/npm-package-diff/registry"
)

// Exit codes. Identical packages exit 0.
const (
	exitDifferent = 1
	exitError     = 2
)

// exitStatus carries a process exit status. A nil err exits silently.
type exitStatus struct {
	code int
	err  error
}

func (e *exitStatus) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitStatus) Unwrap() error { return e.err }

func (e *exitStatus) ExitCode() int { return e.code }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		var status *exitStatus
		if stderrors.As(err, &status) {
			if status.err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", status.err)
			}
			os.Exit(status.code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitError)
	}
}

type flags struct {
	exclude       []string
	fastCheck     bool
	quiet         bool
	verbose       bool
	noExitCode    bool
	registry      string
	preferOffline bool
	configPath    string
	progress      bool
	concurrency   int
	tempDir       string
	cleanup       bool
}

func newFlagSet(f *flags) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("pkgdiff", pflag.ContinueOnError)
	flagSet.StringArrayVarP(&f.exclude, "exclude", "x", nil, "exclude paths matching a glob or /regex/ (repeatable)")
	flagSet.BoolVar(&f.fastCheck, "fast-check", false, "stop at the first difference and only report the verdict")
	flagSet.BoolVarP(&f.quiet, "quiet", "q", false, "only log errors")
	flagSet.BoolVarP(&f.verbose, "verbose", "v", false, "log debug details")
	flagSet.BoolVarP(&f.noExitCode, "no-exit-code", "c", false, "exit 0 when packages differ")
	flagSet.StringVar(&f.registry, "registry", "", "registry URL (http(s)://, oci://, oci+http://, s3://)")
	flagSet.BoolVar(&f.preferOffline, "prefer-offline", false, "use cached registry data when possible")
	flagSet.StringVar(&f.configPath, "config", "", "configuration file (default: "+config.DefaultFile+" or $XDG_CONFIG_HOME/"+config.UserFile+")")
	flagSet.BoolVar(&f.progress, "progress", false, "show a progress bar while comparing files")
	flagSet.IntVar(&f.concurrency, "concurrency", 0, "concurrent diffs in full mode (default: number of CPUs)")
	flagSet.StringVar(&f.tempDir, "temp-dir", "", "base directory for session files (default: system temp dir)")
	flagSet.BoolVar(&f.cleanup, "cleanup", false, "remove session files when done")
	flagSet.BoolP("help", "h", false, "show help")
	return flagSet
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var f flags
	flagSet := newFlagSet(&f)
	flagSet.SetOutput(stderr)

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet, stderr)
			return nil
		}
		return &exitStatus{code: exitError, err: err}
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet, stderr)
		return nil
	}
	if flagSet.NArg() != 2 {
		return &exitStatus{code: exitError, err: fmt.Errorf("expected <new-package> <old-package>, got %d arguments", flagSet.NArg())}
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return &exitStatus{code: exitError, err: err}
	}
	applyConfig(flagSet, &f, cfg)

	level := slog.LevelInfo
	switch {
	case f.quiet:
		level = slog.LevelError
	case f.verbose:
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	registryOpts := []registry.Option{
		registry.WithLogger(logger),
		registry.WithS3Region(cfg.S3.Region),
		registry.WithS3Endpoint(cfg.S3.Endpoint),
		registry.WithPlainHTTP(cfg.OCI.PlainHTTP),
	}
	if cfg.Retries != nil {
		registryOpts = append(registryOpts, registry.WithRetry(*cfg.Retries, registry.DefaultRetryDelay))
	}

	clientOpts := []pkgdiff.ClientOption{
		pkgdiff.WithLogger(logger),
		pkgdiff.WithFetcher(registry.New(registryOpts...)),
		pkgdiff.WithConcurrency(f.concurrency),
		pkgdiff.WithTempDir(f.tempDir),
		pkgdiff.WithCleanup(f.cleanup),
	}
	var bar *progress
	if f.progress && !f.quiet {
		bar = newProgress(stderr)
		defer bar.Close()
		clientOpts = append(clientOpts, pkgdiff.WithProgress(bar.Update))
	}
	client := pkgdiff.New(clientOpts...)

	compareOpts := []pkgdiff.CompareOption{
		pkgdiff.WithExclude(f.exclude...),
		pkgdiff.WithRegistry(f.registry),
		pkgdiff.WithPreferOffline(f.preferOffline),
		pkgdiff.WithFull(!f.fastCheck),
	}
	if !f.fastCheck {
		compareOpts = append(compareOpts, pkgdiff.WithStream(stdout))
	}

	newRef, oldRef := flagSet.Arg(0), flagSet.Arg(1)
	outcome, err := client.Compare(ctx, newRef, oldRef, compareOpts...)
	if err != nil {
		return &exitStatus{code: exitError, err: err}
	}

	if f.fastCheck {
		if outcome.Same() {
			logger.Info("packages are equal")
		} else {
			logger.Info("packages are different", "added", len(outcome.Structural.Added), "removed", len(outcome.Structural.Removed))
		}
	}

	if outcome.Same() || f.noExitCode {
		return nil
	}
	return &exitStatus{code: exitDifferent}
}

// loadConfig reads an explicit configuration file, or the file Locate finds
// for the working directory.
func loadConfig(path string) (*config.Config, error) {
	fs := osfs.New("/")
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if path = config.Locate(fs, wd); path == "" {
			return &config.Config{}, nil
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return config.Load(fs, abs, config.LoadOptions{})
}

// applyConfig fills flags the user did not set from cfg.
func applyConfig(flagSet *pflag.FlagSet, f *flags, cfg *config.Config) {
	if !flagSet.Changed("exclude") {
		f.exclude = cfg.Exclude
	}
	if !flagSet.Changed("fast-check") {
		f.fastCheck = cfg.FastCheck
	}
	if !flagSet.Changed("registry") {
		f.registry = cfg.Registry
	}
	if !flagSet.Changed("prefer-offline") {
		f.preferOffline = cfg.PreferOffline
	}
	if !flagSet.Changed("concurrency") {
		f.concurrency = cfg.Concurrency
	}
	if !flagSet.Changed("temp-dir") {
		f.tempDir = cfg.TempDir
	}
	if !flagSet.Changed("cleanup") {
		f.cleanup = cfg.Cleanup
	}
}

func printHelp(flagSet *pflag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `pkgdiff compares two package archives.

Usage:
  pkgdiff [flags] <new-package> <old-package>

Packages are local archives or registry references. A bare old package
("1.2.0", "next") takes the name of the new package.

Examples:
  # Diff two published versions
  pkgdiff lodash@4.17.21 4.17.20

  # Check a local build against the published release, ignoring docs
  pkgdiff ./lodash-4.17.21.tgz lodash@4.17.21 -x '*.md' --fast-check

  # Use an OCI registry
  pkgdiff --registry oci://ghcr.io/acme/npm @acme/ui@2 1.9.0

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}

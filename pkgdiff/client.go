// Package pkgdiff compares two package archives.
//
// A comparison resolves both references, builds and diffs their manifests,
// extracts both archives and compares the paired files. Full mode returns a
// unified diff report; fast mode returns a verdict and can be steered with
// compare.Hooks.
//
// Example usage:
//
//	client := pkgdiff.New(pkgdiff.WithLogger(logger))
//	outcome, err := client.Compare(ctx, "lodash@4.17.21", "4.17.20",
//	    pkgdiff.WithExclude("*.md"))
//	if err != nil {
//	    return err
//	}
//	fmt.Print(outcome.Report)
package pkgdiff

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sergcen/npm-package-diff/archive"
	"github.com/sergcen/npm-package-diff/compare"
	"github.com/sergcen/npm-package-diff/manifest"
	"github.com/sergcen/npm-package-diff/registry"
	"github.com/sergcen/npm-package-diff/resolve"
	"github.com/sergcen/npm-package-diff/workspace"
)

// Kind classifies a comparison outcome.
type Kind int

const (
	// Identical means no difference was found.
	Identical Kind = iota
	// DifferentBoolean is a fast mode difference.
	DifferentBoolean
	// DifferentReport is a full mode difference; Outcome.Report holds it
	// unless it was streamed.
	DifferentReport
)

// String returns the human-readable name of a kind.
func (k Kind) String() string {
	switch k {
	case Identical:
		return "identical"
	case DifferentBoolean:
		return "different"
	case DifferentReport:
		return "different (report)"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Outcome is the result of a comparison.
type Outcome struct {
	Kind Kind

	// Report is the full mode unified diff; empty when streamed.
	Report string

	// Structural is the manifest level difference.
	Structural manifest.StructuralDiff

	// Pairs is the number of compared path pairs.
	Pairs int

	// Stop is set when a fast scan ended on a difference the hooks did not
	// skip. A nil Stop on a fast difference means the scan never started.
	Stop *compare.Stop

	// New and Old are the resolved archives.
	New resolve.Archive
	Old resolve.Archive
}

// Same reports whether the packages are identical.
func (o *Outcome) Same() bool {
	return o.Kind == Identical
}

// Client runs comparisons. It is safe for concurrent use.
type Client struct {
	options  *ClientOptions
	resolver *resolve.Resolver
}

// New creates a Client.
func New(opts ...ClientOption) *Client {
	options := DefaultClientOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Fetcher == nil {
		options.Fetcher = registry.New(registry.WithLogger(options.Logger))
	}
	if options.Archiver == nil {
		options.Archiver = archive.NewTar()
	}
	if options.Differ == nil {
		options.Differ = compare.NewExecDiffer(nil)
	}

	return &Client{
		options:  options,
		resolver: resolve.New(options.Fetcher, resolve.WithLogger(options.Logger)),
	}
}

// Equal reports whether two packages are identical using fast mode.
func (c *Client) Equal(ctx context.Context, newRef, oldRef string, opts ...CompareOption) (bool, error) {
	opts = append(opts, WithFull(false))
	outcome, err := c.Compare(ctx, newRef, oldRef, opts...)
	if err != nil {
		return false, err
	}
	return outcome.Same(), nil
}

// Compare compares the package newRef against oldRef. Full mode is the
// default.
func (c *Client) Compare(ctx context.Context, newRef, oldRef string, opts ...CompareOption) (*Outcome, error) {
	options := &CompareOptions{Full: true}
	for _, opt := range opts {
		opt(options)
	}

	if newRef == oldRef {
		return nil, &UsageError{Message: fmt.Sprintf("%s and %s are equal", newRef, oldRef), Err: ErrIdenticalReferences}
	}
	newParsed, err := resolve.ParseRef(newRef)
	if err != nil {
		return nil, &UsageError{Message: "invalid new package reference", Err: err}
	}
	oldParsed, err := resolve.ParseRef(oldRef)
	if err != nil {
		return nil, &UsageError{Message: "invalid old package reference", Err: err}
	}
	matcher, err := manifest.NewMatcher(options.Exclude...)
	if err != nil {
		return nil, &UsageError{Message: "invalid exclude pattern", Err: err}
	}

	ws, cleanup, err := c.workspace(newRef, oldRef)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	logger := c.options.Logger.With("new", newRef, "old", oldRef)
	outcome := &Outcome{}

	// Resolve both references.
	newDL, err := ws.Dir("download")
	if err != nil {
		return nil, err
	}
	oldDL, err := ws.Dir("download")
	if err != nil {
		return nil, err
	}
	var g errgroup.Group
	g.Go(func() error {
		a, err := c.resolver.Resolve(ctx, newParsed, resolve.Context{
			DownloadDir:   newDL,
			Registry:      options.Registry,
			PreferOffline: options.PreferOffline,
		})
		outcome.New = a
		return err
	})
	g.Go(func() error {
		a, err := c.resolver.Resolve(ctx, oldParsed, resolve.Context{
			DownloadDir:   oldDL,
			Sibling:       &newParsed,
			Registry:      options.Registry,
			PreferOffline: options.PreferOffline,
		})
		outcome.Old = a
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Build and diff manifests.
	builder := manifest.NewBuilder(c.options.Archiver, manifest.WithMatcher(matcher), manifest.WithLogger(logger))
	var newM, oldM manifest.Manifest
	g = errgroup.Group{}
	g.Go(func() (err error) {
		newM, err = builder.Build(ctx, outcome.New.Path)
		return err
	})
	g.Go(func() (err error) {
		oldM, err = builder.Build(ctx, outcome.Old.Path)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	outcome.Structural = manifest.Diff(newM, oldM)
	logger.Debug("structural diff",
		"added", len(outcome.Structural.Added),
		"removed", len(outcome.Structural.Removed))

	if !options.Full && !outcome.Structural.Empty() && options.Hooks.OnFailure == nil {
		outcome.Kind = DifferentBoolean
		return outcome, nil
	}

	// Extract both archives.
	newDir, err := ws.Dir("unpack")
	if err != nil {
		return nil, err
	}
	oldDir, err := ws.Dir("unpack")
	if err != nil {
		return nil, err
	}
	g = errgroup.Group{}
	g.Go(func() error { return c.extract(ctx, logger, outcome.New.Path, newDir) })
	g.Go(func() error { return c.extract(ctx, logger, outcome.Old.Path, oldDir) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pairs := manifest.Pair(newDir, oldDir, newM, oldM)
	outcome.Pairs = len(pairs)
	comparator := compare.New(c.options.Differ,
		compare.WithConcurrency(c.options.Concurrency),
		compare.WithProgress(c.options.Progress),
		compare.WithLogger(logger),
	)

	if options.Full {
		result, err := comparator.Full(ctx, pairs, options.Stream)
		if err != nil {
			return nil, err
		}
		outcome.Report = result.Report
		if result.Differing > 0 || !outcome.Structural.Empty() {
			outcome.Kind = DifferentReport
		}
		return outcome, nil
	}

	result, err := comparator.Fast(ctx, pairs, options.Hooks)
	if err != nil {
		return nil, err
	}
	if !result.Same {
		outcome.Kind = DifferentBoolean
		outcome.Stop = result.Stop
	}
	return outcome, nil
}

func (c *Client) extract(ctx context.Context, logger *slog.Logger, archivePath, dir string) error {
	start := time.Now()
	if err := c.options.Archiver.Extract(ctx, archivePath, dir); err != nil {
		return err
	}
	logger.Info("unpacked", "archive", archivePath, "dir", dir, "duration", time.Since(start))
	return nil
}

// workspace returns the provider for one comparison and a release function.
func (c *Client) workspace(newRef, oldRef string) (workspace.Provider, func(), error) {
	if c.options.Workspace != nil {
		return c.options.Workspace, func() {}, nil
	}
	session, err := workspace.NewSession(c.options.TempDir, newRef, oldRef)
	if err != nil {
		return nil, nil, err
	}
	run, err := session.Sub("run")
	if err != nil {
		return nil, nil, err
	}
	if !c.options.Cleanup {
		return run, func() {}, nil
	}
	return run, func() {
		if err := run.Remove(); err != nil {
			c.options.Logger.Warn("failed to remove session", "dir", run.Root(), "error", err)
		}
	}, nil
}

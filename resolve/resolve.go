// Package resolve turns package references into local archive paths.
//
// Local archives are validated and returned unchanged. Registry references
// are downloaded through a registry.Fetcher. A bare second reference such as
// "1.2.3" or "next" inherits the package name of its sibling.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/sergcen/npm-package-diff/errors"
	"github.com/sergcen/npm-package-diff/registry"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a local archive does not exist.
	ErrNotFound = errors.New(errors.CodeNotFound, "package archive not found")

	// ErrDownloadFailed is returned when a registry download fails.
	ErrDownloadFailed = errors.New(errors.CodeDownloadFailed, "package download failed")

	// ErrInvalidRef is returned for references that cannot be parsed.
	ErrInvalidRef = errors.New(errors.CodeInvalidInput, "invalid package reference")
)

var userHomeDir = os.UserHomeDir

// Error reports a failed resolution.
type Error struct {
	// Ref is the reference being resolved.
	Ref string
	// Registry is the registry URL, empty for local archives and the default registry.
	Registry string
	// Kind is ErrNotFound or ErrDownloadFailed.
	Kind error
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "resolve %s", e.Ref)
	if e.Registry != "" {
		fmt.Fprintf(&b, " (registry %s)", e.Registry)
	}
	if e.Kind != nil {
		fmt.Fprintf(&b, ": %v", e.Kind)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Code implements errors.Coded.
func (e *Error) Code() errors.ErrorCode {
	return errors.GetCode(e.Kind)
}

// IsResolutionError checks if an error is an *Error or contains one in its chain.
func IsResolutionError(err error) bool {
	var re *Error
	return errors.As(err, &re)
}

// Archive is a resolved reference.
type Archive struct {
	// Path is the absolute path of the archive on disk.
	Path string
	// Ref is the reference that produced the archive.
	Ref Ref
	// Name and Spec are what was fetched; empty for local archives.
	Name string
	Spec string
}

// Context carries the per-resolution inputs.
type Context struct {
	// DownloadDir receives downloaded tarballs.
	DownloadDir string
	// Sibling is the other reference of the comparison. A bare reference
	// adopts its package name.
	Sibling *Ref
	// Registry is the registry URL passed to the fetcher.
	Registry string
	// PreferOffline is passed to the fetcher.
	PreferOffline bool
}

// Resolver resolves references to archives.
type Resolver struct {
	fetcher registry.Fetcher
	fs      billy.Filesystem
	logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithFilesystem sets the filesystem local archives are checked on.
// Paths are made absolute before lookup.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(r *Resolver) { r.fs = fs }
}

// New creates a Resolver downloading through fetcher.
func New(fetcher registry.Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		fs:      osfs.New("/"),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the archive ref denotes, downloading it when needed.
func (r *Resolver) Resolve(ctx context.Context, ref Ref, rc Context) (Archive, error) {
	if ref.Kind == KindFile {
		return r.resolveFile(ref)
	}

	name, spec := ref.Name, ref.Spec
	if !ref.HasSpec && rc.Sibling != nil && rc.Sibling.Kind == KindRegistry {
		name, spec = rc.Sibling.Name, ref.Name
	}

	fetchName := name
	if spec != "" {
		fetchName = name + "@" + spec
	}
	r.logger.Info("resolving package", "ref", ref.Raw, "fetch", fetchName, "registry", rc.Registry)

	p, err := r.fetcher.Fetch(ctx, name, spec, registry.Options{
		URL:           rc.Registry,
		PreferOffline: rc.PreferOffline,
		DestDir:       rc.DownloadDir,
	})
	if err != nil {
		return Archive{}, &Error{Ref: fetchName, Registry: rc.Registry, Kind: ErrDownloadFailed, Err: err}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return Archive{}, &Error{Ref: fetchName, Registry: rc.Registry, Kind: ErrDownloadFailed, Err: err}
	}
	return Archive{Path: abs, Ref: ref, Name: name, Spec: spec}, nil
}

func (r *Resolver) resolveFile(ref Ref) (Archive, error) {
	abs, err := filepath.Abs(ref.Path)
	if err != nil {
		return Archive{}, &Error{Ref: ref.Raw, Kind: ErrNotFound, Err: err}
	}
	info, err := r.fs.Stat(abs)
	if err != nil {
		return Archive{}, &Error{Ref: ref.Raw, Kind: ErrNotFound, Err: fmt.Errorf("cannot open file %s: %w", abs, err)}
	}
	if info.IsDir() {
		return Archive{}, &Error{Ref: ref.Raw, Kind: ErrNotFound, Err: fmt.Errorf("%s is a directory", abs)}
	}
	return Archive{Path: abs, Ref: ref}, nil
}

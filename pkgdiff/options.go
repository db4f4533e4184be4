package pkgdiff

import (
	"io"
	"log/slog"
	"runtime"

	"github.com/sergcen/npm-package-diff/archive"
	"github.com/sergcen/npm-package-diff/compare"
	"github.com/sergcen/npm-package-diff/registry"
	"github.com/sergcen/npm-package-diff/workspace"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// Logger receives pipeline logs. Defaults to a discard logger.
	Logger *slog.Logger

	// Fetcher downloads registry packages. Defaults to registry.New().
	Fetcher registry.Fetcher

	// Archiver lists and extracts archives. Defaults to archive.NewTar().
	Archiver archive.Archiver

	// Differ compares file contents. Defaults to diff(1).
	Differ compare.Differ

	// Workspace supplies working directories. Defaults to a session below
	// TempDir named after both references.
	Workspace workspace.Provider

	// TempDir is the base of default sessions. Empty selects os.TempDir().
	TempDir string

	// Cleanup removes default sessions when a comparison returns.
	Cleanup bool

	// Concurrency bounds full mode diffs. Defaults to runtime.NumCPU().
	Concurrency int

	// Progress is called as pairs complete.
	Progress func(done, total int)
}

// ClientOption is a function that modifies ClientOptions.
type ClientOption func(*ClientOptions)

// DefaultClientOptions returns default client options.
func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		Logger:      slog.New(slog.DiscardHandler),
		Concurrency: runtime.NumCPU(),
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *ClientOptions) { o.Logger = logger }
}

// WithFetcher sets the registry fetcher.
func WithFetcher(f registry.Fetcher) ClientOption {
	return func(o *ClientOptions) { o.Fetcher = f }
}

// WithArchiver sets the archive lister and extractor.
func WithArchiver(a archive.Archiver) ClientOption {
	return func(o *ClientOptions) { o.Archiver = a }
}

// WithDiffer sets the content differ.
func WithDiffer(d compare.Differ) ClientOption {
	return func(o *ClientOptions) { o.Differ = d }
}

// WithWorkspace sets a fixed workspace provider.
func WithWorkspace(p workspace.Provider) ClientOption {
	return func(o *ClientOptions) { o.Workspace = p }
}

// WithTempDir sets the base directory of default sessions.
func WithTempDir(dir string) ClientOption {
	return func(o *ClientOptions) { o.TempDir = dir }
}

// WithCleanup removes default sessions after each comparison.
func WithCleanup(cleanup bool) ClientOption {
	return func(o *ClientOptions) { o.Cleanup = cleanup }
}

// WithConcurrency bounds full mode diffs.
func WithConcurrency(n int) ClientOption {
	return func(o *ClientOptions) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn func(done, total int)) ClientOption {
	return func(o *ClientOptions) { o.Progress = fn }
}

// CompareOptions parameterizes one comparison.
type CompareOptions struct {
	// Exclude lists glob or /regex/ patterns removed from both manifests.
	Exclude []string

	// Full selects the exhaustive unified diff. Compare defaults to true.
	Full bool

	// Stream receives the full report as it is produced.
	Stream io.Writer

	// Registry is the registry URL for both references.
	Registry string

	// PreferOffline lets the registry backend use its cache first.
	PreferOffline bool

	// Hooks is the fast mode policy.
	Hooks compare.Hooks
}

// CompareOption is a function that modifies CompareOptions.
type CompareOption func(*CompareOptions)

// WithExclude adds exclusion patterns.
func WithExclude(patterns ...string) CompareOption {
	return func(o *CompareOptions) { o.Exclude = append(o.Exclude, patterns...) }
}

// WithFull selects full (true) or fast (false) mode.
func WithFull(full bool) CompareOption {
	return func(o *CompareOptions) { o.Full = full }
}

// WithStream streams the full report to w.
func WithStream(w io.Writer) CompareOption {
	return func(o *CompareOptions) { o.Stream = w }
}

// WithRegistry sets the registry URL.
func WithRegistry(url string) CompareOption {
	return func(o *CompareOptions) { o.Registry = url }
}

// WithPreferOffline prefers cached registry data.
func WithPreferOffline(prefer bool) CompareOption {
	return func(o *CompareOptions) { o.PreferOffline = prefer }
}

// WithHooks sets the fast mode policy.
func WithHooks(hooks compare.Hooks) CompareOption {
	return func(o *CompareOptions) { o.Hooks = hooks }
}

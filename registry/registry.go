// Package registry downloads package tarballs from a package registry.
//
// The backend is chosen from the registry URL scheme:
//
//	""  http://  https://   npm compatible registry through `npm pack`
//	oci://host/namespace    OCI registry, one repository per package, tags are versions
//	s3://bucket/prefix      S3 bucket holding npm-named tarballs
//
// Every backend writes the tarball into Options.DestDir and returns its path.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sergcen/npm-package-diff/errors"
	"github.com/sergcen/npm-package-diff/executor"
)

// Sentinel errors.
var (
	// ErrNoMatchingVersion is returned when no published version satisfies the spec.
	ErrNoMatchingVersion = errors.New(errors.CodeNotFound, "no version satisfies spec")

	// ErrUnsupportedRegistry is returned for registry URLs with an unknown scheme.
	ErrUnsupportedRegistry = errors.New(errors.CodeInvalidInput, "unsupported registry")
)

// Options parameterizes one fetch.
type Options struct {
	// URL is the registry location; empty selects the npm default registry.
	URL string

	// PreferOffline lets the npm backend use its local cache first.
	PreferOffline bool

	// DestDir receives the downloaded tarball.
	DestDir string
}

// Fetcher downloads name@spec and returns the local path of the tarball.
type Fetcher interface {
	Fetch(ctx context.Context, name, spec string, opts Options) (string, error)
}

// Retry defaults for npm downloads.
const (
	DefaultRetries    = 2
	DefaultRetryDelay = time.Second
)

type config struct {
	logger     *slog.Logger
	executor   executor.Executor
	oci        ociClient
	s3         S3API
	s3Region   string
	s3Endpoint string
	plainHTTP  bool
	retries    int
	retryDelay time.Duration
}

// Option configures the registry backends.
type Option func(*config)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithExecutor sets the executor used to run npm.
func WithExecutor(e executor.Executor) Option {
	return func(c *config) { c.executor = e }
}

// WithS3Client sets the S3 client. Without it a client is built from the
// default AWS configuration on first use.
func WithS3Client(client S3API) Option {
	return func(c *config) { c.s3 = client }
}

// WithS3Region sets the region for the default S3 client.
func WithS3Region(region string) Option {
	return func(c *config) { c.s3Region = region }
}

// WithS3Endpoint points the default S3 client at a custom endpoint with
// path style addressing.
func WithS3Endpoint(endpoint string) Option {
	return func(c *config) { c.s3Endpoint = endpoint }
}

// WithPlainHTTP makes the OCI backend use HTTP instead of HTTPS.
func WithPlainHTTP(plain bool) Option {
	return func(c *config) { c.plainHTTP = plain }
}

// WithRetry configures retries of network downloads.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *config) {
		c.retries = maxRetries
		c.retryDelay = delay
	}
}

func newConfig(opts []Option) *config {
	c := &config{
		logger:     slog.New(slog.DiscardHandler),
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.executor == nil {
		c.executor = executor.New()
	}
	return c
}

// Mux dispatches fetches to a backend by registry URL scheme.
type Mux struct {
	npm    Fetcher
	oci    Fetcher
	s3     Fetcher
	logger *slog.Logger
}

var _ Fetcher = (*Mux)(nil)

// New creates a Mux with all backends sharing opts.
func New(opts ...Option) *Mux {
	c := newConfig(opts)
	return &Mux{
		npm:    newNPM(c),
		oci:    newOCI(c),
		s3:     newS3(c),
		logger: c.logger,
	}
}

// Fetch implements Fetcher.
func (m *Mux) Fetch(ctx context.Context, name, spec string, opts Options) (string, error) {
	backend, err := m.backend(opts.URL)
	if err != nil {
		return "", err
	}
	m.logger.Debug("fetching package", "name", name, "spec", spec, "registry", opts.URL)
	return backend.Fetch(ctx, name, spec, opts)
}

func (m *Mux) backend(rawURL string) (Fetcher, error) {
	kind, err := KindOf(rawURL)
	if err != nil {
		return nil, err
	}
	switch kind {
	case BackendOCI:
		return m.oci, nil
	case BackendS3:
		return m.s3, nil
	default:
		return m.npm, nil
	}
}

// Backend identifies the registry protocol a URL selects.
type Backend string

const (
	BackendNPM Backend = "npm"
	BackendOCI Backend = "oci"
	BackendS3  Backend = "s3"
)

// KindOf returns the backend rawURL selects. An empty URL is the npm
// default registry.
func KindOf(rawURL string) (Backend, error) {
	if rawURL == "" {
		return BackendNPM, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.WrapWithContext(err, errors.CodeInvalidInput, "parse registry URL",
			map[string]interface{}{"url": rawURL})
	}
	switch u.Scheme {
	case "http", "https":
		return BackendNPM, nil
	case "oci", "oci+http":
		return BackendOCI, nil
	case "s3":
		return BackendS3, nil
	default:
		return "", fmt.Errorf("%w: scheme %q", ErrUnsupportedRegistry, u.Scheme)
	}
}

// TarballName returns the file name npm pack gives name@version:
// "@scope/pkg" 1.2.3 becomes "scope-pkg-1.2.3.tgz".
func TarballName(name, version string) string {
	name = strings.TrimPrefix(name, "@")
	name = strings.ReplaceAll(name, "/", "-")
	return fmt.Sprintf("%s-%s.tgz", name, version)
}

package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/sergcen/npm-package-diff/errors"
	"github.com/sergcen/npm-package-diff/registry/internal/oras"
)

// ociClient is the registry protocol surface the OCI backend needs.
type ociClient interface {
	Tags(ctx context.Context, repository string) ([]string, error)
	Pull(ctx context.Context, reference string) (*oras.PullDescriptor, error)
}

// OCI fetches tarballs stored as OCI artifacts. A package name maps to a
// repository below the registry namespace and every version is a tag; "+"
// in a version is stored as "_" since tags cannot contain it.
//
// The "oci+http" scheme talks to the registry over plain HTTP.
type OCI struct {
	client ociClient
	plain  ociClient
	logger *slog.Logger
}

var _ Fetcher = (*OCI)(nil)

// NewOCI creates an OCI backend.
func NewOCI(opts ...Option) *OCI {
	return newOCI(newConfig(opts))
}

func newOCI(c *config) *OCI {
	if c.oci != nil {
		return &OCI{client: c.oci, plain: c.oci, logger: c.logger}
	}
	return &OCI{
		client: &oras.Client{Auth: &oras.AuthOptions{PlainHTTP: c.plainHTTP}},
		plain:  &oras.Client{Auth: &oras.AuthOptions{PlainHTTP: true}},
		logger: c.logger,
	}
}

// Fetch implements Fetcher.
func (o *OCI) Fetch(ctx context.Context, name, spec string, opts Options) (string, error) {
	repository, plain, err := ociRepository(opts.URL, name)
	if err != nil {
		return "", err
	}
	client := o.client
	if plain {
		client = o.plain
	}

	tags, err := client.Tags(ctx, repository)
	if err != nil {
		return "", errors.WrapWithContext(err, errors.CodeNetwork, "list tags",
			map[string]interface{}{"repository": repository})
	}
	versions := make([]string, 0, len(tags))
	for _, tag := range tags {
		versions = append(versions, strings.ReplaceAll(tag, "_", "+"))
	}
	version, err := SelectVersion(spec, versions)
	if err != nil {
		return "", err
	}

	reference := repository + ":" + strings.ReplaceAll(version, "+", "_")
	o.logger.Info("downloading tar file", "package", name+"@"+version, "reference", reference)

	desc, err := client.Pull(ctx, reference)
	if err != nil {
		return "", errors.WrapWithContext(err, errors.CodeDownloadFailed, "pull artifact",
			map[string]interface{}{"reference": reference})
	}
	defer desc.Data.Close()

	target := filepath.Join(opts.DestDir, TarballName(name, version))
	if err := writeVerified(target, desc.Data, desc.Digest); err != nil {
		return "", errors.WrapWithContext(err, errors.CodeDownloadFailed, "store artifact",
			map[string]interface{}{"reference": reference})
	}

	o.logger.Info("done", "package", name+"@"+version, "file", target)
	return target, nil
}

// ociRepository maps "oci://host/ns" and "@scope/pkg" to "host/ns/scope/pkg".
// plain reports the oci+http scheme.
func ociRepository(rawURL, name string) (repository string, plain bool, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false, errors.WrapWithContext(err, errors.CodeInvalidInput, "parse registry URL",
			map[string]interface{}{"url": rawURL})
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("%w: %q has no host", ErrUnsupportedRegistry, rawURL)
	}
	repository = path.Join(u.Host, strings.TrimPrefix(u.Path, "/"), strings.TrimPrefix(name, "@"))
	return repository, u.Scheme == "oci+http", nil
}

// writeVerified streams r into target and checks the content against want.
// A mismatching file is removed.
func writeVerified(target string, r io.Reader, want digest.Digest) error {
	if err := want.Validate(); err != nil {
		return fmt.Errorf("invalid descriptor digest %q: %w", want, err)
	}
	verifier := want.Verifier()

	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(io.MultiWriter(f, verifier), r); err != nil {
		_ = f.Close()
		_ = os.Remove(target)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if !verifier.Verified() {
		_ = os.Remove(target)
		return fmt.Errorf("digest mismatch for %s: want %s", filepath.Base(target), want)
	}
	return nil
}

package registry

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orasgo "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/memory"

	"github.com/sergcen/npm-package-diff/errors"
	"github.com/sergcen/npm-package-diff/registry/internal/oras"
)

func withOCIClient(client ociClient) Option {
	return func(c *config) { c.oci = client }
}

// memoryOCI serves one repository from an in-memory OCI store.
type memoryOCI struct {
	repository string
	store      *memory.Store
	tags       []string
	pulled     []string
}

func newMemoryOCI(t *testing.T, repository string, versions map[string][]byte) *memoryOCI {
	t.Helper()

	ctx := context.Background()
	m := &memoryOCI{repository: repository, store: memory.New()}
	for tag, payload := range versions {
		layer, err := orasgo.PushBytes(ctx, m.store, "application/vnd.npm.package.tar+gzip", payload)
		require.NoError(t, err)
		manifest, err := orasgo.PackManifest(ctx, m.store, orasgo.PackManifestVersion1_1,
			"application/vnd.npm.package", orasgo.PackManifestOptions{Layers: []ocispec.Descriptor{layer}})
		require.NoError(t, err)
		require.NoError(t, m.store.Tag(ctx, manifest, tag))
		m.tags = append(m.tags, tag)
	}
	return m
}

func (m *memoryOCI) Tags(_ context.Context, repository string) ([]string, error) {
	if repository != m.repository {
		return nil, errors.New(errors.CodeNotFound, "repository not found")
	}
	return m.tags, nil
}

func (m *memoryOCI) Pull(ctx context.Context, reference string) (*oras.PullDescriptor, error) {
	m.pulled = append(m.pulled, reference)
	tag := reference[strings.LastIndex(reference, ":")+1:]
	return oras.PullLayer(ctx, m.store, tag)
}

func TestOCIFetch(t *testing.T) {
	backend := newMemoryOCI(t, "ghcr.io/acme/npm/scope/pkg", map[string][]byte{
		"1.0.0":       []byte("one"),
		"1.1.0":       []byte("one-one"),
		"2.0.0_build": []byte("two"),
	})
	dest := t.TempDir()

	got, err := NewOCI(withOCIClient(backend)).Fetch(context.Background(), "@scope/pkg", "^1.0.0", Options{
		URL:     "oci://ghcr.io/acme/npm",
		DestDir: dest,
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dest, "scope-pkg-1.1.0.tgz"), got)
	assert.Equal(t, []string{"ghcr.io/acme/npm/scope/pkg:1.1.0"}, backend.pulled)
	body, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "one-one", string(body))
}

func TestOCIFetchBuildMetadataTag(t *testing.T) {
	backend := newMemoryOCI(t, "localhost:5000/pkg", map[string][]byte{"2.0.0_build": []byte("two")})

	got, err := NewOCI(withOCIClient(backend)).Fetch(context.Background(), "pkg", "2.0.0+build", Options{
		URL:     "oci+http://localhost:5000",
		DestDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, "pkg-2.0.0+build.tgz", filepath.Base(got))
	assert.Equal(t, []string{"localhost:5000/pkg:2.0.0_build"}, backend.pulled)
}

func TestOCIFetchNoMatchingVersion(t *testing.T) {
	backend := newMemoryOCI(t, "ghcr.io/acme/pkg", map[string][]byte{"1.0.0": []byte("one")})

	_, err := NewOCI(withOCIClient(backend)).Fetch(context.Background(), "pkg", "^2", Options{
		URL:     "oci://ghcr.io/acme",
		DestDir: t.TempDir(),
	})
	assert.ErrorIs(t, err, ErrNoMatchingVersion)
	assert.Empty(t, backend.pulled)
}

func TestOCIFetchUnknownRepository(t *testing.T) {
	backend := newMemoryOCI(t, "ghcr.io/acme/pkg", nil)

	_, err := NewOCI(withOCIClient(backend)).Fetch(context.Background(), "other", "1.0.0", Options{
		URL:     "oci://ghcr.io/acme",
		DestDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeNetwork, errors.GetCode(err))
}

func TestWriteVerified(t *testing.T) {
	payload := []byte("tarball")
	dir := t.TempDir()

	t.Run("matching digest", func(t *testing.T) {
		target := filepath.Join(dir, "ok.tgz")
		require.NoError(t, writeVerified(target, bytes.NewReader(payload), digest.FromBytes(payload)))
		body, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, payload, body)
	})

	t.Run("mismatching digest removes file", func(t *testing.T) {
		target := filepath.Join(dir, "bad.tgz")
		err := writeVerified(target, bytes.NewReader(payload), digest.FromString("something else"))
		require.ErrorContains(t, err, "digest mismatch")
		_, statErr := os.Stat(target)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("invalid digest", func(t *testing.T) {
		err := writeVerified(filepath.Join(dir, "x.tgz"), io.LimitReader(nil, 0), digest.Digest("nope"))
		assert.ErrorContains(t, err, "invalid descriptor digest")
	})
}

func TestOCIRepository(t *testing.T) {
	tests := []struct {
		url     string
		name    string
		want    string
		plain   bool
		wantErr bool
	}{
		{"oci://ghcr.io/acme/npm", "left-pad", "ghcr.io/acme/npm/left-pad", false, false},
		{"oci://ghcr.io", "@scope/pkg", "ghcr.io/scope/pkg", false, false},
		{"oci+http://localhost:5000/ns/", "pkg", "localhost:5000/ns/pkg", true, false},
		{"oci:///no-host", "pkg", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, plain, err := ociRepository(tt.url, tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedRegistry)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.plain, plain)
		})
	}
}

package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergcen/npm-package-diff/errors"
)

// recordingFetcher remembers which backend served a fetch.
type recordingFetcher struct {
	name  string
	calls *[]string
}

func (r recordingFetcher) Fetch(_ context.Context, name, spec string, _ Options) (string, error) {
	*r.calls = append(*r.calls, r.name)
	return r.name + ":" + name + "@" + spec, nil
}

func TestMuxDispatch(t *testing.T) {
	var calls []string
	mux := &Mux{
		npm:    recordingFetcher{"npm", &calls},
		oci:    recordingFetcher{"oci", &calls},
		s3:     recordingFetcher{"s3", &calls},
		logger: newConfig(nil).logger,
	}

	tests := []struct {
		url  string
		want string
	}{
		{"", "npm"},
		{"https://registry.npmjs.org", "npm"},
		{"http://localhost:4873", "npm"},
		{"oci://ghcr.io/acme", "oci"},
		{"oci+http://localhost:5000", "oci"},
		{"s3://bucket/prefix", "s3"},
	}

	for _, tt := range tests {
		t.Run(tt.want+" "+tt.url, func(t *testing.T) {
			got, err := mux.Fetch(context.Background(), "pkg", "1.0.0", Options{URL: tt.url})
			require.NoError(t, err)
			assert.Equal(t, tt.want+":pkg@1.0.0", got)
		})
	}
}

func TestMuxUnsupportedScheme(t *testing.T) {
	_, err := New().Fetch(context.Background(), "pkg", "1.0.0", Options{URL: "ftp://example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedRegistry)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestTarballName(t *testing.T) {
	assert.Equal(t, "left-pad-1.3.0.tgz", TarballName("left-pad", "1.3.0"))
	assert.Equal(t, "babel-core-7.0.0.tgz", TarballName("@babel/core", "7.0.0"))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		url     string
		want    Backend
		wantErr bool
	}{
		{"", BackendNPM, false},
		{"https://registry.npmjs.org", BackendNPM, false},
		{"oci://ghcr.io/acme", BackendOCI, false},
		{"oci+http://localhost:5000", BackendOCI, false},
		{"s3://bucket", BackendS3, false},
		{"file:///tmp", "", true},
		{"://bad", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := KindOf(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

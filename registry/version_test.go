package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectVersion(t *testing.T) {
	published := []string{"1.0.0", "1.2.0", "1.10.1", "2.0.0-beta.1", "not-a-version", "0.9.0"}

	tests := []struct {
		name    string
		spec    string
		want    string
		wantErr bool
	}{
		{"empty selects highest stable", "", "1.10.1", false},
		{"latest selects highest stable", "latest", "1.10.1", false},
		{"exact", "1.2.0", "1.2.0", false},
		{"caret", "^1.0.0", "1.10.1", false},
		{"tilde", "~1.2", "1.2.0", false},
		{"range", ">=0.9.0 <1.1.0", "1.0.0", false},
		{"prerelease by name", "2.0.0-beta.1", "2.0.0-beta.1", false},
		{"no match", "^3.0.0", "", true},
		{"unknown dist-tag", "next", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectVersion(tt.spec, published)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrNoMatchingVersion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectVersionOnlyPrereleases(t *testing.T) {
	got, err := SelectVersion("latest", []string{"1.0.0-rc.1", "1.0.0-rc.2"})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0-rc.2", got)

	_, err = SelectVersion("", nil)
	assert.ErrorIs(t, err, ErrNoMatchingVersion)
}

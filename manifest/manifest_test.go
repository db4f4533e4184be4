package manifest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLister struct {
	names map[string][]string
	err   error
}

func (m *mockLister) List(_ context.Context, archivePath string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]string(nil), m.names[archivePath]...), nil
}

func TestBuild(t *testing.T) {
	lister := &mockLister{names: map[string][]string{
		"a.tgz": {"package/lib/b.js", "package/README.md", "package/a.js", "package/a.js"},
	}}

	t.Run("sorted and de-duplicated", func(t *testing.T) {
		m, err := NewBuilder(lister).Build(context.Background(), "a.tgz")
		require.NoError(t, err)
		assert.Equal(t, Manifest{"package/README.md", "package/a.js", "package/lib/b.js"}, m)
	})

	t.Run("exclusions applied", func(t *testing.T) {
		matcher, err := NewMatcher("*.md")
		require.NoError(t, err)

		m, err := NewBuilder(lister, WithMatcher(matcher)).Build(context.Background(), "a.tgz")
		require.NoError(t, err)
		assert.Equal(t, Manifest{"package/a.js", "package/lib/b.js"}, m)
	})

	t.Run("lister error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := NewBuilder(&mockLister{err: boom}).Build(context.Background(), "a.tgz")
		assert.ErrorIs(t, err, boom)
	})
}

func TestDiff(t *testing.T) {
	t.Run("same manifest", func(t *testing.T) {
		m := Manifest{"package/a.js", "package/b.js"}
		d := Diff(m, m)
		assert.True(t, d.Empty())
		assert.Empty(t, d.Added)
		assert.Empty(t, d.Removed)
	})

	t.Run("added and removed", func(t *testing.T) {
		d := Diff(
			Manifest{"package/a.js", "package/new.js"},
			Manifest{"package/a.js", "package/old.js", "package/z.js"},
		)
		assert.Equal(t, []string{"package/new.js"}, d.Added)
		assert.Equal(t, []string{"package/old.js", "package/z.js"}, d.Removed)
		assert.Equal(t, 3, d.DiffCount)
		assert.False(t, d.Empty())
	})

	t.Run("empty manifests", func(t *testing.T) {
		assert.True(t, Diff(nil, nil).Empty())
	})
}

func TestPair(t *testing.T) {
	newM := Manifest{"package/a.js", "package/new.js"}
	oldM := Manifest{"package/a.js", "package/old.js"}

	pairs := Pair("/n", "/o", newM, oldM)

	require.Len(t, pairs, 3)
	assert.Equal(t, []string{"package/a.js", "package/new.js", "package/old.js"},
		[]string{pairs[0].Rel, pairs[1].Rel, pairs[2].Rel})
	for _, p := range pairs {
		assert.Equal(t, filepath.Join("/n", filepath.FromSlash(p.Rel)), p.New)
		assert.Equal(t, filepath.Join("/o", filepath.FromSlash(p.Rel)), p.Old)
	}
}

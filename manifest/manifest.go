// Package manifest builds, diffs and pairs the file listings of two package
// archives.
//
// A Manifest is the sorted, exclusion-filtered list of an archive's regular
// file members. Manifests are built once and never mutated.
package manifest

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/sergcen/npm-package-diff/archive"
)

// Manifest is a sorted list of archive relative paths.
type Manifest []string

// Contains reports whether rel is part of the manifest.
func (m Manifest) Contains(rel string) bool {
	i := sort.SearchStrings(m, rel)
	return i < len(m) && m[i] == rel
}

// Builder produces manifests from archives.
type Builder struct {
	lister  archive.Lister
	matcher *Matcher
	logger  *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithMatcher sets the exclusion matcher.
func WithMatcher(m *Matcher) BuilderOption {
	return func(b *Builder) {
		b.matcher = m
	}
}

// WithLogger sets the logger for the builder.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a Builder listing archives with lister.
func NewBuilder(lister archive.Lister, opts ...BuilderOption) *Builder {
	b := &Builder{
		lister: lister,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build lists archivePath and returns its sorted, de-duplicated manifest with
// excluded paths removed.
func (b *Builder) Build(ctx context.Context, archivePath string) (Manifest, error) {
	names, err := b.lister.List(ctx, archivePath)
	if err != nil {
		return nil, err
	}

	sort.Strings(names)
	out := make(Manifest, 0, len(names))
	excluded := 0
	filter := !b.matcher.Empty()
	for i, name := range names {
		if name == "" || (i > 0 && name == names[i-1]) {
			continue
		}
		if filter && b.matcher.Excluded(name) {
			excluded++
			continue
		}
		out = append(out, name)
	}

	b.logger.Debug("built manifest",
		"archive", archivePath,
		"files", len(out),
		"excluded", excluded)
	return out, nil
}

// StructuralDiff is the set difference between two manifests.
type StructuralDiff struct {
	// Added holds paths present only in the new manifest.
	Added []string
	// Removed holds paths present only in the old manifest.
	Removed []string
	// DiffCount is len(Added) + len(Removed).
	DiffCount int
}

// Empty reports whether both manifests hold the same paths.
func (d StructuralDiff) Empty() bool {
	return d.DiffCount == 0
}

// Diff compares the new manifest against the old one.
func Diff(newM, oldM Manifest) StructuralDiff {
	var d StructuralDiff
	for _, rel := range newM {
		if !oldM.Contains(rel) {
			d.Added = append(d.Added, rel)
		}
	}
	for _, rel := range oldM {
		if !newM.Contains(rel) {
			d.Removed = append(d.Removed, rel)
		}
	}
	d.DiffCount = len(d.Added) + len(d.Removed)
	return d
}

// PathPair joins one relative path to its location in both extracted trees.
// Either file may be missing on disk when the path exists on one side only.
type PathPair struct {
	Rel string
	New string
	Old string
}

// Pair builds one PathPair per path in the union of both manifests: every
// path of the new manifest in order, then paths found only in the old one.
func Pair(newRoot, oldRoot string, newM, oldM Manifest) []PathPair {
	pairs := make([]PathPair, 0, len(newM))
	for _, rel := range newM {
		pairs = append(pairs, pathPair(newRoot, oldRoot, rel))
	}
	for _, rel := range oldM {
		if !newM.Contains(rel) {
			pairs = append(pairs, pathPair(newRoot, oldRoot, rel))
		}
	}
	return pairs
}

func pathPair(newRoot, oldRoot, rel string) PathPair {
	native := filepath.FromSlash(rel)
	return PathPair{
		Rel: rel,
		New: filepath.Join(newRoot, native),
		Old: filepath.Join(oldRoot, native),
	}
}

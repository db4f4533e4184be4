// Package workspace supplies the per-comparison working directories the diff
// pipeline downloads and extracts into.
//
// A Session is rooted at a directory derived from the two package references
// being compared, so repeated comparisons of the same pair share one session
// root. Each comparison runs in its own Sub session below that root, and every
// call to Dir returns a fresh, collision-free subdirectory.
package workspace

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/zeebo/blake3"
)

// SessionPrefix prefixes every session directory name.
const SessionPrefix = "package-diff-"

// Provider supplies isolated directories scoped to one comparison session.
type Provider interface {
	// Dir creates and returns a fresh subdirectory whose name starts with prefix.
	Dir(prefix string) (string, error)
}

// Session is a Provider backed by a go-billy filesystem.
type Session struct {
	fs   billy.Filesystem
	root string
}

var _ Provider = (*Session)(nil)

// SessionName returns the directory name used for a comparison of refs.
func SessionName(refs ...string) string {
	h := blake3.New()
	for _, ref := range refs {
		_, _ = h.Write([]byte(ref))
		_, _ = h.Write([]byte{0})
	}
	return SessionPrefix + hex.EncodeToString(h.Sum(nil)[:8])
}

// NewSession creates (or reuses) the session directory for refs under base on
// the native filesystem. An empty base selects os.TempDir().
func NewSession(base string, refs ...string) (*Session, error) {
	if base == "" {
		base = os.TempDir()
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve base %q: %w", base, err)
	}
	return NewSessionFS(osfs.New("/"), filepath.Join(abs, SessionName(refs...)))
}

// NewSessionFS creates the session root on fsys.
func NewSessionFS(fsys billy.Filesystem, root string) (*Session, error) {
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: mkdirall %q: %w", root, err)
	}
	return &Session{fs: fsys, root: root}, nil
}

// Root returns the session root directory.
func (s *Session) Root() string {
	return s.root
}

// Dir implements Provider.
func (s *Session) Dir(prefix string) (string, error) {
	name, err := util.TempDir(s.fs, s.root, prefix)
	if err != nil {
		return "", fmt.Errorf("workspace: tempdir dir=%q prefix=%q: %w", s.root, prefix, err)
	}
	return name, nil
}

// Sub creates a fresh child session below the root whose name starts with
// prefix. Removing the child leaves the root and its other children alone.
func (s *Session) Sub(prefix string) (*Session, error) {
	root, err := s.Dir(prefix)
	if err != nil {
		return nil, err
	}
	return &Session{fs: s.fs, root: root}, nil
}

// Remove deletes the session root and everything below it.
func (s *Session) Remove() error {
	if err := util.RemoveAll(s.fs, s.root); err != nil {
		return fmt.Errorf("workspace: removeall %q: %w", s.root, err)
	}
	return nil
}

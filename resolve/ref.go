package resolve

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Kind distinguishes local archives from registry packages.
type Kind int

const (
	// KindRegistry is a package fetched from a registry.
	KindRegistry Kind = iota
	// KindFile is an archive on the local filesystem.
	KindFile
)

// Ref is a parsed package reference.
type Ref struct {
	// Raw is the reference as given.
	Raw string
	// Kind tells whether the reference is a local file.
	Kind Kind
	// Path is the archive location for KindFile.
	Path string
	// Name is the package name for KindRegistry. For a bare reference
	// ("1.2.3", "latest", "lodash") Name holds the whole reference.
	Name string
	// Spec is the version, range or tag after the last "@".
	Spec string
	// HasSpec reports an explicit "@spec" part.
	HasSpec bool
}

var archiveExt = regexp.MustCompile(`(?i)\.(tgz|tar\.gz|tar|tar\.zst|tzst)$`)

// ParseRef classifies raw as a local archive or a registry reference.
//
// Local archives are "file:" prefixed references, paths starting with ".",
// "/" or "~", and names ending in an archive extension. Everything else is
// "name", "name@spec" or "@scope/name@spec".
func ParseRef(raw string) (Ref, error) {
	ref := Ref{Raw: raw}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ref, fmt.Errorf("%w: empty reference", ErrInvalidRef)
	}

	if p, ok := localPath(trimmed); ok {
		ref.Kind = KindFile
		ref.Path = p
		return ref, nil
	}

	ref.Kind = KindRegistry
	name, spec, hasSpec := splitSpec(trimmed)
	if name == "" || name == "@" || (strings.HasPrefix(name, "@") && !strings.Contains(name, "/")) {
		return ref, fmt.Errorf("%w: %q has no package name", ErrInvalidRef, raw)
	}
	if hasSpec && spec == "" {
		return ref, fmt.Errorf("%w: %q has an empty version", ErrInvalidRef, raw)
	}
	ref.Name, ref.Spec, ref.HasSpec = name, spec, hasSpec
	return ref, nil
}

// String returns the reference in name@spec form, or the file path.
func (r Ref) String() string {
	switch {
	case r.Kind == KindFile:
		return r.Path
	case r.HasSpec:
		return r.Name + "@" + r.Spec
	default:
		return r.Name
	}
}

func localPath(s string) (string, bool) {
	if rest, ok := strings.CutPrefix(s, "file:"); ok {
		return expandHome(rest), true
	}
	if strings.HasPrefix(s, ".") || strings.HasPrefix(s, "/") || strings.HasPrefix(s, "~") ||
		filepath.IsAbs(s) {
		return expandHome(s), true
	}
	if archiveExt.MatchString(s) && !strings.HasPrefix(s, "@") {
		return s, true
	}
	return "", false
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := userHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// splitSpec splits at the last "@" that is not the scope marker.
func splitSpec(s string) (name, spec string, hasSpec bool) {
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return s, "", false
	}
	return s[:at], s[at+1:], true
}

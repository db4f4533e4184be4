package manifest

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Matcher decides which manifest paths are excluded.
//
// A pattern is either a glob or a regular expression written between
// slashes ("/\.md$/"). Globs support *, ?, character classes and ** for any
// number of path segments. A pattern ending in "/" excludes everything below
// that directory. A glob without a slash is also tried against the basename,
// the way diff --exclude matches.
type Matcher struct {
	patterns []pattern
}

type pattern struct {
	raw    string
	re     *regexp.Regexp
	glob   string
	dir    bool
	anyDir bool
}

// PatternError represents an invalid exclusion pattern.
type PatternError struct {
	Pattern string
	Index   int
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern at index %d '%s': %v", e.Index, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// NewMatcher compiles patterns. Empty patterns are ignored.
func NewMatcher(patterns ...string) (*Matcher, error) {
	m := &Matcher{}
	for i, raw := range patterns {
		if raw == "" {
			continue
		}
		p, err := compile(raw)
		if err != nil {
			return nil, &PatternError{Pattern: raw, Index: i, Err: err}
		}
		m.patterns = append(m.patterns, p)
	}
	return m, nil
}

func compile(raw string) (pattern, error) {
	if len(raw) > 2 && strings.HasPrefix(raw, "/") && strings.HasSuffix(raw, "/") {
		re, err := regexp.Compile(raw[1 : len(raw)-1])
		if err != nil {
			return pattern{}, err
		}
		return pattern{raw: raw, re: re}, nil
	}

	p := pattern{raw: raw, glob: raw}
	if strings.HasSuffix(p.glob, "/") {
		p.dir = true
		p.glob = strings.TrimSuffix(p.glob, "/")
	}
	p.anyDir = !strings.Contains(p.glob, "/")

	// Validate each segment against a dummy name.
	for _, seg := range strings.Split(p.glob, "/") {
		if seg == "**" {
			continue
		}
		if _, err := path.Match(seg, "dummy"); err != nil {
			return pattern{}, err
		}
	}
	return p, nil
}

// Empty reports whether the matcher excludes nothing.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

// Excluded reports whether rel matches any pattern.
func (m *Matcher) Excluded(rel string) bool {
	if m == nil {
		return false
	}
	for _, p := range m.patterns {
		if p.match(rel) {
			return true
		}
	}
	return false
}

func (p pattern) match(rel string) bool {
	if p.re != nil {
		return p.re.MatchString(rel)
	}

	if p.dir {
		if strings.HasPrefix(rel+"/", p.glob+"/") {
			return true
		}
		if p.anyDir {
			// "node_modules/" excludes that directory at any depth.
			segs := strings.Split(rel, "/")
			for _, seg := range segs[:len(segs)-1] {
				if ok, _ := path.Match(p.glob, seg); ok {
					return true
				}
			}
		}
		return false
	}

	if matchSegments(strings.Split(p.glob, "/"), strings.Split(rel, "/")) {
		return true
	}
	if p.anyDir {
		ok, _ := path.Match(p.glob, path.Base(rel))
		return ok
	}
	return false
}

// matchSegments matches pattern segments against path segments, where a
// "**" segment consumes zero or more path segments.
func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], segs[0]); !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}

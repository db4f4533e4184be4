package registry

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// SelectVersion picks the version spec refers to among published versions.
//
// An empty spec or "latest" selects the highest stable version, falling back
// to the highest prerelease when nothing stable exists. A spec naming a
// published version verbatim selects it. Anything else is parsed as a semver
// constraint ("^1.2.0", "~2", ">=1 <3") and the highest match wins.
// Unparseable published versions are ignored.
func SelectVersion(spec string, published []string) (string, error) {
	versions := make([]*semver.Version, 0, len(published))
	originals := make(map[*semver.Version]string, len(published))
	for _, raw := range published {
		if raw == spec && spec != "" && spec != "latest" {
			return raw, nil
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		versions = append(versions, v)
		originals[v] = raw
	}
	sort.Sort(sort.Reverse(semver.Collection(versions)))

	if spec == "" || spec == "latest" {
		for _, v := range versions {
			if v.Prerelease() == "" {
				return originals[v], nil
			}
		}
		if len(versions) > 0 {
			return originals[versions[0]], nil
		}
		return "", fmt.Errorf("%w: %q (no published versions)", ErrNoMatchingVersion, spec)
	}

	constraint, err := semver.NewConstraint(spec)
	if err != nil {
		return "", fmt.Errorf("%w: %q is neither a version nor a range", ErrNoMatchingVersion, spec)
	}
	for _, v := range versions {
		if constraint.Check(v) {
			return originals[v], nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNoMatchingVersion, spec)
}

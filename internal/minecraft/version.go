// Package minecraft holds game-specific vocabulary: release version strings
// and mod loaders.
package minecraft

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/Masterminds/semver/v3"
)

// ErrUnstableVersion is returned when a version string is not a stable release.
var ErrUnstableVersion = errors.New("not a stable release version")

// stablePattern matches release versions such as 1.20 or 1.20.1.
// Snapshots (23w31a), pre-releases (1.20-pre1) and release candidates are rejected.
// Components are capped at nine digits so every match converts without overflow.
var stablePattern = regexp.MustCompile(`^(\d{1,9})\.(\d{1,9})(?:\.(\d{1,9}))?$`)

// IsStable reports whether version is a stable release version.
func IsStable(version string) bool {
	return stablePattern.MatchString(version)
}

// ToSemantic converts a stable release version into a comparable semantic
// version. A missing patch component defaults to 0.
func ToSemantic(version string) (*semver.Version, error) {
	m := stablePattern.FindStringSubmatch(version)
	if m == nil {
		return nil, fmt.Errorf("%q: %w", version, ErrUnstableVersion)
	}

	parts := [3]uint64{}
	for i, raw := range m[1:] {
		if raw == "" {
			continue
		}
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", version, ErrUnstableVersion)
		}
		parts[i] = n
	}

	return semver.New(parts[0], parts[1], parts[2], "", ""), nil
}

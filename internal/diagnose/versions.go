package diagnose

import "github.com/Masterminds/semver/v3"

// Latest returns the newest published version, which is the head of a
// newest-first list.
func Latest(newestFirst []string) (string, bool) {
	if len(newestFirst) == 0 {
		return "", false
	}
	return newestFirst[0], true
}

// LatestStable returns the newest version without a prerelease tag.
// Versions that do not parse as semver are skipped.
func LatestStable(newestFirst []string) (string, bool) {
	for _, raw := range newestFirst {
		version, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if version.Prerelease() == "" {
			return raw, true
		}
	}
	return "", false
}

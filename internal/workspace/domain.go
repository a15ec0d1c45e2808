package workspace

import (
	"fmt"
	"path"
	"strings"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// ValidatePaths checks a dispatch's modified-path set against a story's
// allow-list/deny-list (spec §3 Workspace invariant, §4.6 domain
// enforcement): the change is rejected as a whole if any path falls outside
// Files.Create/Modify or inside Files.Forbidden. This mirrors the teacher's
// resolver pattern of resolving a path against a fixed set of candidate
// locations, repointed from "find a match" to "every path must match."
func ValidatePaths(story *model.Story, modifiedPaths []string) error {
	allowed := append(append([]string{}, story.Files.Create...), story.Files.Modify...)
	for _, p := range modifiedPaths {
		clean := path.Clean(p)
		if matchesAny(clean, story.Files.Forbidden) {
			return fmt.Errorf("%w: %q matches a forbidden pattern for story %s", ErrBoundaryViolation, p, story.ID)
		}
		if !matchesAny(clean, allowed) {
			return fmt.Errorf("%w: %q is not in the allow-list for story %s", ErrBoundaryViolation, p, story.ID)
		}
	}
	return nil
}

// matchesAny reports whether p matches any glob in patterns, or falls under
// a pattern naming a directory prefix (a pattern with no glob metacharacters
// is treated as a directory prefix as well as a literal file match).
func matchesAny(p string, patterns []string) bool {
	for _, pat := range patterns {
		pat = path.Clean(pat)
		if ok, err := path.Match(pat, p); err == nil && ok {
			return true
		}
		if strings.HasPrefix(p, pat+"/") || p == pat {
			return true
		}
	}
	return false
}

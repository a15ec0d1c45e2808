package safety

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// destructiveOperationRule matches commands that destroy data outside a
// narrow, explicitly scoped set of locations (spec §4.3 category 1;
// grounded on the teacher's T3 destructive-git-operations and T1
// destructive-shell mitigations: force push/reset, recursive delete of
// root/home, filesystem-format commands, fork bombs, world-writable root
// permission changes).
type destructiveOperationRule struct{}

// NewDestructiveOperationRule returns the built-in destructive-operation
// detector.
func NewDestructiveOperationRule() Rule { return destructiveOperationRule{} }

func (destructiveOperationRule) Category() Category { return CategoryDestructiveOperation }

var destructivePatterns = []struct {
	re      *regexp.Regexp
	penalty float64
	desc    string
}{
	{regexp.MustCompile(`\brm\s+-rf\s+(/|~|\$HOME)(\s|$)`), 0.10, "recursive deletion of root or home directory"},
	{regexp.MustCompile(`\b(mkfs|mkfs\.\w+)\b`), 0.05, "filesystem-format command"},
	{regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;`), 0.05, "fork bomb shape"},
	{regexp.MustCompile(`\bchmod\s+-R\s+777\s+/`), 0.10, "world-writable recursive permission change on root"},
	{regexp.MustCompile(`\bgit\s+push\s+(--force|-f)\b`), 0.15, "force push rewrites shared history"},
	{regexp.MustCompile(`\bgit\s+reset\s+--hard\b`), 0.20, "hard reset discards uncommitted work"},
	{regexp.MustCompile(`\bgit\s+clean\s+-f`), 0.20, "force clean discards untracked work"},
}

// benignScopedDeletion allow-lists deletions confined to the current
// directory, temp directories, build outputs, or dependency caches.
var benignScopedDeletion = regexp.MustCompile(`\brm\s+-rf\s+(\./|/tmp/|node_modules|dist|build|\.cache|vendor)\b`)

func (destructiveOperationRule) Evaluate(content, _ string, _ *model.Story) []model.Violation {
	if benignScopedDeletion.MatchString(content) {
		return nil
	}
	for _, p := range destructivePatterns {
		if p.re.MatchString(content) {
			return []model.Violation{{
				Kind:        string(CategoryDestructiveOperation),
				Penalty:     p.penalty,
				Description: p.desc,
			}}
		}
	}
	return nil
}

// isScopedPath reports whether p is confined to a benign scratch location,
// used by tests and by callers that want to check a proposed write target
// rather than a shell command string.
func isScopedPath(p string) bool {
	clean := filepath.ToSlash(filepath.Clean(p))
	for _, prefix := range []string{"tmp/", "/tmp/", "node_modules/", "dist/", "build/", ".cache/", "vendor/"} {
		if strings.HasPrefix(clean, prefix) {
			return true
		}
	}
	return false
}

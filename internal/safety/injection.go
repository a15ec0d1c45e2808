package safety

import (
	"regexp"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// injectionShapeRule flags language-agnostic injection shapes: timing-
// unsafe credential comparison and unquoted shell interpolation of a
// secret-looking variable (spec §4.3 category 3; grounded on the teacher's
// T1 command-injection mitigations — binary allowlists, shell-metacharacter
// blocking, array-based execution — generalized from a hook's shell-command
// allowlist to a content-level shape detector).
type injectionShapeRule struct{}

// NewInjectionShapeRule returns the built-in injection-shape detector.
func NewInjectionShapeRule() Rule { return injectionShapeRule{} }

func (injectionShapeRule) Category() Category { return CategoryInjectionShape }

var injectionPatterns = []struct {
	re      *regexp.Regexp
	penalty float64
	desc    string
}{
	{regexp.MustCompile(`==\s*\w*(token|secret|password|api_?key)\w*\b`), 0.4, "timing-unsafe equality comparison of a credential"},
	{regexp.MustCompile(`\$\{?\w*(TOKEN|SECRET|PASSWORD|API_?KEY)\w*\}?"?\s*$`), 0.5, "unquoted shell interpolation of a credential-shaped variable"},
	{regexp.MustCompile("`[^`]*\\$\\{[A-Z_]*(TOKEN|SECRET|PASSWORD)[A-Z_]*\\}[^`]*`"), 0.6, "credential interpolated into a backtick command substitution"},
	{regexp.MustCompile(`\bsubprocess\.\w+\(.*shell\s*=\s*True`), 0.7, "shell=True subprocess invocation with interpolated input"},
}

func (injectionShapeRule) Evaluate(content, _ string, _ *model.Story) []model.Violation {
	for _, p := range injectionPatterns {
		if p.re.MatchString(content) {
			return []model.Violation{{
				Kind:        string(CategoryInjectionShape),
				Penalty:     p.penalty,
				Description: p.desc,
			}}
		}
	}
	return nil
}

package safety

import (
	"regexp"
	"strings"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// clientSecretExposureRule flags hard-coded credentials and references to
// private (non-public-prefixed) environment variables, scoring client-side
// files harsher than server-side ones (spec §4.3 category 2; grounded on
// the teacher's T2 path/secret-exposure mitigation and T4 worker-identity
// boundary reasoning, generalized from "never commit" to "never expose").
type clientSecretExposureRule struct {
	clientPathPatterns []string
}

// NewClientSecretExposureRule returns the built-in detector. clientPathGlobs
// are additional project-defined path patterns (beyond the "use client"
// directive) that mark a file as client-side.
func NewClientSecretExposureRule(clientPathGlobs ...string) Rule {
	return clientSecretExposureRule{clientPathPatterns: clientPathGlobs}
}

func (clientSecretExposureRule) Category() Category { return CategoryClientSecretExposure }

var (
	useClientDirective  = regexp.MustCompile(`(?m)^\s*["']use client["']\s*;?\s*$`)
	privateEnvReference = regexp.MustCompile(`process\.env\.(?!NEXT_PUBLIC_|PUBLIC_|VITE_PUBLIC_)[A-Z_][A-Z0-9_]*`)
	hardCodedSecret     = regexp.MustCompile(`(?i)(bearer\s+[a-z0-9._-]{20,}|sk[-_][a-z0-9_]{20,}|pk[-_](live|test)_[a-z0-9_]{16,}|AKIA[0-9A-Z]{16}|xox[baprs]-[a-z0-9-]{10,})`)
)

func (r clientSecretExposureRule) isClientFile(content, path string) bool {
	if useClientDirective.MatchString(content) {
		return true
	}
	for _, pat := range r.clientPathPatterns {
		if ok, err := matchGlob(pat, path); err == nil && ok {
			return true
		}
	}
	return strings.Contains(path, "/client/") || strings.HasSuffix(path, ".client.tsx") || strings.HasSuffix(path, ".client.ts")
}

func (r clientSecretExposureRule) Evaluate(content, path string, _ *model.Story) []model.Violation {
	clientSide := r.isClientFile(content, path)

	if privateEnvReference.MatchString(content) && clientSide {
		return []model.Violation{{
			Kind:        string(CategoryClientSecretExposure),
			Penalty:     0.4,
			Description: "client-side file references a private (non-public-prefixed) environment variable",
		}}
	}
	if hardCodedSecret.MatchString(content) {
		if clientSide {
			return []model.Violation{{
				Kind:        string(CategoryClientSecretExposure),
				Penalty:     0.3,
				Description: "hard-coded credential in a client-side file",
			}}
		}
		return []model.Violation{{
			Kind:        string(CategoryClientSecretExposure),
			Penalty:     0.7,
			Description: "hard-coded credential in a server-side file",
		}}
	}
	return nil
}

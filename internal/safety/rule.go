// Package safety implements the Safety Evaluator (C3, spec §4.3): a pure,
// stateless pipeline of rule detectors that scores worker-proposed content
// and derives an allow/warn/block recommendation. Grounded structurally on
// the teacher's internal/vibecheck pluggable-detector architecture (each
// detector inspects content and returns findings a caller aggregates) and
// on the threat-model taxonomy documented in the teacher's
// internal/safety/doc.go: T1 command injection, T2 path traversal/secret
// exposure, T3 destructive git operations, T6 runaway-loop stop
// conditions. spec.md's five fixed categories map onto that taxonomy
// one-for-one; this package keeps the teacher's category vocabulary as
// identifiers instead of a prose threat model.
package safety

import "github.com/Boomerang-Apps/wave-sub010/internal/model"

// Category is one of the five fixed rule categories evaluated in order
// (spec §4.3).
type Category string

const (
	CategoryDestructiveOperation Category = "destructive-operation"
	CategoryClientSecretExposure Category = "client-secret-exposure"
	CategoryInjectionShape       Category = "injection-shape"
	CategoryBoundaryViolation    Category = "boundary-violation"
	CategoryStopConditionHit     Category = "stop-condition-hit"
)

// Order is the fixed evaluation order of spec §4.3. The first matching
// violation within a category is kept; later rules in the same category
// are not consulted once one has matched.
var Order = []Category{
	CategoryDestructiveOperation,
	CategoryClientSecretExposure,
	CategoryInjectionShape,
	CategoryBoundaryViolation,
	CategoryStopConditionHit,
}

// Rule is a single detector within a category. Evaluate is a pure function
// of its inputs — no I/O — per spec §4.3's evaluate(content, path)
// contract.
type Rule interface {
	Category() Category
	Evaluate(content, path string, story *model.Story) []model.Violation
}

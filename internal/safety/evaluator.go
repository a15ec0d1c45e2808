package safety

import (
	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// Evaluator runs the fixed-order rule pipeline and derives a SafetyVerdict
// (spec §4.3). It holds no mutable state between calls — Evaluate is a
// pure function of its arguments.
type Evaluator struct {
	rules map[Category][]Rule
}

// NewEvaluator returns an Evaluator over the given rules, grouped by
// Category() regardless of input order. DefaultRules() supplies spec.md's
// five built-in categories.
func NewEvaluator(rules ...Rule) *Evaluator {
	e := &Evaluator{rules: make(map[Category][]Rule)}
	for _, r := range rules {
		e.rules[r.Category()] = append(e.rules[r.Category()], r)
	}
	return e
}

// Evaluate scores content (and, if this is a file write, its target path)
// against every category in Order, multiplying the running score by each
// category's first matching rule's penalty (spec §4.3: "starts at 1.0; for
// each matching rule, multiplies the running score ... first matching
// rule per category applies").
func (e *Evaluator) Evaluate(content, path string, story *model.Story) model.SafetyVerdict {
	score := 1.0
	var violations []model.Violation
	var risks []string

	for _, cat := range Order {
		for _, rule := range e.rules[cat] {
			found := rule.Evaluate(content, path, story)
			if len(found) == 0 {
				continue
			}
			v := found[0]
			score *= v.Penalty
			violations = append(violations, v)
			if cat == CategoryStopConditionHit {
				risks = append(risks, v.Description)
			}
			break // first matching rule per category applies
		}
	}

	return model.SafetyVerdict{
		Score:          score,
		Violations:     violations,
		Risks:          risks,
		Recommendation: model.RecommendationForScore(score),
	}
}

package safety

import (
	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// boundaryViolationRule hard-blocks a write whose target path falls inside
// the active story's deny-list (spec §4.3 category 4; grounded on the
// teacher's T4 worker-privilege-escalation identity gating, generalized
// from "is this identity allowed to commit" to "is this path allowed for
// this story").
type boundaryViolationRule struct{}

// NewBoundaryViolationRule returns the built-in boundary-violation
// detector.
func NewBoundaryViolationRule() Rule { return boundaryViolationRule{} }

func (boundaryViolationRule) Category() Category { return CategoryBoundaryViolation }

func (boundaryViolationRule) Evaluate(_, path string, story *model.Story) []model.Violation {
	if story == nil || path == "" {
		return nil
	}
	for _, pat := range story.Files.Forbidden {
		if ok, err := matchGlob(pat, path); err == nil && ok {
			return []model.Violation{{
				Kind:        string(CategoryBoundaryViolation),
				Penalty:     0.1,
				Description: "write target " + path + " matches story deny-list pattern " + pat,
			}}
		}
	}
	return nil
}

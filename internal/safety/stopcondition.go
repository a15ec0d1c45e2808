package safety

import (
	"strings"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// stopConditionRule is an immediate, zero-score block: any story-declared
// predicate that must remain false (spec §4.3 category 5; grounded on the
// teacher's T6 runaway-autonomous-loop kill switches — file-based and
// environment-variable kill switches checked at cycle boundaries —
// generalized from "stop the loop" to "stop the dispatch and escalate").
type stopConditionRule struct{}

// NewStopConditionRule returns the built-in stop-condition detector.
func NewStopConditionRule() Rule { return stopConditionRule{} }

func (stopConditionRule) Category() Category { return CategoryStopConditionHit }

func (stopConditionRule) Evaluate(content, _ string, story *model.Story) []model.Violation {
	if story == nil {
		return nil
	}
	for _, predicate := range story.StopConditions {
		if predicate == "" {
			continue
		}
		if strings.Contains(content, predicate) {
			return []model.Violation{{
				Kind:        string(CategoryStopConditionHit),
				Penalty:     0.0,
				Description: "stop condition hit: " + predicate,
			}}
		}
	}
	return nil
}

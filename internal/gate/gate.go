// Package gate implements the twelve-gate lifecycle state machine (spec §3
// / §4.7). Unlike the teacher's Brownian-ratchet workflow (an alias-
// tolerant, seven-step sequence checked against filesystem artifacts), a
// WAVE gate transition is a pure function over an ordered, fixed list of
// canonical identifiers: a session may advance only to the very next
// index in that list. There are no aliases and no arithmetic shortcuts —
// inserting TESTS_WRITTEN and REFACTOR_COMPLETE into a prior, integer-
// keyed design is exactly the bug class this package exists to prevent.
package gate

import (
	"fmt"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// Sequence is the canonical, ordered list of gates every story traverses.
var Sequence = []model.Gate{
	model.GateDesignValidated,
	model.GateStoryAssigned,
	model.GatePlanApproved,
	model.GateTestsWritten,
	model.GateDevStarted,
	model.GateDevComplete,
	model.GateRefactorComplete,
	model.GateQAPassed,
	model.GateSafetyCleared,
	model.GateReviewApproved,
	model.GateMerged,
	model.GateDeployed,
}

// index returns the position of g in Sequence, or -1 if g is not a
// canonical gate.
func index(g model.Gate) int {
	for i, s := range Sequence {
		if s == g {
			return i
		}
	}
	return -1
}

// IsValid reports whether g is one of the twelve canonical gates.
func IsValid(g model.Gate) bool {
	return index(g) >= 0
}

// First returns the first gate in the canonical sequence.
func First() model.Gate {
	return Sequence[0]
}

// Last returns the final gate in the canonical sequence.
func Last() model.Gate {
	return Sequence[len(Sequence)-1]
}

// IsTerminal reports whether g is the last gate in the sequence.
func IsTerminal(g model.Gate) bool {
	return g == Last()
}

// Next computes the canonical successor of g. It returns an error if g is
// not a recognized gate or is already the terminal gate.
func Next(g model.Gate) (model.Gate, error) {
	i := index(g)
	if i < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownGate, g)
	}
	if i == len(Sequence)-1 {
		return "", fmt.Errorf("%w: %q has no successor", ErrTerminalGate, g)
	}
	return Sequence[i+1], nil
}

// Check validates a requested transition from current to next. It returns
// nil if the transition is the canonical successor, or a *Violation error
// describing why it is not.
func Check(current, requested model.Gate) error {
	if !IsValid(current) {
		return fmt.Errorf("%w: current gate %q", ErrUnknownGate, current)
	}
	if !IsValid(requested) {
		return fmt.Errorf("%w: requested gate %q", ErrUnknownGate, requested)
	}
	want, err := Next(current)
	if err != nil {
		return fmt.Errorf("%w: session already at terminal gate %q", ErrViolation, current)
	}
	if requested != want {
		return fmt.Errorf("%w: from %q requested %q, canonical successor is %q", ErrViolation, current, requested, want)
	}
	return nil
}

// TestsBeforeCode reports whether a story's story-gate map already
// recorded TESTS_WRITTEN before it may be admitted to DEV_STARTED. This is
// always true once Check has been used for every intervening transition —
// it exists as a standalone, explicit invariant check for callers (and
// tests) that want to assert test-before-code ordering directly rather
// than by induction over Check.
func TestsBeforeCode(reached map[model.Gate]bool) bool {
	return reached[model.GateTestsWritten]
}

// RefactorBeforeQA is the analogous explicit invariant check for
// REFACTOR_COMPLETE preceding QA_PASSED.
func RefactorBeforeQA(reached map[model.Gate]bool) bool {
	return reached[model.GateRefactorComplete]
}

package budget

import (
	"errors"
	"testing"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

func testRates() RateTable {
	return RateTable{
		"gpt-5": {InputPerToken: 1, OutputPerToken: 2},
	}
}

func TestRecordAccumulatesBothScopes(t *testing.T) {
	a := NewAccountant(testRates())
	a.Init("sess-1", "story-1", model.DefaultBudgetCaps(1000, 100000), model.DefaultBudgetCaps(1000, 100000))

	if _, err := a.Record("sess-1", "story-1", "gpt-5", 100, 50); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if got := a.RemainingSession("sess-1"); got != 850 {
		t.Fatalf("RemainingSession = %d, want 850", got)
	}
	if got := a.RemainingStory("sess-1", "story-1"); got != 850 {
		t.Fatalf("RemainingStory = %d, want 850", got)
	}
}

func TestRecordUnknownModel(t *testing.T) {
	a := NewAccountant(testRates())
	a.Init("sess-1", "story-1", model.DefaultBudgetCaps(1000, 100000), model.DefaultBudgetCaps(1000, 100000))

	_, err := a.Record("sess-1", "story-1", "unknown-model", 10, 10)
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("Record unknown model error = %v, want ErrUnknownModel", err)
	}
}

func TestThresholdCrossedExactlyOnce(t *testing.T) {
	a := NewAccountant(testRates())
	a.Init("sess-1", "story-1", model.DefaultBudgetCaps(1000, 100000), model.DefaultBudgetCaps(1000, 100000))

	crossings, err := a.Record("sess-1", "story-1", "gpt-5", 250, 250) // 500/1000 = 50%
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !hasCrossing(crossings, "session", model.SignalBudgetWarning) {
		t.Fatalf("expected a session budget-warning crossing at 50%%, got %+v", crossings)
	}

	// Recording again within the same bucket must not refire the 50% signal.
	crossings, err = a.Record("sess-1", "story-1", "gpt-5", 10, 10)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(crossings) != 0 {
		t.Fatalf("expected no re-fired crossings at stable usage, got %+v", crossings)
	}
}

func TestExceededThresholdFiresBudgetExceeded(t *testing.T) {
	a := NewAccountant(testRates())
	a.Init("sess-1", "story-1", model.DefaultBudgetCaps(100, 100000), model.DefaultBudgetCaps(100, 100000))

	crossings, err := a.Record("sess-1", "story-1", "gpt-5", 60, 60) // 120/100 = 120%
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !hasCrossing(crossings, "session", model.SignalBudgetExceeded) {
		t.Fatalf("expected budget-exceeded crossing, got %+v", crossings)
	}
}

func hasCrossing(crossings []Crossing, scope string, kind model.SignalKind) bool {
	for _, c := range crossings {
		if c.Scope == scope && c.Kind == kind {
			return true
		}
	}
	return false
}

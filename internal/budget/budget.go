// Package budget implements the Budget Accountant (C5, spec §4.5): a
// record/remaining ledger over tokens and estimated cost, keyed per
// session and per story, with deterministic once-only threshold-crossing
// detection. Grounded on the teacher's internal/context budget.go
// (BudgetTracker, the 4-chars-per-token estimator, percentage thresholds)
// generalized from a single in-process tracker to a per-model rate table
// plus two ledger scopes, and on internal/types/memrl_policy.go's
// attempt-bucket pattern — generalized here from attempt-buckets to
// percentage-buckets so "crossed exactly once" is computed from
// (previous total, new total, caps) rather than a mutable flag that can
// drift out of sync with the ledger.
package budget

import (
	"fmt"
	"sync"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// ModelRate is the per-token cost, in hundredths of a cent, for a model.
type ModelRate struct {
	InputPerToken  float64
	OutputPerToken float64
}

// RateTable maps model name to its rate. Loaded from config the way the
// teacher's internal/config loads typed structures from YAML.
type RateTable map[string]ModelRate

// Accountant tracks token/cost usage for every session and story it has
// seen, and emits the threshold-crossing signals spec §4.5 requires.
type Accountant struct {
	mu      sync.Mutex
	rates   RateTable
	session map[string]*model.BudgetLedger
	story   map[string]*model.BudgetLedger // key: sessionID + "/" + storyID
}

// NewAccountant returns an Accountant using the given per-model rate table.
func NewAccountant(rates RateTable) *Accountant {
	return &Accountant{
		rates:   rates,
		session: make(map[string]*model.BudgetLedger),
		story:   make(map[string]*model.BudgetLedger),
	}
}

// Rates returns the accountant's configured per-model rate table, for the
// operator-facing `wave budget rates` inspection command.
func (a *Accountant) Rates() RateTable {
	return a.rates
}

func storyKey(sessionID, storyID string) string { return sessionID + "/" + storyID }

// Init registers the budget caps for a session and a story within it. Must
// be called once before the first Record for that (session, story) pair.
func (a *Accountant) Init(sessionID, storyID string, sessionCaps, storyCaps model.BudgetCaps) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.session[sessionID]; !ok {
		a.session[sessionID] = &model.BudgetLedger{Caps: sessionCaps, CrossedThresholds: map[string]bool{}}
	}
	key := storyKey(sessionID, storyID)
	if _, ok := a.story[key]; !ok {
		a.story[key] = &model.BudgetLedger{Caps: storyCaps, CrossedThresholds: map[string]bool{}}
	}
}

// Crossing describes a newly-crossed threshold on one ledger scope.
type Crossing struct {
	Scope string // "session" or "story"
	Kind  model.SignalKind
}

// Record accounts a worker turn's token usage against both the session and
// story ledgers, returning every threshold newly crossed by either ledger
// (spec §4.5: "crossing a threshold emits exactly one signal each").
func (a *Accountant) Record(sessionID, storyID, modelName string, tokensIn, tokensOut int) ([]Crossing, error) {
	rate, ok := a.rates[modelName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, modelName)
	}
	costCents := int(float64(tokensIn)*rate.InputPerToken + float64(tokensOut)*rate.OutputPerToken)

	a.mu.Lock()
	defer a.mu.Unlock()

	var crossings []Crossing
	if sessionLedger, ok := a.session[sessionID]; ok {
		crossings = append(crossings, recordLedger("session", sessionLedger, tokensIn, tokensOut, costCents)...)
	}
	key := storyKey(sessionID, storyID)
	if storyLedger, ok := a.story[key]; ok {
		storyCrossings := recordLedger("story", storyLedger, tokensIn, tokensOut, costCents)
		crossings = append(crossings, storyCrossings...)
	}
	return crossings, nil
}

// recordLedger applies usage to ledger and returns newly crossed
// thresholds, each fired exactly once via the ledger's CrossedThresholds
// set.
func recordLedger(scope string, ledger *model.BudgetLedger, tokensIn, tokensOut, costCents int) []Crossing {
	before := ledger.UsageFraction()
	ledger.Add(tokensIn, tokensOut, costCents)
	after := ledger.UsageFraction()

	var crossings []Crossing
	for _, t := range []struct {
		name  string
		level float64
		kind  model.SignalKind
	}{
		{"info", ledger.Caps.Info, model.SignalBudgetWarning},
		{"warn", ledger.Caps.Warn, model.SignalBudgetWarning},
		{"critical", ledger.Caps.Critical, model.SignalBudgetWarning},
		{"exceeded", ledger.Caps.Exceeded, model.SignalBudgetExceeded},
	} {
		if before < t.level && after >= t.level && !ledger.CrossedThresholds[t.name] {
			ledger.CrossedThresholds[t.name] = true
			crossings = append(crossings, Crossing{Scope: scope, Kind: t.kind})
		}
	}
	return crossings
}

// RemainingSession returns the token headroom left in a session's cap, or a
// negative number if the cap has been exceeded.
func (a *Accountant) RemainingSession(sessionID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	ledger, ok := a.session[sessionID]
	if !ok {
		return 0
	}
	return remaining(ledger)
}

// RemainingStory returns the token headroom left in a story's cap.
func (a *Accountant) RemainingStory(sessionID, storyID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	ledger, ok := a.story[storyKey(sessionID, storyID)]
	if !ok {
		return 0
	}
	return remaining(ledger)
}

func remaining(ledger *model.BudgetLedger) int {
	if ledger.Caps.TokenCap <= 0 {
		return 0
	}
	return ledger.Caps.TokenCap - (ledger.TokensIn + ledger.TokensOut)
}

// SessionLedger returns a copy of a session's current ledger, for
// embedding in a Checkpoint.
func (a *Accountant) SessionLedger(sessionID string) model.BudgetLedger {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ledger, ok := a.session[sessionID]; ok {
		return *ledger
	}
	return model.BudgetLedger{}
}

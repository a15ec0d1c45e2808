// Package model defines WAVE's core data model: the session, story, gate,
// signal, checkpoint, safety-verdict, budget-ledger, and workspace
// structures every component operates over. It holds no behavior beyond
// small invariant helpers — the state machines and stores that mutate
// these values live in their own packages (internal/gate, internal/bus,
// internal/checkpoint, and so on).
package model

import "time"

// SessionStatus is the lifecycle status of a Session.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionAborted   SessionStatus = "aborted"
)

// Session is the top-level unit of work: a submitted project plus the
// stories driven through it, owned exclusively by the Session Orchestrator
// under a per-session lock.
type Session struct {
	// ID uniquely identifies the session.
	ID string `json:"id"`

	// ProjectPath is the filesystem path (or VCS reference) to the project
	// being worked on.
	ProjectPath string `json:"project_path"`

	// CreatedAt is when the session was submitted.
	CreatedAt time.Time `json:"created_at"`

	// Status is the current lifecycle status.
	Status SessionStatus `json:"status"`

	// Stories are the units of work inside this session, keyed by Story.ID
	// order of submission.
	Stories []*Story `json:"stories"`

	// Budget is the cumulative session-level budget ledger.
	Budget BudgetLedger `json:"budget"`

	// HeadSequence is the sequence number of the latest checkpoint.
	HeadSequence uint64 `json:"head_sequence"`
}

// Gate is one of the twelve canonical lifecycle checkpoints a story must
// traverse in order (spec §3). The canonical ordering and transition
// rules live in internal/gate; this type is the plain value.
type Gate string

const (
	GateDesignValidated Gate = "DESIGN_VALIDATED"
	GateStoryAssigned   Gate = "STORY_ASSIGNED"
	GatePlanApproved    Gate = "PLAN_APPROVED"
	GateTestsWritten    Gate = "TESTS_WRITTEN"
	GateDevStarted      Gate = "DEV_STARTED"
	GateDevComplete     Gate = "DEV_COMPLETE"
	GateRefactorComplete Gate = "REFACTOR_COMPLETE"
	GateQAPassed        Gate = "QA_PASSED"
	GateSafetyCleared   Gate = "SAFETY_CLEARED"
	GateReviewApproved  Gate = "REVIEW_APPROVED"
	GateMerged          Gate = "MERGED"
	GateDeployed        Gate = "DEPLOYED"
)

// Objective captures the as-a/i-want/so-that framing required by the
// story format (spec §6).
type Objective struct {
	AsA    string `json:"as_a"`
	IWant  string `json:"i_want"`
	SoThat string `json:"so_that"`
}

// FileRules is a story's declared file-system contract.
type FileRules struct {
	Create    []string `json:"create"`
	Modify    []string `json:"modify"`
	Forbidden []string `json:"forbidden"`
}

// Thresholds bounds a story's resource consumption and wall-clock budget.
type Thresholds struct {
	MaxTokens          int `json:"max_tokens"`
	MaxCostCents       int `json:"max_cost_cents"`
	MaxDurationMinutes int `json:"max_duration_minutes"`
	// MaxRetries bounds C9's fix-dispatch attempts before escalation. Zero
	// means "use the system-wide default" (see internal/retry).
	MaxRetries int `json:"max_retries,omitempty"`
}

// Story is a unit of work inside a session (spec §3). Role assignment and
// domain tag become immutable once the story enters dispatch; enforcing
// that immutability is the Session Orchestrator's responsibility, not this
// type's.
type Story struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Domain             string     `json:"domain"`
	Role               string     `json:"role"`
	Wave               int        `json:"wave"`
	Objective          Objective  `json:"objective"`
	AcceptanceCriteria []string   `json:"acceptance_criteria"`
	Files              FileRules  `json:"files"`
	StopConditions     []string   `json:"stop_conditions"`
	Thresholds         Thresholds `json:"thresholds"`

	// CurrentGate is the last gate this story reached.
	CurrentGate Gate `json:"current_gate"`

	// RetryCount is the number of fix-dispatches attempted for this story.
	RetryCount int `json:"retry_count"`

	// Escalated is set once the retry controller gives up on this story.
	Escalated bool `json:"escalated"`
}

// SignalKind enumerates the durable event kinds on the bus (spec §3).
type SignalKind string

const (
	SignalGateStarted     SignalKind = "gate-started"
	SignalGateCompleted   SignalKind = "gate-completed"
	SignalGateFailed      SignalKind = "gate-failed"
	SignalQAApproved      SignalKind = "qa-approved"
	SignalQARejected      SignalKind = "qa-rejected"
	SignalRetryRequested  SignalKind = "retry-requested"
	SignalFixCompleted    SignalKind = "fix-completed"
	SignalEscalation      SignalKind = "escalation"
	SignalAbort           SignalKind = "abort"
	SignalEmergencyStop   SignalKind = "emergency-stop"
	SignalHeartbeat       SignalKind = "heartbeat"
	SignalBudgetWarning   SignalKind = "budget-warning"
	SignalBudgetExceeded  SignalKind = "budget-exceeded"
	SignalTimeout         SignalKind = "timeout"
)

// Signal is a durable, ordered event on the per-session bus (spec §3 / §4.1).
// Signals are never deleted; they form the session's audit log.
type Signal struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	StoryID   string         `json:"story_id,omitempty"`
	Kind      SignalKind     `json:"kind"`
	Producer  string         `json:"producer"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
	// Sequence is monotonically increasing within the session.
	Sequence uint64 `json:"sequence"`
}

// Checkpoint is an immutable, transactionally-written snapshot of session
// state sufficient to resume after a crash (spec §3 / §4.2).
type Checkpoint struct {
	SessionID             string            `json:"session_id"`
	Sequence              uint64            `json:"sequence"`
	Gate                   Gate              `json:"gate"`
	StoryGateMap           map[string]Gate   `json:"story_gate_map"`
	Budget                 BudgetLedger      `json:"budget_ledger"`
	OutstandingDispatches  []string          `json:"outstanding_dispatches"`
	ContextSummary         map[string]any    `json:"context_summary"`
	CreatedAt              time.Time         `json:"created_at"`
}

// Recommendation is the safety evaluator's headline verdict.
type Recommendation string

const (
	RecommendAllow Recommendation = "allow"
	RecommendWarn  Recommendation = "warn"
	RecommendBlock Recommendation = "block"
)

// Violation is a single rule match recorded by the safety evaluator.
type Violation struct {
	Kind        string  `json:"kind"`
	Penalty     float64 `json:"penalty"`
	Description string  `json:"description"`
}

// SafetyVerdict is the safety evaluator's scored, reproducible output
// (spec §3 / §4.3). Recommendation derives purely from Score via fixed
// thresholds; it carries no hidden state.
type SafetyVerdict struct {
	Score          float64         `json:"score"`
	Violations     []Violation     `json:"violations"`
	Risks          []string        `json:"risks,omitempty"`
	Recommendation Recommendation  `json:"recommendation"`
}

// RecommendationForScore derives the recommendation for a score per the
// fixed thresholds in spec §4.3: block below 0.5, warn in [0.5, 0.85),
// allow otherwise.
func RecommendationForScore(score float64) Recommendation {
	switch {
	case score < 0.5:
		return RecommendBlock
	case score < 0.85:
		return RecommendWarn
	default:
		return RecommendAllow
	}
}

// BudgetCaps are the percentage thresholds that emit exactly one signal
// each as a ledger's usage crosses them (spec §3).
type BudgetCaps struct {
	TokenCap  int     `json:"token_cap"`
	CostCents int     `json:"cost_cap_cents"`
	Info      float64 `json:"info_threshold"`
	Warn      float64 `json:"warn_threshold"`
	Critical  float64 `json:"critical_threshold"`
	Exceeded  float64 `json:"exceeded_threshold"`
}

// DefaultBudgetCaps returns the spec-mandated default thresholds
// (50/75/90/100%).
func DefaultBudgetCaps(tokenCap, costCapCents int) BudgetCaps {
	return BudgetCaps{
		TokenCap:  tokenCap,
		CostCents: costCapCents,
		Info:      0.50,
		Warn:      0.75,
		Critical:  0.90,
		Exceeded:  1.00,
	}
}

// BudgetLedger tracks token/cost consumption for a session, story, or
// agent (spec §3 / §4.5). Its fields are monotonically non-decreasing.
type BudgetLedger struct {
	TokensIn      int        `json:"tokens_in"`
	TokensOut     int        `json:"tokens_out"`
	EstimatedCost int        `json:"estimated_cost_cents"`
	Caps          BudgetCaps `json:"caps"`
	// CrossedThresholds records which threshold names have already fired,
	// so the "crossing a threshold emits exactly one signal" invariant
	// holds across process restarts once reloaded from a checkpoint.
	CrossedThresholds map[string]bool `json:"crossed_thresholds,omitempty"`
}

// Add accumulates usage into the ledger in place. It never subtracts.
func (b *BudgetLedger) Add(tokensIn, tokensOut, costCents int) {
	b.TokensIn += tokensIn
	b.TokensOut += tokensOut
	b.EstimatedCost += costCents
}

// UsageFraction returns the ledger's usage as a fraction of its token cap,
// or 0 if no cap is configured.
func (b *BudgetLedger) UsageFraction() float64 {
	if b.Caps.TokenCap <= 0 {
		return 0
	}
	return float64(b.TokensIn+b.TokensOut) / float64(b.Caps.TokenCap)
}

// Workspace is an isolated per-agent working copy allocated by the
// Workspace Provider (spec §3 / §4.6).
type Workspace struct {
	AgentRole      string    `json:"agent_role"`
	StoryID        string    `json:"story_id"`
	BaseRevision   string    `json:"base_revision"`
	Branch         string    `json:"branch"`
	ScratchDir     string    `json:"scratch_dir"`
	AllocatedAt    time.Time `json:"allocated_at"`
}

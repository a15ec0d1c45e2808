package retry

import (
	"fmt"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// Controller applies a Policy to a story's dispatch failures, advancing its
// retry counter and escalation flag in place. It holds no per-session
// state of its own — the story itself, persisted via a checkpoint, is the
// controller's only memory (spec §4.9: "the retry counter is part of the
// session checkpoint").
type Controller struct {
	policy Policy
}

// Option configures a Controller.
type Option func(*Controller)

// WithPolicy overrides the default policy, for tests or a site that tunes
// escalation behavior without touching story thresholds.
func WithPolicy(p Policy) Option {
	return func(c *Controller) { c.policy = p }
}

// NewController builds a Controller with DefaultPolicy unless overridden.
func NewController(opts ...Option) *Controller {
	c := &Controller{policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Evaluate decides the next action for story given a dispatch failure of
// class fc, mutating story.RetryCount and story.Escalated to record the
// attempt. It returns ErrAlreadyEscalated without dispatching again if the
// story's escalation is already closed (spec §8: "a retry whose counter is
// already at the maximum immediately escalates without dispatching").
func (c *Controller) Evaluate(story *model.Story, fc FailureClass) (Decision, error) {
	if story == nil {
		return Decision{}, fmt.Errorf("retry: nil story")
	}
	if story.Escalated {
		return Decision{}, ErrAlreadyEscalated
	}

	maxAttempts := MaxAttemptsFor(story)
	attempt := story.RetryCount + 1

	decision := Evaluate(c.policy, Input{
		FailureClass: fc,
		Attempt:      attempt,
		MaxAttempts:  maxAttempts,
	})

	story.RetryCount = attempt
	if decision.Action == ActionEscalate {
		story.Escalated = true
	}
	return decision, nil
}

// SignalKind maps a decision's action to the bus signal kind it produces
// (spec §3's enumerated signal kinds).
func (d Decision) SignalKind() model.SignalKind {
	if d.Action == ActionEscalate {
		return model.SignalEscalation
	}
	return model.SignalRetryRequested
}

// Package retry implements the Retry Controller (C9): the validate/fix
// loop that re-dispatches a fix role after a QA rejection or worker
// failure, bounded by a per-story attempt cap, escalating deterministically
// once that cap is exhausted (spec §4.9).
//
// Directly grounded on the teacher's internal/types/memrl_policy.go: the
// retry/escalate decision is exactly a MemRLPolicyContract evaluation —
// (failure_class, attempt_bucket) -> action, resolved by rule specificity
// then priority then rule-id, closed under unknown input by a wildcard
// fallback rule. The teacher's Mode dimension (off/observe/enforce) has no
// analog here — WAVE's retry controller is always enforcing — so it is
// dropped; failure_class is generalized from the teacher's RPI-phase
// vocabulary (pre_mortem_fail, crank_blocked, ...) to spec.md's two
// dispatch-failure cases, and attempt_bucket is derived from
// story.thresholds.max_retries instead of a package constant.
package retry

import (
	"fmt"
	"sort"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// DefaultMaxAttempts is the system-wide fallback used when a story does not
// declare thresholds.max_retries (spec §4.9: "default 3").
const DefaultMaxAttempts = 3

// Action is a policy outcome.
type Action string

const (
	ActionRetry    Action = "retry"
	ActionEscalate Action = "escalate"
)

// FailureClass categorizes the dispatch failure that triggered evaluation.
type FailureClass string

const (
	// FailureClassAny is the wildcard used for fallback rules.
	FailureClassAny FailureClass = "*"

	// FailureClassQARejected maps to a QA_PASSED dispatch returning rejected.
	FailureClassQARejected FailureClass = "qa_rejected"

	// FailureClassWorkerCrashed maps to a worker process crash.
	FailureClassWorkerCrashed FailureClass = "worker_crashed"

	// FailureClassWorkerTimeout maps to a worker exceeding its deadline.
	FailureClassWorkerTimeout FailureClass = "worker_timeout"

	// FailureClassWorkerNonZeroExit maps to a worker exiting with a
	// non-zero status without crashing.
	FailureClassWorkerNonZeroExit FailureClass = "worker_non_zero_exit"
)

var knownFailureClasses = []FailureClass{
	FailureClassQARejected,
	FailureClassWorkerCrashed,
	FailureClassWorkerTimeout,
	FailureClassWorkerNonZeroExit,
}

// IsKnownFailureClass reports whether fc is one of the canonical classes.
func IsKnownFailureClass(fc FailureClass) bool {
	for _, known := range knownFailureClasses {
		if fc == known {
			return true
		}
	}
	return false
}

// AttemptBucket groups a story's retry counter into deterministic bands.
type AttemptBucket string

const (
	// AttemptBucketAny is the wildcard used for fallback rules.
	AttemptBucketAny AttemptBucket = "*"

	// AttemptBucketInitial is the first fix-dispatch for a story.
	AttemptBucketInitial AttemptBucket = "initial"

	// AttemptBucketMiddle is a non-terminal retry.
	AttemptBucketMiddle AttemptBucket = "middle"

	// AttemptBucketFinal is the last retry the story's cap allows.
	AttemptBucketFinal AttemptBucket = "final"

	// AttemptBucketOverflow is any attempt past the story's cap; it should
	// not be reachable in practice since Evaluate escalates on
	// AttemptBucketFinal, but the bucket function must stay closed.
	AttemptBucketOverflow AttemptBucket = "overflow"
)

// BucketAttempt deterministically maps an attempt counter into a bucket.
// attempt is 1-indexed (the first fix-dispatch is attempt 1).
func BucketAttempt(attempt, maxAttempts int) AttemptBucket {
	if maxAttempts <= 0 {
		return AttemptBucketOverflow
	}
	switch {
	case attempt <= 1:
		return AttemptBucketInitial
	case attempt < maxAttempts:
		return AttemptBucketMiddle
	case attempt == maxAttempts:
		return AttemptBucketFinal
	default:
		return AttemptBucketOverflow
	}
}

// Rule maps a failure class and attempt bucket to an action.
type Rule struct {
	RuleID        string
	FailureClass  FailureClass
	AttemptBucket AttemptBucket
	Action        Action
	Priority      int
}

// Policy is the closed rule set the controller evaluates against.
type Policy struct {
	UnknownFailureClassAction Action
	Rules                     []Rule
}

// DefaultPolicy returns the canonical deterministic policy: every known
// failure class retries until its story's final attempt bucket, at which
// point it escalates; any attempt bucket past that escalates too; and a
// wildcard fallback rule escalates anything the explicit rules don't cover,
// so no (failure_class, attempt_bucket) pair escapes evaluation.
func DefaultPolicy() Policy {
	buckets := []AttemptBucket{AttemptBucketInitial, AttemptBucketMiddle, AttemptBucketFinal, AttemptBucketOverflow}
	rules := make([]Rule, 0, len(knownFailureClasses)*len(buckets)+1)

	for _, fc := range knownFailureClasses {
		for _, bucket := range buckets {
			action := ActionRetry
			if bucket == AttemptBucketFinal || bucket == AttemptBucketOverflow {
				action = ActionEscalate
			}
			rules = append(rules, Rule{
				RuleID:        fmt.Sprintf("%s.%s", fc, bucket),
				FailureClass:  fc,
				AttemptBucket: bucket,
				Action:        action,
				Priority:      100,
			})
		}
	}

	rules = append(rules, Rule{
		RuleID:        "fallback",
		FailureClass:  FailureClassAny,
		AttemptBucket: AttemptBucketAny,
		Action:        ActionEscalate,
		Priority:      0,
	})

	return Policy{
		UnknownFailureClassAction: ActionEscalate,
		Rules:                     rules,
	}
}

// Input is the evaluator's input contract for one dispatch failure.
type Input struct {
	FailureClass FailureClass
	Attempt      int
	MaxAttempts  int
}

// Decision is the deterministic evaluator output.
type Decision struct {
	FailureClass  FailureClass
	AttemptBucket AttemptBucket
	Action        Action
	RuleID        string
	Reason        string
}

// Evaluate deterministically resolves one policy decision for input against
// policy. Replaying the same input against the same policy always produces
// the same decision (spec §4.10: "decisions are deterministic given the
// signal prefix").
func Evaluate(policy Policy, input Input) Decision {
	bucket := BucketAttempt(input.Attempt, input.MaxAttempts)
	decision := Decision{FailureClass: input.FailureClass, AttemptBucket: bucket}

	if input.FailureClass == "" {
		decision.Action = policy.UnknownFailureClassAction
		decision.RuleID = "default.missing_failure_class"
		decision.Reason = "missing_failure_class"
		return decision
	}

	if !IsKnownFailureClass(input.FailureClass) {
		decision.Action = policy.UnknownFailureClassAction
		decision.RuleID = "default.unknown_failure_class"
		decision.Reason = "unknown_failure_class"
		return decision
	}

	var candidates []Rule
	for _, rule := range policy.Rules {
		if rule.FailureClass != FailureClassAny && rule.FailureClass != input.FailureClass {
			continue
		}
		if rule.AttemptBucket != AttemptBucketAny && rule.AttemptBucket != bucket {
			continue
		}
		candidates = append(candidates, rule)
	}

	if len(candidates) == 0 {
		decision.Action = policy.UnknownFailureClassAction
		decision.RuleID = "default.no_matching_rule"
		decision.Reason = "no_matching_rule"
		return decision
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := ruleSpecificity(candidates[i]), ruleSpecificity(candidates[j])
		if si != sj {
			return si > sj
		}
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].RuleID < candidates[j].RuleID
	})

	chosen := candidates[0]
	decision.Action = chosen.Action
	decision.RuleID = chosen.RuleID
	decision.Reason = "rule_match_specificity_priority_rule_id"
	return decision
}

func ruleSpecificity(r Rule) int {
	score := 0
	if r.FailureClass != FailureClassAny {
		score++
	}
	if r.AttemptBucket != AttemptBucketAny {
		score++
	}
	return score
}

// MaxAttemptsFor returns a story's configured retry cap, falling back to
// DefaultMaxAttempts when the story leaves it unset (spec §4.9's "bounded
// by story thresholds, default 3").
func MaxAttemptsFor(story *model.Story) int {
	if story == nil || story.Thresholds.MaxRetries <= 0 {
		return DefaultMaxAttempts
	}
	return story.Thresholds.MaxRetries
}

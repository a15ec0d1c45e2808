package retry

import "testing"

func TestBucketAttempt(t *testing.T) {
	tests := []struct {
		name        string
		attempt     int
		maxAttempts int
		want        AttemptBucket
	}{
		{"first attempt", 1, 3, AttemptBucketInitial},
		{"middle attempt", 2, 3, AttemptBucketMiddle},
		{"final attempt", 3, 3, AttemptBucketFinal},
		{"overflow attempt", 4, 3, AttemptBucketOverflow},
		{"zero max attempts is overflow", 1, 0, AttemptBucketOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BucketAttempt(tt.attempt, tt.maxAttempts); got != tt.want {
				t.Fatalf("BucketAttempt(%d, %d) = %q, want %q", tt.attempt, tt.maxAttempts, got, tt.want)
			}
		})
	}
}

func TestDefaultPolicyTableConformance(t *testing.T) {
	policy := DefaultPolicy()
	for _, rule := range policy.Rules {
		if rule.FailureClass == FailureClassAny || rule.AttemptBucket == AttemptBucketAny {
			continue
		}
		attempt := 1
		switch rule.AttemptBucket {
		case AttemptBucketMiddle:
			attempt = 2
		case AttemptBucketFinal:
			attempt = 3
		case AttemptBucketOverflow:
			attempt = 4
		}
		got := Evaluate(policy, Input{FailureClass: rule.FailureClass, Attempt: attempt, MaxAttempts: 3})
		if got.Action != rule.Action {
			t.Fatalf("rule %s conformance action = %q, want %q", rule.RuleID, got.Action, rule.Action)
		}
		if got.RuleID != rule.RuleID {
			t.Fatalf("rule %s conformance rule_id = %q, want %q", rule.RuleID, got.RuleID, rule.RuleID)
		}
	}
}

func TestEvaluateUnknownFailureClassEscalates(t *testing.T) {
	got := Evaluate(DefaultPolicy(), Input{FailureClass: "not_a_real_class", Attempt: 1, MaxAttempts: 3})
	if got.Action != ActionEscalate {
		t.Fatalf("Action = %q, want escalate for unknown failure class", got.Action)
	}
	if got.Reason != "unknown_failure_class" {
		t.Fatalf("Reason = %q, want unknown_failure_class", got.Reason)
	}
}

func TestEvaluateMissingFailureClassEscalates(t *testing.T) {
	got := Evaluate(DefaultPolicy(), Input{Attempt: 1, MaxAttempts: 3})
	if got.Action != ActionEscalate {
		t.Fatalf("Action = %q, want escalate for missing failure class", got.Action)
	}
	if got.Reason != "missing_failure_class" {
		t.Fatalf("Reason = %q, want missing_failure_class", got.Reason)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	policy := DefaultPolicy()
	input := Input{FailureClass: FailureClassQARejected, Attempt: 2, MaxAttempts: 3}
	first := Evaluate(policy, input)
	for i := 0; i < 5; i++ {
		if got := Evaluate(policy, input); got != first {
			t.Fatalf("Evaluate is not deterministic: first=%+v got=%+v", first, got)
		}
	}
}

func TestEvaluateFinalAttemptEscalatesRegardlessOfFailureClass(t *testing.T) {
	policy := DefaultPolicy()
	for _, fc := range knownFailureClasses {
		got := Evaluate(policy, Input{FailureClass: fc, Attempt: 3, MaxAttempts: 3})
		if got.Action != ActionEscalate {
			t.Fatalf("failure class %s at final attempt: Action = %q, want escalate", fc, got.Action)
		}
	}
}

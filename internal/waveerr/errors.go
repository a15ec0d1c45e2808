// Package waveerr defines the cross-cutting error taxonomy every WAVE
// component surfaces through. Each kind carries a distinct handling policy
// (see the error-handling design in the specification this module
// implements): transient errors are retried locally, everything else is
// surfaced via a signal and a status change, never swallowed.
package waveerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by handling policy.
type Kind string

const (
	// KindTransient covers bus/store unavailability: retried with backoff.
	KindTransient Kind = "transient_infrastructure"

	// KindWorkerFailure covers worker crash, non-zero exit, or timeout.
	KindWorkerFailure Kind = "worker_failure"

	// KindValidationRejected covers a QA gate returning rejected.
	KindValidationRejected Kind = "validation_rejection"

	// KindSafetyBlock covers a safety score below the block threshold.
	KindSafetyBlock Kind = "safety_block"

	// KindBoundaryViolation covers writes outside a story's allow/deny lists.
	KindBoundaryViolation Kind = "boundary_violation"

	// KindBudgetExceeded covers a budget ledger crossing 100% of its cap.
	KindBudgetExceeded Kind = "budget_exceeded"

	// KindStateMachineViolation covers an illegal gate transition request.
	KindStateMachineViolation Kind = "state_machine_violation"

	// KindCorruptCheckpoint covers a checkpoint that fails to decode or
	// whose invariants don't hold on load.
	KindCorruptCheckpoint Kind = "corrupt_checkpoint"
)

// Error wraps an underlying cause with a handling Kind.
type Error struct {
	kind    Kind
	op      string
	err     error
	Retryable bool
}

func (e *Error) Error() string {
	if e.op != "" {
		return fmt.Sprintf("%s: %s: %v", e.op, e.kind, e.err)
	}
	return fmt.Sprintf("%s: %v", e.kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's handling category.
func (e *Error) Kind() Kind { return e.kind }

// New wraps err with the given kind and operation label.
func New(kind Kind, op string, err error) *Error {
	return &Error{kind: kind, op: op, err: err, Retryable: kind == KindTransient}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error, and reports ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.kind, true
	}
	return "", false
}

// IsRetryable reports whether err is a transient-infrastructure error that
// callers should retry with backoff rather than surface terminally.
func IsRetryable(err error) bool {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Retryable
	}
	return false
}

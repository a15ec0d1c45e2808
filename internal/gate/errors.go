package gate

import "errors"

// Sentinel errors for the gate package. Using sentinels instead of ad-hoc
// fmt.Errorf allows callers to match with errors.Is for reliable handling,
// following the teacher's convention of one errors.go per package.
var (
	// ErrUnknownGate is returned when a gate value is not one of the
	// twelve canonical identifiers.
	ErrUnknownGate = errors.New("unknown gate")

	// ErrTerminalGate is returned when Next is asked for the successor of
	// the final gate in the sequence.
	ErrTerminalGate = errors.New("terminal gate has no successor")

	// ErrViolation is returned when a requested transition is not the
	// canonical successor of the current gate (skipping or reordering).
	ErrViolation = errors.New("gate transition violation")
)

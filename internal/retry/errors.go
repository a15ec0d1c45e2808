package retry

import "errors"

// Sentinel errors for the retry package, matched with errors.Is.
var (
	// ErrAlreadyEscalated is returned when Evaluate is called for a story
	// that has already been escalated; the controller never re-opens a
	// closed escalation.
	ErrAlreadyEscalated = errors.New("story already escalated")
)

package checkpoint

import "errors"

// Sentinel errors for the checkpoint package, matched with errors.Is.
var (
	// ErrSessionNotFound is returned when no session row exists for the
	// requested ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoCheckpoint is returned by LoadLatest when a session has never had
	// a checkpoint written.
	ErrNoCheckpoint = errors.New("no checkpoint for session")

	// ErrSequenceRegression is returned when SaveCheckpoint is asked to
	// write a sequence number that does not strictly advance the session's
	// head sequence.
	ErrSequenceRegression = errors.New("checkpoint sequence does not advance session head")
)

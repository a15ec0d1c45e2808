package bus

import "errors"

// Sentinel errors for the bus package, matched with errors.Is.
var (
	// ErrClosed is returned by Publish/Subscribe/Acknowledge once Close has
	// been called.
	ErrClosed = errors.New("bus: closed")

	// ErrUnavailable is returned when the backing transport cannot be
	// reached; callers (C10) retry with exponential backoff (spec §4.1).
	ErrUnavailable = errors.New("bus: transport unavailable")
)

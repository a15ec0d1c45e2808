package context

import "errors"

// Sentinel errors for the context package, matched with errors.Is.
var (
	// ErrCapacityExceeded is returned when pinning an entry (or inserting a
	// new one) would push the cache's pinned-token total past its cap.
	ErrCapacityExceeded = errors.New("capacity-exceeded")

	// ErrNotFound is returned when an operation references a key the cache
	// does not hold.
	ErrNotFound = errors.New("entry not found")
)

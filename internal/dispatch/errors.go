package dispatch

import "errors"

// Sentinel errors for the dispatch package, matched with errors.Is.
var (
	// ErrBoundaryViolation is returned internally when a worker's modified
	// paths fall outside the story's allow-list or inside its deny-list
	// (spec §4.8 step 6); it surfaces to callers as a Rejected outcome
	// with Result.Reason set, not as a returned error.
	ErrBoundaryViolation = errors.New("dispatch: workspace boundary violation")

	// ErrNoProgress is the internal timeout-detection error: no new turn
	// and no new file modification within the story's timeout window.
	ErrNoProgress = errors.New("dispatch: no progress before timeout")
)

package budget

import "errors"

// Sentinel errors for the budget package, matched with errors.Is.
var (
	// ErrUnknownModel is returned when Record is given a model name absent
	// from the configured rate table.
	ErrUnknownModel = errors.New("unknown model rate")

	// ErrStoryCapExceeded is returned by Record when a story's own cap (not
	// the session's) has already been exceeded; the caller stops that story
	// without stopping the session (spec §4.5).
	ErrStoryCapExceeded = errors.New("story budget cap exceeded")
)

package orchestrator

import "errors"

// Sentinel errors for the orchestrator package, matched with errors.Is.
var (
	// ErrSessionNotFound is returned by GetSession/PauseSession/
	// ResumeSession/AbortSession for a session ID this process is not
	// currently driving.
	ErrSessionNotFound = errors.New("orchestrator: session not found")

	// ErrSessionAlreadyRunning is returned by StartSession for a session ID
	// already registered.
	ErrSessionAlreadyRunning = errors.New("orchestrator: session already running")

	// ErrEmergencyStopped is returned by control-surface calls once the
	// emergency-stop sentinel has tripped; only GetSession keeps working.
	ErrEmergencyStopped = errors.New("orchestrator: emergency stop in effect")

	// ErrInvalidSession is returned by StartSession for a session with no
	// stories, or a story referencing an unassigned role/domain.
	ErrInvalidSession = errors.New("orchestrator: invalid session")
)

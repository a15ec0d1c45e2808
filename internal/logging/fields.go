// Package logging provides the structured-field vocabulary shared across
// WAVE components, built on top of zap. Components accept a *zap.Logger
// (or SugaredLogger) from the Runtime and call Fields() to build
// consistent, greppable log lines rather than formatting ad hoc strings.
package logging

import (
	"time"

	"go.uber.org/zap"
)

// Fields accumulates structured zap fields for a single log call.
type Fields []zap.Field

// New starts an empty field set.
func New() Fields {
	return Fields{}
}

// Session tags the session identifier.
func (f Fields) Session(id string) Fields {
	return append(f, zap.String("session_id", id))
}

// Story tags the story identifier.
func (f Fields) Story(id string) Fields {
	return append(f, zap.String("story_id", id))
}

// Gate tags the gate name.
func (f Fields) Gate(name string) Fields {
	return append(f, zap.String("gate", name))
}

// Signal tags a signal's kind and sequence number.
func (f Fields) Signal(kind string, sequence uint64) Fields {
	return append(f, zap.String("signal_kind", kind), zap.Uint64("signal_seq", sequence))
}

// Component tags the originating component (e.g. "dispatcher", "gate-machine").
func (f Fields) Component(name string) Fields {
	return append(f, zap.String("component", name))
}

// Operation tags the operation name (e.g. "dispatch", "checkpoint").
func (f Fields) Operation(name string) Fields {
	return append(f, zap.String("operation", name))
}

// Attempt tags a retry attempt counter.
func (f Fields) Attempt(attempt, max int) Fields {
	return append(f, zap.Int("attempt", attempt), zap.Int("max_attempts", max))
}

// Duration tags an elapsed duration.
func (f Fields) Duration(d time.Duration) Fields {
	return append(f, zap.Duration("duration", d))
}

// Err tags an error.
func (f Fields) Err(err error) Fields {
	return append(f, zap.Error(err))
}

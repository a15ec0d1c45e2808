package gate

import (
	"sync"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// Machine tracks, per story, which gate has been reached and enforces the
// canonical sequence on every advance. It is the in-process counterpart to
// the persisted story-gate map a Checkpoint carries; the Session
// Orchestrator keeps exactly one Machine per running session.
type Machine struct {
	mu      sync.Mutex
	reached map[string]model.Gate // story ID -> current gate
	history map[string]map[model.Gate]bool
}

// NewMachine creates an empty gate machine with every story starting
// before the first gate.
func NewMachine() *Machine {
	return &Machine{
		reached: make(map[string]model.Gate),
		history: make(map[string]map[model.Gate]bool),
	}
}

// Current returns the gate a story has most recently reached, or the
// zero Gate if the story has not started.
func (m *Machine) Current(storyID string) model.Gate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reached[storyID]
}

// Start admits a story into the machine at the first canonical gate.
func (m *Machine) Start(storyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reached[storyID] = First()
	m.history[storyID] = map[model.Gate]bool{First(): true}
}

// Advance attempts to move storyID from its current gate to requested,
// enforcing Check. On success it records requested as reached and returns
// nil; on failure the story's recorded gate is unchanged.
func (m *Machine) Advance(storyID string, requested model.Gate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, started := m.reached[storyID]
	if !started {
		return ErrUnknownGate
	}
	if err := Check(current, requested); err != nil {
		return err
	}
	m.reached[storyID] = requested
	if m.history[storyID] == nil {
		m.history[storyID] = make(map[model.Gate]bool)
	}
	m.history[storyID][requested] = true
	return nil
}

// Reached reports whether storyID has ever recorded g as reached —
// the basis for the test-before-code and refactor-before-qa invariant
// checks.
func (m *Machine) Reached(storyID string, g model.Gate) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history[storyID][g]
}

// Restore seeds the machine from a checkpoint's per-story gate map
// (recovery path, spec §4.2): every story resumes at its last recorded
// gate without re-validating the path that got it there.
func (m *Machine) Restore(storyGateMap map[string]model.Gate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for storyID, g := range storyGateMap {
		m.reached[storyID] = g
		hist := make(map[model.Gate]bool, index(g)+1)
		for i := 0; i <= index(g); i++ {
			hist[Sequence[i]] = true
		}
		m.history[storyID] = hist
	}
}

// Snapshot returns the current story-gate map, suitable for embedding in
// a Checkpoint.
func (m *Machine) Snapshot() map[string]model.Gate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.Gate, len(m.reached))
	for k, v := range m.reached {
		out[k] = v
	}
	return out
}

// AllTerminal reports whether every tracked story has reached the final
// gate — the Session Orchestrator's completion condition.
func (m *Machine) AllTerminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reached) == 0 {
		return false
	}
	for _, g := range m.reached {
		if !IsTerminal(g) {
			return false
		}
	}
	return true
}

package checkpoint

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// MemoryStore is a non-durable Store implementation for tests and
// single-process dry runs. It honors the same atomicity-under-lock and
// retention semantics as SQLiteStore, minus the durability.
type MemoryStore struct {
	mu          sync.Mutex
	retention   int
	sessions    map[string]*model.Session
	checkpoints map[string][]model.Checkpoint // session -> ordered by sequence
	audit       map[string][]model.Signal     // session -> ordered by sequence
}

// NewMemoryStore returns an empty in-memory Store with the default
// five-checkpoint retention.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		retention:   5,
		sessions:    make(map[string]*model.Session),
		checkpoints: make(map[string][]model.Checkpoint),
		audit:       make(map[string][]model.Signal),
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *MemoryStore) SaveCheckpoint(_ context.Context, sessionID string, snapshot model.Checkpoint, trigger model.Signal) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if trigger.Sequence <= session.HeadSequence {
		return 0, fmt.Errorf("%w: session=%s sequence=%d", ErrSequenceRegression, sessionID, trigger.Sequence)
	}

	snapshot.SessionID = sessionID
	snapshot.Sequence = trigger.Sequence
	s.audit[sessionID] = append(s.audit[sessionID], trigger)
	s.checkpoints[sessionID] = append(s.checkpoints[sessionID], snapshot)
	session.HeadSequence = trigger.Sequence

	cps := s.checkpoints[sessionID]
	sort.Slice(cps, func(i, j int) bool { return cps[i].Sequence < cps[j].Sequence })
	if len(cps) > s.retention {
		s.checkpoints[sessionID] = cps[len(cps)-s.retention:]
	}
	return trigger.Sequence, nil
}

func (s *MemoryStore) LoadLatest(_ context.Context, sessionID string) (*model.Checkpoint, []model.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cps := s.checkpoints[sessionID]
	if len(cps) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoCheckpoint, sessionID)
	}
	latest := cps[len(cps)-1]

	var since []model.Signal
	for _, sig := range s.audit[sessionID] {
		if sig.Sequence > latest.Sequence {
			since = append(since, sig)
		}
	}
	return &latest, since, nil
}

func (s *MemoryStore) AppendAudit(_ context.Context, signal model.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[signal.SessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, signal.SessionID)
	}
	s.audit[signal.SessionID] = append(s.audit[signal.SessionID], signal)
	if signal.Sequence > session.HeadSequence {
		session.HeadSequence = signal.Sequence
	}
	return nil
}

func (s *MemoryStore) Recoverable(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, session := range s.sessions {
		if session.Status == model.SessionRunning || session.Status == model.SessionPaused {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, sessionID string, status model.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	session.Status = status
	return nil
}

func (s *MemoryStore) Close() error { return nil }

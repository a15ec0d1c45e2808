package bus

import (
	"context"
	"sync"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

type memorySession struct {
	mu        sync.Mutex
	log       []model.Signal
	nextSeq   uint64
	listeners map[int]chan model.Signal
	nextID    int
}

// MemoryBus is an in-memory, single-process Bus, grounded on the teacher's
// internal/worker/pool.go fan-out idiom: each Subscribe call gets its own
// buffered channel, fed by a broadcast on Publish, rather than a shared
// queue consumers compete over. It has no transport to break, so it never
// returns ErrUnavailable; it exists for single-process deployments and
// deterministic tests (Design Notes §9).
type MemoryBus struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	closed   bool
}

// NewMemoryBus constructs an empty MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{sessions: make(map[string]*memorySession)}
}

func (b *MemoryBus) session(sessionID string) *memorySession {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok {
		s = &memorySession{listeners: make(map[int]chan model.Signal)}
		b.sessions[sessionID] = s
	}
	return s
}

// Publish implements Bus.
func (b *MemoryBus) Publish(_ context.Context, signal model.Signal) (model.Signal, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return model.Signal{}, ErrClosed
	}

	s := b.session(signal.SessionID)
	s.mu.Lock()
	s.nextSeq++
	signal.Sequence = s.nextSeq
	s.log = append(s.log, signal)
	listeners := make([]chan model.Signal, 0, len(s.listeners))
	for _, ch := range s.listeners {
		listeners = append(listeners, ch)
	}
	s.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- signal:
		default:
			// A slow subscriber does not block publish; it will still see
			// the signal on its next catch-up replay since the log is the
			// source of truth, not the channel.
		}
	}
	return signal, nil
}

// Subscribe implements Bus.
func (b *MemoryBus) Subscribe(ctx context.Context, sessionID string, fromSequence uint64) (<-chan model.Signal, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	s := b.session(sessionID)
	out := make(chan model.Signal, 64)

	s.mu.Lock()
	backlog := make([]model.Signal, 0, len(s.log))
	for _, sig := range s.log {
		if sig.Sequence >= fromSequence {
			backlog = append(backlog, sig)
		}
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = make(chan model.Signal, 64)
	live := s.listeners[id]
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		}()

		last := fromSequence
		for _, sig := range backlog {
			select {
			case out <- sig:
				last = sig.Sequence + 1
			case <-ctx.Done():
				return
			}
		}
		for {
			select {
			case sig, ok := <-live:
				if !ok {
					return
				}
				if sig.Sequence < last {
					continue
				}
				select {
				case out <- sig:
					last = sig.Sequence + 1
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Acknowledge implements Bus. The in-memory bus keeps its full log for the
// life of the process and has no redelivery to suppress, so Acknowledge is
// a no-op kept only to satisfy the interface.
func (b *MemoryBus) Acknowledge(context.Context, string, uint64) error {
	return nil
}

// Close implements Bus.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, s := range b.sessions {
		s.mu.Lock()
		for _, ch := range s.listeners {
			close(ch)
		}
		s.mu.Unlock()
	}
	return nil
}

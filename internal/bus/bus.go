// Package bus implements the Signal Bus (C1): a durable, per-session FIFO
// event stream with at-least-once delivery, consumer acknowledgement, and
// visibility-timeout redelivery (spec §4.1).
//
// The teacher has no message-bus analog of its own, so the contract's
// shape is grounded on the only Streams-capable client in the retrieved
// pack, github.com/redis/go-redis/v9 (a dependency family shared with
// jordigilh-kubernaut and r3e-network-service_layer), using Redis Streams
// consumer groups: XADD for publish, XREADGROUP for ordered per-session
// delivery, XACK for acknowledgement, and XAUTOCLAIM for visibility-timeout
// reclaim. Circuit-breaking around the transport is grounded on
// github.com/sony/gobreaker (a kubernaut dependency); the deadline idiom
// around every blocking call follows the teacher's
// internal/ratchet/gate.go BdCLITimeout/ErrBdCLITimeout pattern, generalized
// from one fixed CLI timeout to a configurable per-call one. An in-memory
// implementation, grounded on the teacher's internal/worker/pool.go
// channel fan-out idiom, backs single-process deployments and deterministic
// tests (Design Notes §9: "trivially testable with in-memory stand-ins").
package bus

import (
	"context"
	"time"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// DefaultVisibilityTimeout is how long an unacknowledged signal stays
// claimed by its original consumer before it becomes eligible for
// redelivery (spec §4.1: "default 60 s").
const DefaultVisibilityTimeout = 60 * time.Second

// Bus is the Signal Bus contract (spec §4.1). Delivery is at-least-once;
// callers are responsible for idempotence keyed by (session-id, sequence).
// Ordering is strict FIFO per session and unordered across sessions.
type Bus interface {
	// Publish appends signal to its session's stream. The signal's
	// Sequence field is assigned by the bus and is monotonically
	// increasing per session.
	Publish(ctx context.Context, signal model.Signal) (model.Signal, error)

	// Subscribe returns a channel of signals for sessionID starting at
	// fromSequence (inclusive), continuing to stream newly published
	// signals until ctx is cancelled or the bus is closed. The channel is
	// closed when delivery stops for either reason.
	Subscribe(ctx context.Context, sessionID string, fromSequence uint64) (<-chan model.Signal, error)

	// Acknowledge marks sessionID's signal at sequence as processed,
	// advancing the consumer's redelivery watermark.
	Acknowledge(ctx context.Context, sessionID string, sequence uint64) error

	// Close releases the bus's resources. Subsequent calls return
	// ErrClosed.
	Close() error
}

// Package checkpoint implements the Checkpoint Store (C2, spec §4.2):
// transactional, durable session snapshots plus the append-only signal
// audit log they are written alongside. Adapted from the teacher's
// internal/storage package — the teacher's FileStorage wrote JSONL
// session/index/provenance files under a mutex with no cross-file
// transaction; WAVE needs "insert audit row, insert checkpoint row, bump
// session head, garbage-collect old checkpoints" to commit or fail as one
// unit, so the store is rebuilt on modernc.org/sqlite (pure Go, no cgo)
// driven through sqlx, with the teacher's functional-options constructor
// idiom (WithDSN, WithRetention) kept from FileStorageOption.
package checkpoint

import (
	"context"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// Store is the Checkpoint Store contract (spec §4.2).
type Store interface {
	// CreateSession registers a new session at sequence 0.
	CreateSession(ctx context.Context, session *model.Session) error

	// SaveCheckpoint durably commits a checkpoint and its triggering signal
	// atomically: the signal is appended to the audit log, the checkpoint
	// snapshot is written, and the session's head sequence is advanced, all
	// inside one transaction. It returns the committed sequence number.
	// Retention (spec §4.2: only the last five checkpoints per session) is
	// enforced in the same transaction.
	SaveCheckpoint(ctx context.Context, sessionID string, snapshot model.Checkpoint, trigger model.Signal) (uint64, error)

	// LoadLatest returns a session's newest checkpoint plus every audit-log
	// signal recorded after it, the exact recovery semantics of spec §4.2:
	// "the latest checkpoint plus any later signals fully determines the
	// next action."
	LoadLatest(ctx context.Context, sessionID string) (*model.Checkpoint, []model.Signal, error)

	// AppendAudit records a signal with no accompanying checkpoint (for
	// example a heartbeat or a budget-warning that does not itself advance
	// the gate state).
	AppendAudit(ctx context.Context, signal model.Signal) error

	// Recoverable lists the IDs of sessions whose status is running or
	// paused, the enumeration C10 performs on process start (spec §4.2).
	Recoverable(ctx context.Context) ([]string, error)

	// UpdateStatus transitions a session's terminal/non-terminal status.
	UpdateStatus(ctx context.Context, sessionID string, status model.SessionStatus) error

	// Close releases the store's underlying resources.
	Close() error
}

package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	project_path  TEXT NOT NULL,
	status        TEXT NOT NULL,
	created_at    DATETIME NOT NULL,
	head_sequence INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS checkpoints (
	session_id             TEXT NOT NULL,
	sequence               INTEGER NOT NULL,
	gate                   TEXT NOT NULL,
	story_gate_map         TEXT NOT NULL,
	budget_ledger          TEXT NOT NULL,
	outstanding_dispatches TEXT NOT NULL,
	context_summary        TEXT NOT NULL,
	created_at             DATETIME NOT NULL,
	PRIMARY KEY (session_id, sequence)
);

CREATE TABLE IF NOT EXISTS audit_log (
	session_id TEXT NOT NULL,
	sequence   INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	story_id   TEXT,
	producer   TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (session_id, sequence)
);
`

// SQLiteStore is the durable, transactional Store implementation backed by
// modernc.org/sqlite (pure Go, no cgo).
type SQLiteStore struct {
	db        *sqlx.DB
	retention int
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithRetention overrides the number of checkpoints retained per session
// (default 5, per spec §4.2).
func WithRetention(n int) SQLiteOption {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.retention = n
		}
	}
}

// Open creates (if needed) and connects to the checkpoint database at dsn,
// e.g. "file:wave.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)".
func Open(dsn string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate checkpoint store: %w", err)
	}
	s := &SQLiteStore{db: db, retention: 5}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateSession registers a new session at sequence 0.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *model.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, project_path, status, created_at, head_sequence) VALUES (?, ?, ?, ?, 0)`,
		session.ID, session.ProjectPath, session.Status, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("create session %s: %w", session.ID, err)
	}
	return nil
}

// SaveCheckpoint commits snapshot and trigger atomically, then prunes
// checkpoints beyond the retention window, all inside one *sql.Tx.
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, sessionID string, snapshot model.Checkpoint, trigger model.Signal) (uint64, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, fmt.Errorf("begin checkpoint tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sequence := trigger.Sequence
	payload, err := json.Marshal(trigger.Payload)
	if err != nil {
		return 0, fmt.Errorf("marshal signal payload: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (session_id, sequence, kind, story_id, producer, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, sequence, trigger.Kind, trigger.StoryID, trigger.Producer, payload, trigger.Timestamp,
	); err != nil {
		return 0, fmt.Errorf("append audit row: %w", err)
	}

	storyGateMap, err := json.Marshal(snapshot.StoryGateMap)
	if err != nil {
		return 0, fmt.Errorf("marshal story gate map: %w", err)
	}
	budget, err := json.Marshal(snapshot.Budget)
	if err != nil {
		return 0, fmt.Errorf("marshal budget ledger: %w", err)
	}
	outstanding, err := json.Marshal(snapshot.OutstandingDispatches)
	if err != nil {
		return 0, fmt.Errorf("marshal outstanding dispatches: %w", err)
	}
	contextSummary, err := json.Marshal(snapshot.ContextSummary)
	if err != nil {
		return 0, fmt.Errorf("marshal context summary: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoints (session_id, sequence, gate, story_gate_map, budget_ledger, outstanding_dispatches, context_summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, sequence, snapshot.Gate, storyGateMap, budget, outstanding, contextSummary, snapshot.CreatedAt,
	); err != nil {
		return 0, fmt.Errorf("insert checkpoint row: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET head_sequence = ? WHERE id = ? AND head_sequence < ?`,
		sequence, sessionID, sequence)
	if err != nil {
		return 0, fmt.Errorf("update session head: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return 0, fmt.Errorf("%w: session=%s sequence=%d", ErrSequenceRegression, sessionID, sequence)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE session_id = ? AND sequence NOT IN (
			SELECT sequence FROM checkpoints WHERE session_id = ? ORDER BY sequence DESC LIMIT ?
		)`, sessionID, sessionID, s.retention,
	); err != nil {
		return 0, fmt.Errorf("prune checkpoints: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit checkpoint tx: %w", err)
	}
	return sequence, nil
}

type checkpointRow struct {
	SessionID             string    `db:"session_id"`
	Sequence               uint64    `db:"sequence"`
	Gate                   string    `db:"gate"`
	StoryGateMap           string    `db:"story_gate_map"`
	BudgetLedger           string    `db:"budget_ledger"`
	OutstandingDispatches  string    `db:"outstanding_dispatches"`
	ContextSummary         string    `db:"context_summary"`
	CreatedAt              time.Time `db:"created_at"`
}

func (r checkpointRow) toCheckpoint(sessionID string) (*model.Checkpoint, error) {
	cp := &model.Checkpoint{SessionID: sessionID, Sequence: r.Sequence, Gate: model.Gate(r.Gate), CreatedAt: r.CreatedAt}
	if err := json.Unmarshal([]byte(r.StoryGateMap), &cp.StoryGateMap); err != nil {
		return nil, fmt.Errorf("unmarshal story gate map: %w", err)
	}
	if err := json.Unmarshal([]byte(r.BudgetLedger), &cp.Budget); err != nil {
		return nil, fmt.Errorf("unmarshal budget ledger: %w", err)
	}
	if err := json.Unmarshal([]byte(r.OutstandingDispatches), &cp.OutstandingDispatches); err != nil {
		return nil, fmt.Errorf("unmarshal outstanding dispatches: %w", err)
	}
	if err := json.Unmarshal([]byte(r.ContextSummary), &cp.ContextSummary); err != nil {
		return nil, fmt.Errorf("unmarshal context summary: %w", err)
	}
	return cp, nil
}

type auditRow struct {
	SessionID string    `db:"session_id"`
	Sequence  uint64    `db:"sequence"`
	Kind      string    `db:"kind"`
	StoryID   string    `db:"story_id"`
	Producer  string    `db:"producer"`
	Payload   string    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

func (r auditRow) toSignal() (model.Signal, error) {
	sig := model.Signal{
		ID:        fmt.Sprintf("%s-%d", r.SessionID, r.Sequence),
		SessionID: r.SessionID,
		StoryID:   r.StoryID,
		Kind:      model.SignalKind(r.Kind),
		Producer:  r.Producer,
		Timestamp: r.CreatedAt,
		Sequence:  r.Sequence,
	}
	if err := json.Unmarshal([]byte(r.Payload), &sig.Payload); err != nil {
		return model.Signal{}, fmt.Errorf("unmarshal signal payload: %w", err)
	}
	return sig, nil
}

// LoadLatest returns the max-sequence checkpoint for sessionID plus every
// audit_log row with a greater sequence (spec §4.2 recovery semantics).
func (s *SQLiteStore) LoadLatest(ctx context.Context, sessionID string) (*model.Checkpoint, []model.Signal, error) {
	var row checkpointRow
	err := s.db.GetContext(ctx, &row,
		`SELECT session_id, sequence, gate, story_gate_map, budget_ledger, outstanding_dispatches, context_summary, created_at
		 FROM checkpoints WHERE session_id = ? ORDER BY sequence DESC LIMIT 1`, sessionID)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoCheckpoint, sessionID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load latest checkpoint: %w", err)
	}
	cp, err := row.toCheckpoint(sessionID)
	if err != nil {
		return nil, nil, err
	}

	var auditRows []auditRow
	if err := s.db.SelectContext(ctx, &auditRows,
		`SELECT session_id, sequence, kind, story_id, producer, payload, created_at
		 FROM audit_log WHERE session_id = ? AND sequence > ? ORDER BY sequence ASC`, sessionID, cp.Sequence,
	); err != nil {
		return nil, nil, fmt.Errorf("load signals since checkpoint: %w", err)
	}
	signals := make([]model.Signal, 0, len(auditRows))
	for _, r := range auditRows {
		sig, err := r.toSignal()
		if err != nil {
			return nil, nil, err
		}
		signals = append(signals, sig)
	}
	return cp, signals, nil
}

// AppendAudit records a signal with no accompanying checkpoint.
func (s *SQLiteStore) AppendAudit(ctx context.Context, signal model.Signal) error {
	payload, err := json.Marshal(signal.Payload)
	if err != nil {
		return fmt.Errorf("marshal signal payload: %w", err)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (session_id, sequence, kind, story_id, producer, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		signal.SessionID, signal.Sequence, signal.Kind, signal.StoryID, signal.Producer, payload, signal.Timestamp,
	); err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET head_sequence = ? WHERE id = ? AND head_sequence < ?`,
		signal.Sequence, signal.SessionID, signal.Sequence,
	); err != nil {
		return fmt.Errorf("update session head: %w", err)
	}
	return tx.Commit()
}

// Recoverable lists sessions whose status is running or paused.
func (s *SQLiteStore) Recoverable(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM sessions WHERE status IN (?, ?)`, model.SessionRunning, model.SessionPaused)
	if err != nil {
		return nil, fmt.Errorf("list recoverable sessions: %w", err)
	}
	return ids, nil
}

// UpdateStatus transitions a session's status.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, sessionID string, status model.SessionStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET status = ? WHERE id = ?`, status, sessionID)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

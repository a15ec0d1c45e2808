package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// Orchestrator is the process-wide control surface (spec §6): it starts,
// inspects, pauses, resumes, and aborts sessions, each driven by its own
// sessionDriver goroutine. Exactly one Orchestrator exists per process;
// every method is safe for concurrent use.
type Orchestrator struct {
	rt *Runtime

	mu      sync.Mutex
	drivers map[string]*sessionDriver
	cancels map[string]context.CancelFunc

	stopped atomic.Bool
}

// New returns an Orchestrator bound to rt.
func New(rt *Runtime) *Orchestrator {
	return &Orchestrator{
		rt:      rt,
		drivers: make(map[string]*sessionDriver),
		cancels: make(map[string]context.CancelFunc),
	}
}

func validateSession(session *model.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: missing session id", ErrInvalidSession)
	}
	if len(session.Stories) == 0 {
		return fmt.Errorf("%w: session %s has no stories", ErrInvalidSession, session.ID)
	}
	for _, story := range session.Stories {
		if story.ID == "" || story.Role == "" || story.Domain == "" {
			return fmt.Errorf("%w: story missing id/role/domain in session %s", ErrInvalidSession, session.ID)
		}
	}
	return nil
}

// StartSession registers session, persists it, and launches its driver.
func (o *Orchestrator) StartSession(ctx context.Context, session *model.Session) error {
	if o.stopped.Load() {
		return ErrEmergencyStopped
	}
	if err := validateSession(session); err != nil {
		return err
	}

	o.mu.Lock()
	if _, exists := o.drivers[session.ID]; exists {
		o.mu.Unlock()
		return ErrSessionAlreadyRunning
	}
	session.Status = model.SessionRunning
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if err := o.rt.Store.CreateSession(ctx, session); err != nil {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: create session: %w", err)
	}

	driver := newSessionDriver(o.rt, session)
	o.drivers[session.ID] = driver
	o.mu.Unlock()

	o.launch(driver)
	return nil
}

// launch starts (or restarts) a driver's run loop under a fresh,
// cancellable context tracked for AbortSession.
func (o *Orchestrator) launch(driver *sessionDriver) {
	driverCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancels[driver.session.ID] = cancel
	o.mu.Unlock()

	go func() {
		if err := driver.run(driverCtx); err != nil && driverCtx.Err() == nil {
			o.rt.Logger.Warn("session driver exited with error",
				zap.String("session_id", driver.session.ID), zap.Error(err))
			driver.session.Status = model.SessionFailed
			_ = o.rt.Store.UpdateStatus(context.Background(), driver.session.ID, model.SessionFailed)
		}
	}()
}

func (o *Orchestrator) driverFor(sessionID string) (*sessionDriver, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	driver, ok := o.drivers[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return driver, nil
}

// GetSession returns a session's current snapshot and its per-story gate
// map (spec §6's get-session contract).
func (o *Orchestrator) GetSession(sessionID string) (*model.Session, map[string]model.Gate, error) {
	driver, err := o.driverFor(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return driver.session, driver.gates.Snapshot(), nil
}

// PauseSession stops a session from issuing further dispatches without
// cancelling in-flight work; ResumeSession continues from the same point.
func (o *Orchestrator) PauseSession(ctx context.Context, sessionID string) error {
	driver, err := o.driverFor(sessionID)
	if err != nil {
		return err
	}
	driver.pause()
	driver.session.Status = model.SessionPaused
	return o.rt.Store.UpdateStatus(ctx, sessionID, model.SessionPaused)
}

// ResumeSession clears a session's pause flag and relaunches its driver
// loop; stories already at a terminal gate or escalated are no-ops.
func (o *Orchestrator) ResumeSession(ctx context.Context, sessionID string) error {
	if o.stopped.Load() {
		return ErrEmergencyStopped
	}
	driver, err := o.driverFor(sessionID)
	if err != nil {
		return err
	}
	driver.resume()
	driver.session.Status = model.SessionRunning
	if err := o.rt.Store.UpdateStatus(ctx, sessionID, model.SessionRunning); err != nil {
		return err
	}
	o.launch(driver)
	return nil
}

// AbortSession cancels a session's driver context immediately; any
// in-flight dispatch is torn down the next time it checks its context.
func (o *Orchestrator) AbortSession(ctx context.Context, sessionID, reason string) error {
	o.mu.Lock()
	cancel, ok := o.cancels[sessionID]
	driver := o.drivers[sessionID]
	o.mu.Unlock()
	if !ok || driver == nil {
		return ErrSessionNotFound
	}
	cancel()
	driver.session.Status = model.SessionAborted
	if err := o.rt.Store.UpdateStatus(ctx, sessionID, model.SessionAborted); err != nil {
		return err
	}
	return o.rt.Store.AppendAudit(ctx, model.Signal{
		SessionID: sessionID,
		Kind:      model.SignalAbort,
		Producer:  "operator",
		Timestamp: time.Now(),
		Payload:   map[string]any{"reason": reason},
	})
}

// EmergencyStopSession is spec §6's per-session `emergency-stop(session-id,
// reason, actor)`: immediate and idempotent, it aborts one session and
// records who invoked it and why, distinct from the process-wide kill
// switch EmergencyStop trips via the sentinel file.
func (o *Orchestrator) EmergencyStopSession(ctx context.Context, sessionID, reason, actor string) error {
	o.mu.Lock()
	cancel, ok := o.cancels[sessionID]
	driver := o.drivers[sessionID]
	o.mu.Unlock()
	if !ok || driver == nil {
		return ErrSessionNotFound
	}
	cancel()
	driver.session.Status = model.SessionAborted
	if err := o.rt.Store.UpdateStatus(ctx, sessionID, model.SessionAborted); err != nil {
		return err
	}
	return o.rt.Store.AppendAudit(ctx, model.Signal{
		SessionID: sessionID,
		Kind:      model.SignalEmergencyStop,
		Producer:  actor,
		Timestamp: time.Now(),
		Payload:   map[string]any{"reason": reason},
	})
}

// EmergencyStop trips the global stop: the sentinel file is written with
// non-empty content so every driver's next check (before a dispatch and
// between worker turns) halts, and new StartSession/ResumeSession calls
// are refused until the sentinel is cleared and the process restarted
// (spec §5's "checked before every dispatch" operator kill switch).
func (o *Orchestrator) EmergencyStop() error {
	o.stopped.Store(true)
	path := o.rt.Cfg.EmergencyStop.SentinelPath
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("orchestrator: create sentinel dir: %w", err)
		}
	}
	content := fmt.Sprintf("emergency stop triggered at %s\n", time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("orchestrator: write emergency stop sentinel: %w", err)
	}
	return nil
}

// Recover re-admits a session that was running or paused when the process
// last exited. The caller supplies the session's full definition (stories,
// thresholds) since the checkpoint store persists only the story-gate map,
// not the original story payload; Recover fast-forwards the new driver's
// gate machine to the checkpoint before resuming dispatch (spec §4.2:
// "the latest checkpoint plus any later signals fully determines the next
// action").
func (o *Orchestrator) Recover(ctx context.Context, session *model.Session) error {
	if err := validateSession(session); err != nil {
		return err
	}
	checkpointRow, _, err := o.rt.Store.LoadLatest(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("orchestrator: load checkpoint for recovery: %w", err)
	}

	driver := newSessionDriver(o.rt, session)
	driver.gates.Restore(checkpointRow.StoryGateMap)
	for _, story := range session.Stories {
		if g, ok := checkpointRow.StoryGateMap[story.ID]; ok {
			story.CurrentGate = g
		}
	}
	session.Status = model.SessionRunning
	session.HeadSequence = checkpointRow.Sequence

	o.mu.Lock()
	o.drivers[session.ID] = driver
	o.mu.Unlock()

	if err := o.rt.Store.UpdateStatus(ctx, session.ID, model.SessionRunning); err != nil {
		return err
	}
	o.launch(driver)
	return nil
}

// RecoverableSessionIDs lists session IDs left running or paused when the
// process last exited, the enumeration C10 performs on start (spec §4.2).
func (o *Orchestrator) RecoverableSessionIDs(ctx context.Context) ([]string, error) {
	return o.rt.Store.Recoverable(ctx)
}

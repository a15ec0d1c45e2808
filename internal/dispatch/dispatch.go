// Package dispatch implements the Agent Dispatcher (C8, spec §4.8): it
// allocates a workspace, invokes an external worker, screens every
// proposed write through the Safety Evaluator, meters tokens through the
// Budget Accountant, and validates the resulting change set against the
// workspace's domain rule before reporting one of four outcomes.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/Boomerang-Apps/wave-sub010/internal/budget"
	"github.com/Boomerang-Apps/wave-sub010/internal/bus"
	contextgov "github.com/Boomerang-Apps/wave-sub010/internal/context"
	"github.com/Boomerang-Apps/wave-sub010/internal/model"
	"github.com/Boomerang-Apps/wave-sub010/internal/safety"
	"github.com/Boomerang-Apps/wave-sub010/internal/workspace"
)

// Outcome is the headline result of one dispatch (spec §4.8's contract
// return type).
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeEscalated Outcome = "escalated"
)

// Result is the full outcome of one Dispatch call.
type Result struct {
	Outcome   Outcome
	Workspace *model.Workspace
	Summary   string
	Reason    string
}

// Request describes one dispatch invocation.
type Request struct {
	SessionID    string
	Story        *model.Story
	Role         string
	Gate         model.Gate
	BaseRevision string
	// ContextManifest is the "read these files first" preload, pinned in
	// the Context Governor for the duration of the dispatch (spec §4.8
	// step 1).
	ContextManifest map[string]string
	Model           string
	Command         string
	Args            []string
}

// Dispatcher wires C6 (workspace), C3 (safety), C4 (context), C5 (budget),
// and C1 (signal bus) around one worker invocation, per spec §4.8.
type Dispatcher struct {
	workspaces *workspace.Provider
	safety     *safety.Evaluator
	budgetAcct *budget.Accountant
	signals    bus.Bus
	cache      *contextgov.Cache
	factory    WorkerFactory

	progressTimeout time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWorkerFactory overrides DefaultWorkerFactory, primarily for tests.
func WithWorkerFactory(f WorkerFactory) Option {
	return func(d *Dispatcher) { d.factory = f }
}

// WithProgressTimeout overrides DefaultProgressTimeout.
func WithProgressTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.progressTimeout = timeout }
}

// NewDispatcher builds a Dispatcher from its component dependencies.
func NewDispatcher(workspaces *workspace.Provider, safetyEval *safety.Evaluator, budgetAcct *budget.Accountant, signals bus.Bus, cache *contextgov.Cache, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		workspaces:      workspaces,
		safety:          safetyEval,
		budgetAcct:      budgetAcct,
		signals:         signals,
		cache:           cache,
		factory:         DefaultWorkerFactory,
		progressTimeout: DefaultProgressTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs one worker invocation for req and returns its outcome
// (spec §4.8's seven-step contract).
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if req.Story.Escalated {
		return Result{Outcome: OutcomeEscalated, Reason: "story already escalated"}, nil
	}

	timeout := d.progressTimeout
	if req.Story.Thresholds.MaxDurationMinutes > 0 {
		timeout = time.Duration(req.Story.Thresholds.MaxDurationMinutes) * time.Minute
	}

	// Step 1: allocate a workspace, pre-load the context manifest pinned.
	ws, err := d.workspaces.Allocate(ctx, req.Story, req.BaseRevision)
	if err != nil {
		return Result{}, fmt.Errorf("dispatch: allocate workspace: %w", err)
	}
	if d.cache != nil && len(req.ContextManifest) > 0 {
		if err := d.cache.PinManifest(req.ContextManifest); err != nil {
			_ = d.workspaces.Release(ctx, ws)
			return Result{}, fmt.Errorf("dispatch: pin context manifest: %w", err)
		}
	}

	// Step 2: emit gate-started.
	d.publish(ctx, req, model.SignalGateStarted, nil)

	// Step 3: invoke the worker.
	wrk, err := d.factory(ctx, SpawnRequest{
		Command: req.Command,
		Args:    req.Args,
		Dir:     ws.ScratchDir,
		Env:     dispatchEnv(req, ws),
	})
	if err != nil {
		_ = d.workspaces.Release(ctx, ws)
		return Result{}, fmt.Errorf("dispatch: spawn worker: %w", err)
	}

	result, err := d.drive(ctx, req, ws, wrk, timeout)
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (d *Dispatcher) drive(ctx context.Context, req Request, ws *model.Workspace, wrk Worker, timeout time.Duration) (Result, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case turn, ok := <-wrk.Turns():
			if !ok {
				return d.finalize(ctx, req, ws, wrk)
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(timeout)

			if res, done := d.screen(ctx, req, ws, wrk, turn); done {
				return res, nil
			}
			if req.Model != "" && (turn.TokensIn > 0 || turn.TokensOut > 0) {
				crossings, err := d.budgetAcct.Record(req.SessionID, req.Story.ID, req.Model, turn.TokensIn, turn.TokensOut)
				if err == nil {
					for _, c := range crossings {
						if c.Kind == model.SignalBudgetExceeded {
							_ = wrk.Kill()
							_ = wrk.Wait()
							_ = d.workspaces.Release(ctx, ws)
							d.publish(ctx, req, model.SignalBudgetExceeded, nil)
							return Result{Outcome: OutcomeRejected, Workspace: ws, Reason: "budget exceeded"}, nil
						}
						if c.Kind == model.SignalBudgetWarning {
							d.publish(ctx, req, model.SignalBudgetWarning, nil)
						}
					}
				}
			}

		case <-timer.C:
			_ = wrk.Kill()
			_ = wrk.Wait()
			_ = d.workspaces.Release(ctx, ws)
			d.publish(ctx, req, model.SignalTimeout, nil)
			return Result{Outcome: OutcomeTimeout, Workspace: ws, Reason: ErrNoProgress.Error()}, nil

		case <-ctx.Done():
			_ = wrk.Kill()
			_ = wrk.Wait()
			_ = d.workspaces.Release(ctx, ws)
			return Result{Outcome: OutcomeTimeout, Workspace: ws, Reason: ctx.Err().Error()}, nil
		}
	}
}

// screen applies step 4: every proposed file write and shell command is
// screened by C3 before it is allowed to stand.
func (d *Dispatcher) screen(ctx context.Context, req Request, ws *model.Workspace, wrk Worker, turn TurnEvent) (Result, bool) {
	content, path := turn.SafetyInputs()
	if content == "" && path == "" {
		return Result{}, false
	}

	verdict := d.safety.Evaluate(content, path, req.Story)
	if verdict.Recommendation != model.RecommendBlock {
		return Result{}, false
	}

	_ = wrk.Kill()
	_ = wrk.Wait()
	_ = d.workspaces.Release(ctx, ws)

	kind := model.SignalGateFailed
	if len(verdict.Violations) > 0 && verdict.Violations[0].Kind == string(safety.CategoryStopConditionHit) {
		kind = model.SignalEmergencyStop
	}
	d.publish(ctx, req, kind, map[string]any{"violations": verdict.Violations})

	reason := "blocked"
	if len(verdict.Violations) > 0 {
		reason = verdict.Violations[0].Description
	}
	return Result{Outcome: OutcomeRejected, Workspace: ws, Reason: reason}, true
}

// finalize applies steps 6-7: on worker exit, validate the change set
// against the workspace's domain rule, then emit gate-completed.
func (d *Dispatcher) finalize(ctx context.Context, req Request, ws *model.Workspace, wrk Worker) (Result, error) {
	waitErr := wrk.Wait()

	modified, err := d.workspaces.ModifiedPaths(ctx, ws)
	if err != nil {
		_ = d.workspaces.Release(ctx, ws)
		return Result{}, fmt.Errorf("dispatch: modified paths: %w", err)
	}
	if err := workspace.ValidatePaths(req.Story, modified); err != nil {
		_ = d.workspaces.Release(ctx, ws)
		d.publish(ctx, req, model.SignalGateFailed, map[string]any{"reason": err.Error()})
		return Result{Outcome: OutcomeRejected, Workspace: ws, Reason: err.Error()}, nil
	}

	if waitErr != nil {
		_ = d.workspaces.Release(ctx, ws)
		d.publish(ctx, req, model.SignalGateFailed, map[string]any{"reason": waitErr.Error()})
		return Result{Outcome: OutcomeRejected, Workspace: ws, Reason: waitErr.Error()}, nil
	}

	d.publish(ctx, req, model.SignalGateCompleted, map[string]any{"modified_paths": modified})
	return Result{Outcome: OutcomeCompleted, Workspace: ws, Summary: fmt.Sprintf("%d paths modified", len(modified))}, nil
}

func (d *Dispatcher) publish(ctx context.Context, req Request, kind model.SignalKind, payload map[string]any) {
	if d.signals == nil {
		return
	}
	_, _ = d.signals.Publish(ctx, model.Signal{
		SessionID: req.SessionID,
		StoryID:   req.Story.ID,
		Kind:      kind,
		Producer:  "dispatch",
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func dispatchEnv(req Request, ws *model.Workspace) []string {
	return []string{
		"WAVE_STORY_ID=" + req.Story.ID,
		"WAVE_ROLE=" + req.Role,
		"WAVE_GATE=" + string(req.Gate),
		"WAVE_BRANCH=" + ws.Branch,
	}
}

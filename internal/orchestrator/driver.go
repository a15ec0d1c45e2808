package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	contextgov "github.com/Boomerang-Apps/wave-sub010/internal/context"
	"github.com/Boomerang-Apps/wave-sub010/internal/dispatch"
	"github.com/Boomerang-Apps/wave-sub010/internal/gate"
	"github.com/Boomerang-Apps/wave-sub010/internal/logging"
	"github.com/Boomerang-Apps/wave-sub010/internal/model"
	"github.com/Boomerang-Apps/wave-sub010/internal/retry"
)

// sessionDriver is the single logical driver for one session (spec §5:
// "one logical driver per session"). It owns the in-memory gate machine
// and context cache for that session and applies the decision loop of
// spec §4.10: dispatch the next gate's work, react to the outcome, and
// checkpoint whenever a gate boundary is crossed or a retry attempt
// increments.
type sessionDriver struct {
	rt         *Runtime
	session    *model.Session
	gates      *gate.Machine
	cache      *contextgov.Cache
	dispatcher *dispatch.Dispatcher
	retryCtl   *retry.Controller

	mu          sync.Mutex
	paused      bool
	outstanding map[string]bool
}

func newSessionDriver(rt *Runtime, session *model.Session) *sessionDriver {
	gates := gate.NewMachine()
	sessionCaps := model.DefaultBudgetCaps(rt.Cfg.Budget.DefaultTokenCap, rt.Cfg.Budget.DefaultCostCapCents)

	for _, story := range session.Stories {
		gates.Start(story.ID)
		storyCaps := sessionCaps
		if story.Thresholds.MaxTokens > 0 {
			storyCaps = model.DefaultBudgetCaps(story.Thresholds.MaxTokens, story.Thresholds.MaxCostCents)
		}
		rt.Budget.Init(session.ID, story.ID, sessionCaps, storyCaps)
	}

	cache := contextgov.NewCache(rt.Cfg.Context.CapTokens)
	var opts []dispatch.Option
	if rt.WorkerFactory != nil {
		opts = append(opts, dispatch.WithWorkerFactory(rt.WorkerFactory))
	}
	return &sessionDriver{
		rt:          rt,
		session:     session,
		gates:       gates,
		cache:       cache,
		dispatcher:  dispatch.NewDispatcher(rt.Workspaces, rt.Safety, rt.Budget, rt.Bus, cache, opts...),
		retryCtl:    retry.NewController(),
		outstanding: make(map[string]bool),
	}
}

func (d *sessionDriver) isPaused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

func (d *sessionDriver) pause() {
	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()
}

func (d *sessionDriver) resume() {
	d.mu.Lock()
	d.paused = false
	d.mu.Unlock()
}

func (d *sessionDriver) setOutstanding(storyID string, on bool) {
	d.mu.Lock()
	if on {
		d.outstanding[storyID] = true
	} else {
		delete(d.outstanding, storyID)
	}
	d.mu.Unlock()
}

func (d *sessionDriver) outstandingIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.outstanding))
	for id := range d.outstanding {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// wavesOf groups a session's stories by Wave, ascending, the concurrency
// unit of spec §5: "stories share a wave AND have disjoint domains" may
// run concurrently.
func wavesOf(stories []*model.Story) [][]*model.Story {
	byWave := make(map[int][]*model.Story)
	for _, s := range stories {
		byWave[s.Wave] = append(byWave[s.Wave], s)
	}
	waveNums := make([]int, 0, len(byWave))
	for w := range byWave {
		waveNums = append(waveNums, w)
	}
	sort.Ints(waveNums)
	out := make([][]*model.Story, 0, len(waveNums))
	for _, w := range waveNums {
		out = append(out, byWave[w])
	}
	return out
}

// domainGroupsOf splits one wave's stories by Domain: stories sharing a
// domain serialize against each other; distinct domains run concurrently.
func domainGroupsOf(stories []*model.Story) map[string][]*model.Story {
	groups := make(map[string][]*model.Story)
	for _, s := range stories {
		groups[s.Domain] = append(groups[s.Domain], s)
	}
	return groups
}

// run drives every wave of the session to completion, pause, abort, or
// emergency stop. It is safe to call again after a pause: stories already
// at a terminal gate or already escalated are no-ops, so resuming simply
// continues where the prior run left off.
func (d *sessionDriver) run(ctx context.Context) error {
	for _, wave := range wavesOf(d.session.Stories) {
		if d.isPaused() {
			return nil
		}
		if d.rt.checkEmergencyStop() {
			d.emergencyStop(ctx)
			return nil
		}
		if err := d.runWave(ctx, wave); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if d.gates.AllTerminal() {
		d.session.Status = model.SessionCompleted
		_ = d.rt.Store.UpdateStatus(ctx, d.session.ID, model.SessionCompleted)
	}
	return nil
}

func (d *sessionDriver) runWave(ctx context.Context, stories []*model.Story) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, domainStories := range domainGroupsOf(stories) {
		domainStories := domainStories
		group.Go(func() error {
			for _, story := range domainStories {
				if err := d.runStoryLifecycle(groupCtx, story); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return group.Wait()
}

// runStoryLifecycle dispatches story, gate by gate, until it reaches the
// terminal gate, escalates, or the driver is paused/stopped.
func (d *sessionDriver) runStoryLifecycle(ctx context.Context, story *model.Story) error {
	for {
		if d.isPaused() || story.Escalated {
			return nil
		}
		if d.rt.checkEmergencyStop() {
			d.emergencyStop(ctx)
			return nil
		}

		current := d.gates.Current(story.ID)
		if gate.IsTerminal(current) {
			return nil
		}
		next, err := gate.Next(current)
		if err != nil {
			return err
		}

		d.setOutstanding(story.ID, true)
		result, err := d.dispatcher.Dispatch(ctx, dispatch.Request{
			SessionID:    d.session.ID,
			Story:        story,
			Role:         story.Role,
			Gate:         next,
			BaseRevision: "HEAD",
			Model:        d.rt.Cfg.Worker.Command,
			Command:      d.rt.Cfg.Worker.Command,
			Args:         d.rt.Cfg.Worker.Args,
		})
		d.setOutstanding(story.ID, false)
		if err != nil {
			d.rt.Logger.Error("dispatch failed", logging.New().Session(d.session.ID).Story(story.ID).Gate(string(next)).Err(err)...)
			return err
		}

		switch result.Outcome {
		case dispatch.OutcomeCompleted:
			if err := d.gates.Advance(story.ID, next); err != nil {
				return err
			}
			story.CurrentGate = next
			d.checkpoint(ctx, story, model.SignalGateCompleted)
			if gate.IsTerminal(next) {
				return nil
			}

		case dispatch.OutcomeEscalated:
			return nil

		case dispatch.OutcomeTimeout, dispatch.OutcomeRejected:
			fc := classifyFailure(next, result)
			decision, derr := d.retryCtl.Evaluate(story, fc)
			if derr != nil {
				// Already escalated by an earlier failure; nothing left to do.
				return nil
			}
			d.checkpoint(ctx, story, decision.SignalKind())
			if decision.Action == retry.ActionEscalate {
				_, _ = d.rt.Bus.Publish(ctx, model.Signal{
					SessionID: d.session.ID,
					StoryID:   story.ID,
					Kind:      model.SignalEscalation,
					Producer:  "orchestrator",
					Timestamp: time.Now(),
					Payload:   map[string]any{"rule_id": decision.RuleID, "reason": decision.Reason},
				})
				return nil
			}
			// ActionRetry: loop back and redispatch the same gate.
		}
	}
}

// classifyFailure maps a dispatch outcome into the retry controller's
// failure-class vocabulary. A rejection at QA_PASSED is a QA verdict; a
// timeout is always a worker-timeout; anything else is treated as a
// worker exiting non-zero — boundary and safety-block rejections are
// already terminal by the time they reach here (the dispatcher releases
// the workspace and never retries them itself), so in practice this
// path is only reached for a worker crash or a genuine QA rejection.
func classifyFailure(next model.Gate, result dispatch.Result) retry.FailureClass {
	switch {
	case next == model.GateQAPassed:
		return retry.FailureClassQARejected
	case result.Outcome == dispatch.OutcomeTimeout:
		return retry.FailureClassWorkerTimeout
	default:
		return retry.FailureClassWorkerNonZeroExit
	}
}

// checkpoint writes a durable snapshot whenever a gate boundary is
// crossed or a retry attempt increments (spec §4.10). The triggering
// signal is published to the bus first so its Sequence is assigned by
// the same monotone counter every other signal in the session uses —
// SaveCheckpoint rejects a sequence that does not strictly advance the
// session's head (spec §6's checkpoint row contract).
func (d *sessionDriver) checkpoint(ctx context.Context, story *model.Story, triggerKind model.SignalKind) {
	trigger, err := d.rt.Bus.Publish(ctx, model.Signal{
		SessionID: d.session.ID,
		StoryID:   story.ID,
		Kind:      triggerKind,
		Producer:  "orchestrator",
		Timestamp: time.Now(),
	})
	if err != nil {
		d.rt.Logger.Warn("checkpoint trigger publish failed", logging.New().Session(d.session.ID).Err(err)...)
		return
	}
	snapshot := model.Checkpoint{
		SessionID:             d.session.ID,
		Gate:                  d.gates.Current(story.ID),
		StoryGateMap:          d.gates.Snapshot(),
		Budget:                d.rt.Budget.SessionLedger(d.session.ID),
		OutstandingDispatches: d.outstandingIDs(),
		ContextSummary:        map[string]any{"used_tokens": d.cache.UsedTokens()},
		CreatedAt:             time.Now(),
	}
	seq, err := d.rt.Store.SaveCheckpoint(ctx, d.session.ID, snapshot, trigger)
	if err != nil {
		d.rt.Logger.Warn("checkpoint write failed", logging.New().Session(d.session.ID).Err(err)...)
		return
	}
	d.session.HeadSequence = seq
}

// emergencyStop halts the session in place: no new dispatches are issued,
// and the session is marked paused for an operator to inspect (spec §6:
// "any non-empty content triggers stop on next check").
func (d *sessionDriver) emergencyStop(ctx context.Context) {
	d.pause()
	d.session.Status = model.SessionPaused
	_ = d.rt.Store.UpdateStatus(ctx, d.session.ID, model.SessionPaused)
	_ = d.rt.Store.AppendAudit(ctx, model.Signal{
		SessionID: d.session.ID,
		Kind:      model.SignalEmergencyStop,
		Producer:  "orchestrator",
		Timestamp: time.Now(),
	})
}

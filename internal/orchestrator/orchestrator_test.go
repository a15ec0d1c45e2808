package orchestrator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Boomerang-Apps/wave-sub010/internal/budget"
	"github.com/Boomerang-Apps/wave-sub010/internal/bus"
	"github.com/Boomerang-Apps/wave-sub010/internal/checkpoint"
	"github.com/Boomerang-Apps/wave-sub010/internal/config"
	"github.com/Boomerang-Apps/wave-sub010/internal/dispatch"
	"github.com/Boomerang-Apps/wave-sub010/internal/gate"
	"github.com/Boomerang-Apps/wave-sub010/internal/model"
	"github.com/Boomerang-Apps/wave-sub010/internal/safety"
	"github.com/Boomerang-Apps/wave-sub010/internal/workspace"
)

func initGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", "README.md")
	runGit(t, dir, "commit", "-m", "initial")
	return dir
}

func runGit(t *testing.T, cwd string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = cwd
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, string(out))
	}
}

// alwaysCompleteWorker is a Worker whose turn stream is immediately empty
// and whose Wait returns nil: every dispatch against it finalizes as
// OutcomeCompleted with no modified paths.
type alwaysCompleteWorker struct {
	turns chan dispatch.TurnEvent
}

func newAlwaysCompleteWorker() *alwaysCompleteWorker {
	ch := make(chan dispatch.TurnEvent)
	close(ch)
	return &alwaysCompleteWorker{turns: ch}
}

func (w *alwaysCompleteWorker) Turns() <-chan dispatch.TurnEvent { return w.turns }
func (w *alwaysCompleteWorker) Wait() error                      { return nil }
func (w *alwaysCompleteWorker) Kill() error                      { return nil }

func testRuntime(t *testing.T, repo string) *Runtime {
	t.Helper()
	cfg := config.Default()
	cfg.Worker.Command = "true"
	cfg.Context.CapTokens = 10_000
	cfg.Budget.DefaultTokenCap = 1_000_000
	cfg.Workspace.RepoRoot = repo
	cfg.Workspace.TimeoutSeconds = 10
	cfg.EmergencyStop.SentinelPath = filepath.Join(t.TempDir(), "STOP")

	return &Runtime{
		Bus:        bus.NewMemoryBus(),
		Store:      checkpoint.NewMemoryStore(),
		Safety:     safety.NewEvaluator(safety.DefaultRules()...),
		Budget:     budget.NewAccountant(budget.RateTable{"true": {InputPerToken: 0, OutputPerToken: 0}}),
		Workspaces: workspace.NewProvider(repo, 10*time.Second),
		Logger:     zap.NewNop(),
		WorkerFactory: func(ctx context.Context, req dispatch.SpawnRequest) (dispatch.Worker, error) {
			return newAlwaysCompleteWorker(), nil
		},
		Cfg: cfg,
	}
}

func oneStorySession(id string) *model.Session {
	return &model.Session{
		ID:          id,
		ProjectPath: "/srv/project",
		Stories: []*model.Story{
			{
				ID:     "story-1",
				Title:  "Single gated story",
				Domain: "shared",
				Role:   "backend-1",
				Wave:   1,
				Files:  model.FileRules{Modify: []string{"README.md"}},
			},
		},
	}
}

// TestStartSessionDrivesAllTwelveGates exercises scenario S1: one story,
// domain SHARED, a full DESIGN_VALIDATED -> DEPLOYED advance.
func TestStartSessionDrivesAllTwelveGates(t *testing.T) {
	repo := initGitRepo(t)
	rt := testRuntime(t, repo)
	orch := New(rt)

	session := oneStorySession("sess-s1")
	if err := orch.StartSession(context.Background(), session); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		sess, gates, err := orch.GetSession(session.ID)
		if err != nil {
			t.Fatalf("GetSession() error = %v", err)
		}
		if sess.Status == model.SessionCompleted {
			if gates["story-1"] != gate.Last() {
				t.Errorf("story-1 gate = %q, want %q", gates["story-1"], gate.Last())
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("session did not complete in time, status=%s gates=%v", sess.Status, gates)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStartSessionRejectsDuplicateID(t *testing.T) {
	repo := initGitRepo(t)
	rt := testRuntime(t, repo)
	orch := New(rt)
	session := oneStorySession("sess-dup")

	if err := orch.StartSession(context.Background(), session); err != nil {
		t.Fatalf("first StartSession() error = %v", err)
	}
	if err := orch.StartSession(context.Background(), oneStorySession("sess-dup")); err == nil {
		t.Error("expected ErrSessionAlreadyRunning on duplicate start")
	}
}

func TestStartSessionRejectsInvalidSession(t *testing.T) {
	rt := testRuntime(t, initGitRepo(t))
	orch := New(rt)
	if err := orch.StartSession(context.Background(), &model.Session{ID: "sess-empty"}); err == nil {
		t.Error("expected ErrInvalidSession for a session with no stories")
	}
}

func TestGetSessionUnknownReturnsNotFound(t *testing.T) {
	rt := testRuntime(t, initGitRepo(t))
	orch := New(rt)
	if _, _, err := orch.GetSession("nope"); err != ErrSessionNotFound {
		t.Errorf("GetSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestPauseSessionHaltsDispatch(t *testing.T) {
	repo := initGitRepo(t)
	rt := testRuntime(t, repo)
	orch := New(rt)
	session := oneStorySession("sess-pause")

	if err := orch.StartSession(context.Background(), session); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if err := orch.PauseSession(context.Background(), session.ID); err != nil {
		t.Fatalf("PauseSession() error = %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	sess, _, err := orch.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if sess.Status != model.SessionPaused && sess.Status != model.SessionCompleted {
		t.Errorf("status = %v, want paused (or completed if the race finished first)", sess.Status)
	}
}

func TestAbortSessionCancelsDriver(t *testing.T) {
	repo := initGitRepo(t)
	rt := testRuntime(t, repo)
	orch := New(rt)
	session := oneStorySession("sess-abort")

	if err := orch.StartSession(context.Background(), session); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if err := orch.AbortSession(context.Background(), session.ID, "operator requested"); err != nil {
		t.Fatalf("AbortSession() error = %v", err)
	}

	sess, _, err := orch.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if sess.Status != model.SessionAborted {
		t.Errorf("status = %v, want aborted", sess.Status)
	}
}

func TestEmergencyStopTripsFutureSessions(t *testing.T) {
	rt := testRuntime(t, initGitRepo(t))
	orch := New(rt)

	if err := orch.EmergencyStop(); err != nil {
		t.Fatalf("EmergencyStop() error = %v", err)
	}
	if err := orch.StartSession(context.Background(), oneStorySession("sess-after-stop")); err != ErrEmergencyStopped {
		t.Errorf("StartSession() after EmergencyStop() error = %v, want ErrEmergencyStopped", err)
	}

	data, err := os.ReadFile(rt.Cfg.EmergencyStop.SentinelPath)
	if err != nil {
		t.Fatalf("reading sentinel file: %v", err)
	}
	if len(data) == 0 {
		t.Error("sentinel file should have non-empty content")
	}
}

func TestRecoverableSessionIDsEmptyInitially(t *testing.T) {
	rt := testRuntime(t, initGitRepo(t))
	orch := New(rt)
	ids, err := orch.RecoverableSessionIDs(context.Background())
	if err != nil {
		t.Fatalf("RecoverableSessionIDs() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no recoverable sessions, got %v", ids)
	}
}

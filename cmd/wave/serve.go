package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Boomerang-Apps/wave-sub010/internal/gate"
	"github.com/Boomerang-Apps/wave-sub010/internal/logging"
	"github.com/Boomerang-Apps/wave-sub010/internal/model"
	"github.com/Boomerang-Apps/wave-sub010/internal/orchestrator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the long-lived HTTP control surface",
	Long: `serve hosts the §6 control surface over HTTP: health, start-session,
get-session, pause/resume/abort-session, and emergency-stop. The CLI's
one-shot "wave session ..." subcommands are thin HTTP clients against a
running serve instance — a session's driver goroutine only lives as long
as the process that launched it, so pause/resume/abort need a long-lived
host the way kubectl needs a running API server.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

var (
	sessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wave_sessions_started_total",
		Help: "Total sessions accepted by start-session.",
	})
	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wave_sessions_active",
		Help: "Sessions currently running or paused.",
	})
)

func init() {
	prometheus.MustRegister(sessionsStarted, sessionsActive)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := ensureRuntime(); err != nil {
		return err
	}
	orch := orchestrator.New(rt)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := recoverSessions(ctx, orch); err != nil {
		logger.Warn("session recovery sweep failed", zap.Error(err))
	}

	watchEmergencyStop(ctx, orch)

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))
	mountRoutes(router, orch)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("wave serve listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return &errFatalInfra{err}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// recoverSessions re-admits sessions left running/paused at the last
// process exit. Since the checkpoint store doesn't persist a session's
// story payload, a full restart still needs an operator-supplied session
// definition; here we only log which sessions need that (spec §4.2).
func recoverSessions(ctx context.Context, orch *orchestrator.Orchestrator) error {
	ids, err := orch.RecoverableSessionIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		logger.Warn("session left running/paused at last exit; resupply its definition to POST /sessions/{id}/recover",
			logging.New().Session(id)...)
	}
	return nil
}

// watchEmergencyStop pushes sentinel-file changes through fsnotify instead
// of relying solely on each driver's own os.Stat check before a dispatch,
// so an operator-triggered stop is observed promptly even for sessions
// between dispatches.
func watchEmergencyStop(ctx context.Context, orch *orchestrator.Orchestrator) {
	path := cfg.EmergencyStop.SentinelPath
	if path == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("emergency-stop watcher unavailable, falling back to per-dispatch polling", zap.Error(err))
		return
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		logger.Warn("watch emergency-stop sentinel dir failed", zap.String("dir", dir), zap.Error(err))
		_ = watcher.Close()
		return
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name == path && (ev.Op&(fsnotify.Write|fsnotify.Create) != 0) {
					if err := orch.EmergencyStop(); err != nil {
						logger.Error("emergency stop trip from watcher failed", zap.Error(err))
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("emergency-stop watcher error", zap.Error(err))
			}
		}
	}()
}

func mountRoutes(r chi.Router, orch *orchestrator.Orchestrator) {
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/sessions", func(w http.ResponseWriter, req *http.Request) {
		var session model.Session
		if err := json.NewDecoder(req.Body).Decode(&session); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		if err := orch.StartSession(req.Context(), &session); err != nil {
			writeOrchErr(w, err)
			return
		}
		sessionsStarted.Inc()
		sessionsActive.Inc()
		writeJSON(w, http.StatusAccepted, map[string]any{"session_id": session.ID})
	})

	r.Get("/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		session, gates, err := orch.GetSession(chi.URLParam(req, "id"))
		if err != nil {
			writeOrchErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id":     session.ID,
			"status":         session.Status,
			"head_sequence":  session.HeadSequence,
			"story_gate_map": gates,
			"budget":         session.Budget,
			"last_gate":      gate.Last(),
		})
	})

	r.Post("/sessions/{id}/pause", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		if err := orch.PauseSession(req.Context(), id); err != nil {
			writeOrchErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "status": "paused"})
	})

	r.Post("/sessions/{id}/resume", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		if err := orch.ResumeSession(req.Context(), id); err != nil {
			writeOrchErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "status": "running"})
	})

	r.Post("/sessions/{id}/abort", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		var body struct {
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)
		if err := orch.AbortSession(req.Context(), id, body.Reason); err != nil {
			writeOrchErr(w, err)
			return
		}
		sessionsActive.Dec()
		writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "status": "aborted"})
	})

	r.Post("/sessions/{id}/emergency-stop", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		var body struct {
			Reason string `json:"reason"`
			Actor  string `json:"actor"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)
		if err := orch.EmergencyStopSession(req.Context(), id, body.Reason, body.Actor); err != nil {
			writeOrchErr(w, err)
			return
		}
		sessionsActive.Dec()
		writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "status": "aborted"})
	})

	r.Post("/emergency-stop", func(w http.ResponseWriter, req *http.Request) {
		if err := orch.EmergencyStop(); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "stopped"})
	})
}

func writeOrchErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, orchestrator.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, orchestrator.ErrSessionAlreadyRunning), errors.Is(err, orchestrator.ErrInvalidSession):
		status = http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrEmergencyStopped):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

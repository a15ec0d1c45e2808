// Package orchestrator implements the Session Orchestrator (C10, spec
// §4.10): it owns one driver per running session, threads the other nine
// components through a Runtime value instead of reaching into package-level
// state (Design Notes §9), and exposes the control surface spec §6
// describes (start/get/pause/resume/abort/emergency-stop).
package orchestrator

import (
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Boomerang-Apps/wave-sub010/internal/budget"
	"github.com/Boomerang-Apps/wave-sub010/internal/bus"
	"github.com/Boomerang-Apps/wave-sub010/internal/checkpoint"
	"github.com/Boomerang-Apps/wave-sub010/internal/config"
	"github.com/Boomerang-Apps/wave-sub010/internal/dispatch"
	"github.com/Boomerang-Apps/wave-sub010/internal/safety"
	"github.com/Boomerang-Apps/wave-sub010/internal/workspace"
)

// Runtime bundles the nine dependency components every session driver
// needs. It replaces the teacher's process-wide singletons: one Runtime
// value is built at process start and threaded through every Orchestrator
// and sessionDriver (Design Notes §9).
type Runtime struct {
	Bus        bus.Bus
	Store      checkpoint.Store
	Safety     *safety.Evaluator
	Budget     *budget.Accountant
	Workspaces *workspace.Provider
	Logger     *zap.Logger

	// WorkerFactory overrides the dispatcher's default subprocess spawner.
	// Nil means every sessionDriver's Dispatcher uses
	// dispatch.DefaultWorkerFactory; tests substitute a canned worker here.
	WorkerFactory dispatch.WorkerFactory

	Cfg *config.Config
}

// defaultRateTable is used when BudgetConfig.RatesFile is empty; it covers
// the workers WAVE ships dispatch prompts against out of the box.
func defaultRateTable() budget.RateTable {
	return budget.RateTable{
		"claude-sonnet": {InputPerToken: 0.0003, OutputPerToken: 0.0015},
		"claude-opus":   {InputPerToken: 0.0015, OutputPerToken: 0.0075},
		"claude-haiku":  {InputPerToken: 0.000025, OutputPerToken: 0.000125},
	}
}

func loadRateTable(path string) (budget.RateTable, error) {
	if path == "" {
		return defaultRateTable(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read rates file: %w", err)
	}
	var table budget.RateTable
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("orchestrator: parse rates file: %w", err)
	}
	return table, nil
}

// NewRuntime constructs a Runtime from cfg, selecting the bus and
// checkpoint-store backends cfg.Bus.Driver / cfg.Store.Driver name
// (spec §9's "single Runtime value" wired to the in-memory stand-ins or
// the durable Redis/sqlite adapters by one config knob each).
func NewRuntime(cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	signalBus, err := buildBus(cfg.Bus)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	rates, err := loadRateTable(cfg.Budget.RatesFile)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		Bus:        signalBus,
		Store:      store,
		Safety:     safety.NewEvaluator(safety.DefaultRules()...),
		Budget:     budget.NewAccountant(rates),
		Workspaces: workspace.NewProvider(cfg.Workspace.RepoRoot, time.Duration(cfg.Workspace.TimeoutSeconds)*time.Second),
		Logger:     logger,
		Cfg:        cfg,
	}, nil
}

func buildBus(cfg config.BusConfig) (bus.Bus, error) {
	switch cfg.Driver {
	case "", "memory":
		return bus.NewMemoryBus(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		opts := []bus.RedisOption{}
		if cfg.ConsumerGroup != "" {
			opts = append(opts, bus.WithConsumerName(cfg.ConsumerGroup))
		}
		return bus.NewRedisBus(client, opts...), nil
	default:
		return nil, fmt.Errorf("orchestrator: unknown bus driver %q", cfg.Driver)
	}
}

func buildStore(cfg config.StoreConfig) (checkpoint.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		opts := []checkpoint.SQLiteOption{}
		if cfg.RetainCheckpoints > 0 {
			opts = append(opts, checkpoint.WithRetention(cfg.RetainCheckpoints))
		}
		return checkpoint.Open(cfg.DSN, opts...)
	case "memory":
		return checkpoint.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("orchestrator: unknown store driver %q", cfg.Driver)
	}
}

// Close releases the Runtime's backing resources (store connections, bus
// transports). Workspaces and Safety hold no closable resources.
func (rt *Runtime) Close() error {
	if rt.Store != nil {
		return rt.Store.Close()
	}
	return nil
}

// checkEmergencyStop reads the sentinel file configured on the runtime.
// Any non-empty content trips the stop (spec §6): the file's content is
// never interpreted, only its presence and size.
func (rt *Runtime) checkEmergencyStop() bool {
	path := rt.Cfg.EmergencyStop.SentinelPath
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Size() > 0
}

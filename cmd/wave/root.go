package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Boomerang-Apps/wave-sub010/internal/config"
	"github.com/Boomerang-Apps/wave-sub010/internal/orchestrator"
)

// Exit codes for the control binary (spec §6).
const (
	exitClean      = 0
	exitUsageError = 1
	exitFatalInfra = 2
	exitBadConfig  = 3
)

// errFatalInfra marks an error that should exit 2 (bus/store unreachable
// at start) rather than cobra's default usage-error path.
type errFatalInfra struct{ err error }

func (e *errFatalInfra) Error() string { return e.err.Error() }
func (e *errFatalInfra) Unwrap() error { return e.err }

// errBadConfig marks an error that should exit 3 (configuration invalid).
type errBadConfig struct{ err error }

func (e *errBadConfig) Error() string { return e.err.Error() }
func (e *errBadConfig) Unwrap() error { return e.err }

var (
	cfgFile     string
	outputFlag  string
	verboseFlag bool

	cfg    *config.Config
	rt     *orchestrator.Runtime
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "wave",
	Short: "WAVE session orchestrator control binary",
	Long: `wave drives autonomous multi-agent software-development sessions
through the twelve canonical gates (DESIGN_VALIDATED -> DEPLOYED),
checkpointing progress so a crashed process resumes exactly where it
left off.

Core commands:
  session start    Submit a new session (project path + story file)
  session get      Show a session's status, gate map, and budget ledger
  session pause    Halt a session's driver without cancelling in-flight work
  session resume   Continue a paused session
  session abort    Cancel a session's driver immediately
  session audit    Stream a session's full signal log
  emergency-stop   Trip the process-wide operator kill switch
  serve            Run the long-lived HTTP control surface`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "completion" {
			return nil
		}
		return loadConfig()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if rt != nil {
			return rt.Close()
		}
		return nil
	},
}

// loadConfig resolves cfg and logger. It is cheap (env vars and an
// optional YAML file) and runs for every subcommand but version/completion;
// the heavier Runtime (bus/store connections) is only built by
// ensureRuntime, for the subcommands that actually touch it directly
// rather than through wave serve's HTTP control surface.
func loadConfig() error {
	var flagOverrides *config.Config
	if outputFlag != "" || verboseFlag {
		flagOverrides = &config.Config{Output: outputFlag, Verbose: verboseFlag}
	}
	if cfgFile != "" {
		_ = os.Setenv("WAVE_CONFIG", cfgFile)
	}

	loaded, err := config.Load(flagOverrides)
	if err != nil {
		return &errBadConfig{fmt.Errorf("load config: %w", err)}
	}
	cfg = loaded

	if cfg.Verbose {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return nil
}

// ensureRuntime builds the Runtime (bus/store connections) on first use,
// for the subcommands that operate on WAVE's components directly — wave
// serve, session audit, safety check, budget rates. Session start/get/
// pause/resume/abort never call this: they are HTTP clients against a
// running wave serve instance.
func ensureRuntime() error {
	if rt != nil {
		return nil
	}
	built, err := orchestrator.NewRuntime(cfg, logger)
	if err != nil {
		return &errFatalInfra{fmt.Errorf("build runtime: %w", err)}
	}
	rt = built
	return nil
}

// Execute runs the command tree and returns the process exit code per
// spec §6 (0 clean, 1 usage error, 2 fatal infra error, 3 bad config).
func Execute() {
	os.Exit(run())
}

func run() int {
	err := rootCmd.Execute()
	if err == nil {
		return exitClean
	}

	fmt.Fprintln(os.Stderr, "wave:", err)

	var infraErr *errFatalInfra
	if errors.As(err, &infraErr) {
		return exitFatalInfra
	}
	var cfgErr *errBadConfig
	if errors.As(err, &cfgErr) {
		return exitBadConfig
	}
	return exitUsageError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: .wave/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "", "Output format (table, json, jsonl, markdown)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose logging")
}

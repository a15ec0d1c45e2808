// Package config provides configuration management for the wave runtime.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (WAVE_*)
// 3. Project config (.wave/config.yaml in cwd)
// 4. Home config (~/.wave/config.yaml)
// 5. Defaults
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all wave runtime configuration. A *Config is resolved once
// at process start and threaded through every component as the Runtime
// value described in the design notes — no component reaches back into
// package-level config state.
type Config struct {
	// Output controls the default output format (table, json, jsonl, markdown).
	Output string `yaml:"output" json:"output"`

	// BaseDir is the wave data directory (default: .wave).
	BaseDir string `yaml:"base_dir" json:"base_dir"`

	// Verbose enables verbose output.
	Verbose bool `yaml:"verbose" json:"verbose"`

	// Bus configures the signal bus (C1).
	Bus BusConfig `yaml:"bus" json:"bus"`

	// Store configures the checkpoint store (C2).
	Store StoreConfig `yaml:"store" json:"store"`

	// Budget configures the budget accountant (C5).
	Budget BudgetConfig `yaml:"budget" json:"budget"`

	// Worker configures the agent dispatcher's subprocess worker (C8).
	Worker WorkerConfig `yaml:"worker" json:"worker"`

	// Workspace configures the workspace provider (C6).
	Workspace WorkspaceConfig `yaml:"workspace" json:"workspace"`

	// Context configures the context governor (C4).
	Context ContextConfig `yaml:"context" json:"context"`

	// Retry configures the retry controller (C9).
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// EmergencyStop configures the operator emergency-stop sentinel.
	EmergencyStop EmergencyStopConfig `yaml:"emergency_stop" json:"emergency_stop"`

	// Server configures the `wave serve` HTTP control surface.
	Server ServerConfig `yaml:"server" json:"server"`
}

// BusConfig holds signal bus settings.
type BusConfig struct {
	// Driver selects the bus implementation. Values: "memory" (default), "redis".
	Driver string `yaml:"driver" json:"driver"`
	// RedisAddr is the Redis address used when Driver is "redis".
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
	// RedisPassword authenticates against the Redis address above.
	RedisPassword string `yaml:"redis_password" json:"redis_password"`
	// ConsumerGroup names the consumer group drivers join when reading
	// a session's stream, so a crashed driver resumes from its own offset.
	ConsumerGroup string `yaml:"consumer_group" json:"consumer_group"`
}

// StoreConfig holds checkpoint store settings.
type StoreConfig struct {
	// Driver selects the store implementation. Values: "sqlite" (default), "memory".
	Driver string `yaml:"driver" json:"driver"`
	// DSN is the sqlite database path (or DSN) when Driver is "sqlite".
	DSN string `yaml:"dsn" json:"dsn"`
	// RetainCheckpoints caps how many checkpoint rows are kept per session;
	// spec §6 requires only the latest five.
	RetainCheckpoints int `yaml:"retain_checkpoints" json:"retain_checkpoints"`
}

// BudgetConfig holds budget accountant settings.
type BudgetConfig struct {
	// RatesFile points to a YAML file of per-model token rates. Empty
	// means the accountant falls back to its built-in rate table.
	RatesFile string `yaml:"rates_file" json:"rates_file"`
	// DefaultTokenCap is the session-level token cap applied when a story
	// does not set its own Thresholds.MaxTokens.
	DefaultTokenCap int `yaml:"default_token_cap" json:"default_token_cap"`
	// DefaultCostCapCents is the session-level cost cap in cents; 0 means
	// no cost cap (only the token cap applies).
	DefaultCostCapCents int `yaml:"default_cost_cap_cents" json:"default_cost_cap_cents"`
}

// WorkerConfig holds the subprocess worker invocation settings.
type WorkerConfig struct {
	// Command is the executable invoked to run a dispatched turn.
	// Default: "claude".
	Command string `yaml:"command" json:"command"`
	// Args are extra arguments appended after the dispatcher's own flags.
	Args []string `yaml:"args" json:"args"`
	// TimeoutMinutes bounds a single worker invocation when a story does
	// not set its own Thresholds.MaxDurationMinutes.
	TimeoutMinutes int `yaml:"timeout_minutes" json:"timeout_minutes"`
}

// WorkspaceConfig holds workspace provider settings.
type WorkspaceConfig struct {
	// RepoRoot is the git repository root that workspaces are allocated from.
	RepoRoot string `yaml:"repo_root" json:"repo_root"`
	// TimeoutSeconds bounds worktree allocate/release git operations.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// ContextConfig holds context governor settings.
type ContextConfig struct {
	// CapTokens is the LRU-with-pinning cache's token budget.
	CapTokens int `yaml:"cap_tokens" json:"cap_tokens"`
}

// RetryConfig holds retry controller settings.
type RetryConfig struct {
	// MaxAttempts is the system-default retry bound used when a story does
	// not set its own Thresholds.MaxRetries.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// EmergencyStopConfig holds operator emergency-stop sentinel settings.
type EmergencyStopConfig struct {
	// SentinelPath is the file checked before every dispatch and between
	// every worker turn; any non-empty content triggers a stop.
	SentinelPath string `yaml:"sentinel_path" json:"sentinel_path"`
	// PollIntervalSeconds is how often a watcher re-checks the sentinel
	// outside of the dispatch/turn checkpoints above.
	PollIntervalSeconds int `yaml:"poll_interval_seconds" json:"poll_interval_seconds"`
}

// ServerConfig holds `wave serve` HTTP control surface settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr" json:"addr"`
}

// Default config values (used in resolution and validation).
const (
	defaultOutput  = "table"
	defaultBaseDir = ".wave"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output:  defaultOutput,
		BaseDir: defaultBaseDir,
		Verbose: false,
		Bus: BusConfig{
			Driver:        "memory",
			RedisAddr:     "localhost:6379",
			ConsumerGroup: "wave",
		},
		Store: StoreConfig{
			Driver:            "sqlite",
			DSN:               filepath.Join(defaultBaseDir, "wave.db"),
			RetainCheckpoints: 5,
		},
		Budget: BudgetConfig{
			DefaultTokenCap:     200_000,
			DefaultCostCapCents: 0,
		},
		Worker: WorkerConfig{
			Command:        "claude",
			TimeoutMinutes: 30,
		},
		Workspace: WorkspaceConfig{
			RepoRoot:       ".",
			TimeoutSeconds: 30,
		},
		Context: ContextConfig{
			CapTokens: 100_000,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
		},
		EmergencyStop: EmergencyStopConfig{
			SentinelPath:        filepath.Join(defaultBaseDir, "STOP"),
			PollIntervalSeconds: 2,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	// Load home config
	homeConfig, _ := loadFromPath(homeConfigPath())
	if homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	// Load project config
	projectConfig, _ := loadFromPath(projectConfigPath())
	if projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	// Apply environment variables
	cfg = applyEnv(cfg)

	// Apply flag overrides
	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wave", "config.yaml")
}

// projectConfigPath returns the project config path.
func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("WAVE_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".wave", "config.yaml")
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("WAVE_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("WAVE_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := os.Getenv("WAVE_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("WAVE_BUS_DRIVER"); v != "" {
		cfg.Bus.Driver = v
	}
	if v := os.Getenv("WAVE_BUS_REDIS_ADDR"); v != "" {
		cfg.Bus.RedisAddr = v
	}
	if v := os.Getenv("WAVE_BUS_CONSUMER_GROUP"); v != "" {
		cfg.Bus.ConsumerGroup = v
	}
	if v := os.Getenv("WAVE_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("WAVE_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if n, ok := getEnvInt("WAVE_BUDGET_TOKEN_CAP"); ok {
		cfg.Budget.DefaultTokenCap = n
	}
	if n, ok := getEnvInt("WAVE_BUDGET_COST_CAP_CENTS"); ok {
		cfg.Budget.DefaultCostCapCents = n
	}
	if v := os.Getenv("WAVE_WORKER_COMMAND"); v != "" {
		cfg.Worker.Command = v
	}
	if n, ok := getEnvInt("WAVE_WORKER_TIMEOUT_MINUTES"); ok {
		cfg.Worker.TimeoutMinutes = n
	}
	if v := os.Getenv("WAVE_WORKSPACE_REPO_ROOT"); v != "" {
		cfg.Workspace.RepoRoot = v
	}
	if n, ok := getEnvInt("WAVE_WORKSPACE_TIMEOUT_SECONDS"); ok {
		cfg.Workspace.TimeoutSeconds = n
	}
	if n, ok := getEnvInt("WAVE_CONTEXT_CAP_TOKENS"); ok {
		cfg.Context.CapTokens = n
	}
	if n, ok := getEnvInt("WAVE_RETRY_MAX_ATTEMPTS"); ok {
		cfg.Retry.MaxAttempts = n
	}
	if v := os.Getenv("WAVE_EMERGENCY_STOP_PATH"); v != "" {
		cfg.EmergencyStop.SentinelPath = v
	}
	if v := os.Getenv("WAVE_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	return cfg
}

// merge merges src into dst, with src values taking precedence.
// For booleans, we need explicit tracking via pointer or separate "set" flag.
func merge(dst, src *Config) *Config {
	if src.Output != "" {
		dst.Output = src.Output
	}
	if src.BaseDir != "" {
		dst.BaseDir = src.BaseDir
	}
	if src.Verbose {
		dst.Verbose = true
	}

	if src.Bus.Driver != "" {
		dst.Bus.Driver = src.Bus.Driver
	}
	if src.Bus.RedisAddr != "" {
		dst.Bus.RedisAddr = src.Bus.RedisAddr
	}
	if src.Bus.RedisPassword != "" {
		dst.Bus.RedisPassword = src.Bus.RedisPassword
	}
	if src.Bus.ConsumerGroup != "" {
		dst.Bus.ConsumerGroup = src.Bus.ConsumerGroup
	}

	if src.Store.Driver != "" {
		dst.Store.Driver = src.Store.Driver
	}
	if src.Store.DSN != "" {
		dst.Store.DSN = src.Store.DSN
	}
	if src.Store.RetainCheckpoints != 0 {
		dst.Store.RetainCheckpoints = src.Store.RetainCheckpoints
	}

	if src.Budget.RatesFile != "" {
		dst.Budget.RatesFile = src.Budget.RatesFile
	}
	if src.Budget.DefaultTokenCap != 0 {
		dst.Budget.DefaultTokenCap = src.Budget.DefaultTokenCap
	}
	if src.Budget.DefaultCostCapCents != 0 {
		dst.Budget.DefaultCostCapCents = src.Budget.DefaultCostCapCents
	}

	if src.Worker.Command != "" {
		dst.Worker.Command = src.Worker.Command
	}
	if len(src.Worker.Args) != 0 {
		dst.Worker.Args = src.Worker.Args
	}
	if src.Worker.TimeoutMinutes != 0 {
		dst.Worker.TimeoutMinutes = src.Worker.TimeoutMinutes
	}

	if src.Workspace.RepoRoot != "" {
		dst.Workspace.RepoRoot = src.Workspace.RepoRoot
	}
	if src.Workspace.TimeoutSeconds != 0 {
		dst.Workspace.TimeoutSeconds = src.Workspace.TimeoutSeconds
	}

	if src.Context.CapTokens != 0 {
		dst.Context.CapTokens = src.Context.CapTokens
	}

	if src.Retry.MaxAttempts != 0 {
		dst.Retry.MaxAttempts = src.Retry.MaxAttempts
	}

	if src.EmergencyStop.SentinelPath != "" {
		dst.EmergencyStop.SentinelPath = src.EmergencyStop.SentinelPath
	}
	if src.EmergencyStop.PollIntervalSeconds != 0 {
		dst.EmergencyStop.PollIntervalSeconds = src.EmergencyStop.PollIntervalSeconds
	}

	if src.Server.Addr != "" {
		dst.Server.Addr = src.Server.Addr
	}

	return dst
}

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.wave/config.yaml"
	SourceProject Source = ".wave/config.yaml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

// getEnvString returns the value and whether the env var was set.
func getEnvString(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

// getEnvBool returns the boolean value and whether it was truthy.
func getEnvBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "true" || v == "1" {
		return true, true
	}
	return false, false
}

// getEnvInt returns the integer value and whether it parsed successfully.
func getEnvInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// resolveStringField resolves a string through the precedence chain.
// Returns the resolved value and its source.
func resolveStringField(home, project, env, flag, def string) resolved {
	// Start with default
	result := resolved{Value: def, Source: SourceDefault}

	// Home config overrides default
	if home != "" {
		result = resolved{Value: home, Source: SourceHome}
	}

	// Project config overrides home
	if project != "" {
		result = resolved{Value: project, Source: SourceProject}
	}

	// Environment overrides project
	if env != "" {
		result = resolved{Value: env, Source: SourceEnv}
	}

	// Flag overrides everything (if set)
	if flag != "" {
		result = resolved{Value: flag, Source: SourceFlag}
	}

	return result
}

// ResolvedConfig shows config values with their sources.
type ResolvedConfig struct {
	Output        resolved `json:"output"`
	BaseDir       resolved `json:"base_dir"`
	Verbose       resolved `json:"verbose"`
	BusDriver     resolved `json:"bus_driver"`
	StoreDriver   resolved `json:"store_driver"`
	WorkerCommand resolved `json:"worker_command"`
}

type resolved struct {
	Value  interface{} `json:"value"`
	Source Source      `json:"source"`
}

// Resolve returns configuration with source tracking.
// Uses precedence chain: flags > env > project > home > defaults.
func Resolve(flagOutput, flagBaseDir string, flagVerbose bool) *ResolvedConfig {
	// Load configs once
	homeConfig, _ := loadFromPath(homeConfigPath())
	projectConfig, _ := loadFromPath(projectConfigPath())

	// Get config values (empty string if not set)
	var homeOutput, homeBaseDir, homeBusDriver, homeStoreDriver, homeWorkerCommand string
	var homeVerbose bool
	if homeConfig != nil {
		homeOutput = homeConfig.Output
		homeBaseDir = homeConfig.BaseDir
		homeVerbose = homeConfig.Verbose
		homeBusDriver = homeConfig.Bus.Driver
		homeStoreDriver = homeConfig.Store.Driver
		homeWorkerCommand = homeConfig.Worker.Command
	}

	var projectOutput, projectBaseDir, projectBusDriver, projectStoreDriver, projectWorkerCommand string
	var projectVerbose bool
	if projectConfig != nil {
		projectOutput = projectConfig.Output
		projectBaseDir = projectConfig.BaseDir
		projectVerbose = projectConfig.Verbose
		projectBusDriver = projectConfig.Bus.Driver
		projectStoreDriver = projectConfig.Store.Driver
		projectWorkerCommand = projectConfig.Worker.Command
	}

	// Get environment values
	envOutput, _ := getEnvString("WAVE_OUTPUT")
	envBaseDir, _ := getEnvString("WAVE_BASE_DIR")
	envVerbose, envVerboseSet := getEnvBool("WAVE_VERBOSE")
	envBusDriver, _ := getEnvString("WAVE_BUS_DRIVER")
	envStoreDriver, _ := getEnvString("WAVE_STORE_DRIVER")
	envWorkerCommand, _ := getEnvString("WAVE_WORKER_COMMAND")

	// Resolve string fields through precedence chain
	rc := &ResolvedConfig{
		Output:        resolveStringField(homeOutput, projectOutput, envOutput, flagOutput, defaultOutput),
		BaseDir:       resolveStringField(homeBaseDir, projectBaseDir, envBaseDir, flagBaseDir, defaultBaseDir),
		Verbose:       resolved{Value: false, Source: SourceDefault},
		BusDriver:     resolveStringField(homeBusDriver, projectBusDriver, envBusDriver, "", "memory"),
		StoreDriver:   resolveStringField(homeStoreDriver, projectStoreDriver, envStoreDriver, "", "sqlite"),
		WorkerCommand: resolveStringField(homeWorkerCommand, projectWorkerCommand, envWorkerCommand, "", "claude"),
	}

	// Resolve verbose (boolean with OR semantics through chain)
	if homeVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceHome}
	}
	if projectVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceProject}
	}
	if envVerboseSet && envVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceEnv}
	}
	if flagVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceFlag}
	}

	return rc
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Output != "table" {
		t.Errorf("Default Output = %q, want %q", cfg.Output, "table")
	}
	if cfg.BaseDir != ".wave" {
		t.Errorf("Default BaseDir = %q, want %q", cfg.BaseDir, ".wave")
	}
	if cfg.Verbose {
		t.Error("Default Verbose = true, want false")
	}
	if cfg.Bus.Driver != "memory" {
		t.Errorf("Default Bus.Driver = %q, want %q", cfg.Bus.Driver, "memory")
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Default Store.Driver = %q, want %q", cfg.Store.Driver, "sqlite")
	}
	if cfg.Store.RetainCheckpoints != 5 {
		t.Errorf("Default Store.RetainCheckpoints = %d, want %d", cfg.Store.RetainCheckpoints, 5)
	}
	if cfg.Worker.Command != "claude" {
		t.Errorf("Default Worker.Command = %q, want %q", cfg.Worker.Command, "claude")
	}
	if cfg.Context.CapTokens != 100_000 {
		t.Errorf("Default Context.CapTokens = %d, want %d", cfg.Context.CapTokens, 100_000)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Default Retry.MaxAttempts = %d, want %d", cfg.Retry.MaxAttempts, 3)
	}
}

func TestMerge(t *testing.T) {
	dst := Default()
	src := &Config{
		Output:  "json",
		BaseDir: "/custom/path",
	}

	result := merge(dst, src)

	if result.Output != "json" {
		t.Errorf("merge Output = %q, want %q", result.Output, "json")
	}
	if result.BaseDir != "/custom/path" {
		t.Errorf("merge BaseDir = %q, want %q", result.BaseDir, "/custom/path")
	}
	// Defaults should be preserved when not overridden
	if result.Retry.MaxAttempts != 3 {
		t.Errorf("merge preserved Retry.MaxAttempts = %d, want %d", result.Retry.MaxAttempts, 3)
	}
}

func TestMerge_VerboseOverride(t *testing.T) {
	dst := Default()
	src := &Config{Verbose: true}

	result := merge(dst, src)

	if !result.Verbose {
		t.Error("merge Verbose = false, want true")
	}
}

func TestMerge_Bus(t *testing.T) {
	dst := Default()
	src := &Config{
		Bus: BusConfig{
			Driver:        "redis",
			RedisAddr:     "redis.internal:6379",
			ConsumerGroup: "custom-group",
		},
	}

	result := merge(dst, src)

	if result.Bus.Driver != "redis" {
		t.Errorf("merge Bus.Driver = %q, want %q", result.Bus.Driver, "redis")
	}
	if result.Bus.RedisAddr != "redis.internal:6379" {
		t.Errorf("merge Bus.RedisAddr = %q, want %q", result.Bus.RedisAddr, "redis.internal:6379")
	}
	if result.Bus.ConsumerGroup != "custom-group" {
		t.Errorf("merge Bus.ConsumerGroup = %q, want %q", result.Bus.ConsumerGroup, "custom-group")
	}
}

func TestMerge_Store(t *testing.T) {
	dst := Default()
	src := &Config{
		Store: StoreConfig{
			Driver:            "memory",
			DSN:               "/tmp/wave.db",
			RetainCheckpoints: 10,
		},
	}

	result := merge(dst, src)

	if result.Store.Driver != "memory" {
		t.Errorf("merge Store.Driver = %q, want %q", result.Store.Driver, "memory")
	}
	if result.Store.DSN != "/tmp/wave.db" {
		t.Errorf("merge Store.DSN = %q, want %q", result.Store.DSN, "/tmp/wave.db")
	}
	if result.Store.RetainCheckpoints != 10 {
		t.Errorf("merge Store.RetainCheckpoints = %d, want %d", result.Store.RetainCheckpoints, 10)
	}
}

func TestMerge_Budget(t *testing.T) {
	dst := Default()
	src := &Config{
		Budget: BudgetConfig{
			RatesFile:           "/etc/wave/rates.yaml",
			DefaultTokenCap:     500_000,
			DefaultCostCapCents: 10_000,
		},
	}

	result := merge(dst, src)

	if result.Budget.RatesFile != "/etc/wave/rates.yaml" {
		t.Errorf("merge Budget.RatesFile = %q, want %q", result.Budget.RatesFile, "/etc/wave/rates.yaml")
	}
	if result.Budget.DefaultTokenCap != 500_000 {
		t.Errorf("merge Budget.DefaultTokenCap = %d, want %d", result.Budget.DefaultTokenCap, 500_000)
	}
	if result.Budget.DefaultCostCapCents != 10_000 {
		t.Errorf("merge Budget.DefaultCostCapCents = %d, want %d", result.Budget.DefaultCostCapCents, 10_000)
	}
}

func TestMerge_Worker(t *testing.T) {
	dst := Default()
	src := &Config{
		Worker: WorkerConfig{
			Command:        "codex",
			Args:           []string{"--flag"},
			TimeoutMinutes: 45,
		},
	}

	result := merge(dst, src)

	if result.Worker.Command != "codex" {
		t.Errorf("merge Worker.Command = %q, want %q", result.Worker.Command, "codex")
	}
	if len(result.Worker.Args) != 1 || result.Worker.Args[0] != "--flag" {
		t.Errorf("merge Worker.Args = %v, want [--flag]", result.Worker.Args)
	}
	if result.Worker.TimeoutMinutes != 45 {
		t.Errorf("merge Worker.TimeoutMinutes = %d, want %d", result.Worker.TimeoutMinutes, 45)
	}
}

func TestMerge_Workspace(t *testing.T) {
	dst := Default()
	src := &Config{
		Workspace: WorkspaceConfig{
			RepoRoot:       "/srv/repo",
			TimeoutSeconds: 60,
		},
	}

	result := merge(dst, src)

	if result.Workspace.RepoRoot != "/srv/repo" {
		t.Errorf("merge Workspace.RepoRoot = %q, want %q", result.Workspace.RepoRoot, "/srv/repo")
	}
	if result.Workspace.TimeoutSeconds != 60 {
		t.Errorf("merge Workspace.TimeoutSeconds = %d, want %d", result.Workspace.TimeoutSeconds, 60)
	}
}

func TestMerge_ContextAndRetry(t *testing.T) {
	dst := Default()
	src := &Config{
		Context: ContextConfig{CapTokens: 50_000},
		Retry:   RetryConfig{MaxAttempts: 5},
	}

	result := merge(dst, src)

	if result.Context.CapTokens != 50_000 {
		t.Errorf("merge Context.CapTokens = %d, want %d", result.Context.CapTokens, 50_000)
	}
	if result.Retry.MaxAttempts != 5 {
		t.Errorf("merge Retry.MaxAttempts = %d, want %d", result.Retry.MaxAttempts, 5)
	}
}

func TestMerge_EmergencyStopAndServer(t *testing.T) {
	dst := Default()
	src := &Config{
		EmergencyStop: EmergencyStopConfig{
			SentinelPath:        "/tmp/STOP",
			PollIntervalSeconds: 5,
		},
		Server: ServerConfig{Addr: ":9090"},
	}

	result := merge(dst, src)

	if result.EmergencyStop.SentinelPath != "/tmp/STOP" {
		t.Errorf("merge EmergencyStop.SentinelPath = %q, want %q", result.EmergencyStop.SentinelPath, "/tmp/STOP")
	}
	if result.EmergencyStop.PollIntervalSeconds != 5 {
		t.Errorf("merge EmergencyStop.PollIntervalSeconds = %d, want %d", result.EmergencyStop.PollIntervalSeconds, 5)
	}
	if result.Server.Addr != ":9090" {
		t.Errorf("merge Server.Addr = %q, want %q", result.Server.Addr, ":9090")
	}
}

func TestApplyEnv(t *testing.T) {
	origOutput := os.Getenv("WAVE_OUTPUT")
	origVerbose := os.Getenv("WAVE_VERBOSE")
	origBusDriver := os.Getenv("WAVE_BUS_DRIVER")
	defer func() {
		_ = os.Setenv("WAVE_OUTPUT", origOutput)       //nolint:errcheck // test env restore
		_ = os.Setenv("WAVE_VERBOSE", origVerbose)     //nolint:errcheck // test env restore
		_ = os.Setenv("WAVE_BUS_DRIVER", origBusDriver) //nolint:errcheck // test env restore
	}()

	_ = os.Setenv("WAVE_OUTPUT", "yaml")      //nolint:errcheck // test env setup
	_ = os.Setenv("WAVE_VERBOSE", "true")     //nolint:errcheck // test env setup
	_ = os.Setenv("WAVE_BUS_DRIVER", "redis") //nolint:errcheck // test env setup

	cfg := Default()
	cfg = applyEnv(cfg)

	if cfg.Output != "yaml" {
		t.Errorf("applyEnv Output = %q, want %q", cfg.Output, "yaml")
	}
	if !cfg.Verbose {
		t.Error("applyEnv Verbose = false, want true")
	}
	if cfg.Bus.Driver != "redis" {
		t.Errorf("applyEnv Bus.Driver = %q, want %q", cfg.Bus.Driver, "redis")
	}
}

func TestApplyEnv_IntFields(t *testing.T) {
	t.Setenv("WAVE_OUTPUT", "")
	t.Setenv("WAVE_BASE_DIR", "")
	t.Setenv("WAVE_VERBOSE", "")
	t.Setenv("WAVE_BUDGET_TOKEN_CAP", "750000")
	t.Setenv("WAVE_CONTEXT_CAP_TOKENS", "25000")
	t.Setenv("WAVE_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("WAVE_WORKSPACE_TIMEOUT_SECONDS", "90")
	t.Setenv("WAVE_WORKER_TIMEOUT_MINUTES", "15")

	cfg := Default()
	cfg = applyEnv(cfg)

	if cfg.Budget.DefaultTokenCap != 750000 {
		t.Errorf("applyEnv Budget.DefaultTokenCap = %d, want %d", cfg.Budget.DefaultTokenCap, 750000)
	}
	if cfg.Context.CapTokens != 25000 {
		t.Errorf("applyEnv Context.CapTokens = %d, want %d", cfg.Context.CapTokens, 25000)
	}
	if cfg.Retry.MaxAttempts != 7 {
		t.Errorf("applyEnv Retry.MaxAttempts = %d, want %d", cfg.Retry.MaxAttempts, 7)
	}
	if cfg.Workspace.TimeoutSeconds != 90 {
		t.Errorf("applyEnv Workspace.TimeoutSeconds = %d, want %d", cfg.Workspace.TimeoutSeconds, 90)
	}
	if cfg.Worker.TimeoutMinutes != 15 {
		t.Errorf("applyEnv Worker.TimeoutMinutes = %d, want %d", cfg.Worker.TimeoutMinutes, 15)
	}
}

func TestApplyEnv_InvalidIntIgnored(t *testing.T) {
	t.Setenv("WAVE_RETRY_MAX_ATTEMPTS", "not-a-number")

	cfg := Default()
	cfg = applyEnv(cfg)

	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("applyEnv with invalid int should preserve default, got %d", cfg.Retry.MaxAttempts)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
output: json
base_dir: /custom/wave
verbose: true
bus:
  driver: redis
  redis_addr: redis.internal:6379
worker:
  command: codex
  timeout_minutes: 45
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFromPath(configPath)
	if err != nil {
		t.Fatalf("loadFromPath() error = %v", err)
	}

	if cfg.Output != "json" {
		t.Errorf("loadFromPath Output = %q, want %q", cfg.Output, "json")
	}
	if cfg.BaseDir != "/custom/wave" {
		t.Errorf("loadFromPath BaseDir = %q, want %q", cfg.BaseDir, "/custom/wave")
	}
	if !cfg.Verbose {
		t.Error("loadFromPath Verbose = false, want true")
	}
	if cfg.Bus.Driver != "redis" {
		t.Errorf("loadFromPath Bus.Driver = %q, want %q", cfg.Bus.Driver, "redis")
	}
	if cfg.Worker.Command != "codex" {
		t.Errorf("loadFromPath Worker.Command = %q, want %q", cfg.Worker.Command, "codex")
	}
	if cfg.Worker.TimeoutMinutes != 45 {
		t.Errorf("loadFromPath Worker.TimeoutMinutes = %d, want %d", cfg.Worker.TimeoutMinutes, 45)
	}
}

func TestLoadFromPath_NotExists(t *testing.T) {
	cfg, err := loadFromPath("/nonexistent/config.yaml")
	if cfg != nil {
		t.Errorf("loadFromPath for nonexistent file should return nil config")
	}
	if err == nil {
		t.Errorf("loadFromPath for nonexistent file should return error")
	}
}

func TestLoadFromPath_Empty(t *testing.T) {
	cfg, err := loadFromPath("")
	if cfg != nil || err != nil {
		t.Errorf("loadFromPath(\"\") = %v, %v; want nil, nil", cfg, err)
	}
}

func TestLoadFromPath_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `{{{invalid yaml`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFromPath(configPath)
	if err == nil {
		t.Error("loadFromPath for invalid YAML should return error")
	}
	if cfg != nil {
		t.Error("loadFromPath for invalid YAML should return nil config")
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("WAVE_CONFIG", "")
	rc := Resolve("json", "/flag/path", true)

	if rc.Output.Value != "json" {
		t.Errorf("Resolve Output.Value = %v, want %q", rc.Output.Value, "json")
	}
	if rc.Output.Source != SourceFlag {
		t.Errorf("Resolve Output.Source = %v, want %v", rc.Output.Source, SourceFlag)
	}
	if rc.BaseDir.Value != "/flag/path" {
		t.Errorf("Resolve BaseDir.Value = %v, want %q", rc.BaseDir.Value, "/flag/path")
	}
	if rc.Verbose.Value != true {
		t.Errorf("Resolve Verbose.Value = %v, want true", rc.Verbose.Value)
	}
}

func TestResolve_Defaults(t *testing.T) {
	t.Setenv("WAVE_CONFIG", "")
	for _, key := range []string{"WAVE_OUTPUT", "WAVE_BASE_DIR", "WAVE_VERBOSE", "WAVE_BUS_DRIVER", "WAVE_STORE_DRIVER", "WAVE_WORKER_COMMAND"} {
		t.Setenv(key, "")
	}

	rc := Resolve("", "", false)

	if rc.Output.Value != "table" {
		t.Errorf("Resolve default Output.Value = %v, want %q", rc.Output.Value, "table")
	}
	if rc.Verbose.Value != false {
		t.Errorf("Resolve default Verbose.Value = %v, want false", rc.Verbose.Value)
	}
	if rc.BusDriver.Value != "memory" {
		t.Errorf("Resolve default BusDriver.Value = %v, want %q", rc.BusDriver.Value, "memory")
	}
	if rc.StoreDriver.Value != "sqlite" {
		t.Errorf("Resolve default StoreDriver.Value = %v, want %q", rc.StoreDriver.Value, "sqlite")
	}
	if rc.WorkerCommand.Value != "claude" {
		t.Errorf("Resolve default WorkerCommand.Value = %v, want %q", rc.WorkerCommand.Value, "claude")
	}
}

func TestResolve_EnvOverride(t *testing.T) {
	t.Setenv("WAVE_CONFIG", "")
	t.Setenv("WAVE_OUTPUT", "yaml")
	t.Setenv("WAVE_BASE_DIR", "/env/path")
	t.Setenv("WAVE_VERBOSE", "1")
	t.Setenv("WAVE_BUS_DRIVER", "redis")
	t.Setenv("WAVE_STORE_DRIVER", "memory")
	t.Setenv("WAVE_WORKER_COMMAND", "codex")

	rc := Resolve("", "", false)

	if rc.Output.Value != "yaml" || rc.Output.Source != SourceEnv {
		t.Errorf("Resolve env Output = (%v, %v), want (yaml, %v)", rc.Output.Value, rc.Output.Source, SourceEnv)
	}
	if rc.BaseDir.Value != "/env/path" || rc.BaseDir.Source != SourceEnv {
		t.Errorf("Resolve env BaseDir = (%v, %v), want (/env/path, %v)", rc.BaseDir.Value, rc.BaseDir.Source, SourceEnv)
	}
	if rc.Verbose.Value != true || rc.Verbose.Source != SourceEnv {
		t.Errorf("Resolve env Verbose = (%v, %v), want (true, %v)", rc.Verbose.Value, rc.Verbose.Source, SourceEnv)
	}
	if rc.BusDriver.Value != "redis" || rc.BusDriver.Source != SourceEnv {
		t.Errorf("Resolve env BusDriver = (%v, %v), want (redis, %v)", rc.BusDriver.Value, rc.BusDriver.Source, SourceEnv)
	}
	if rc.StoreDriver.Value != "memory" || rc.StoreDriver.Source != SourceEnv {
		t.Errorf("Resolve env StoreDriver = (%v, %v), want (memory, %v)", rc.StoreDriver.Value, rc.StoreDriver.Source, SourceEnv)
	}
	if rc.WorkerCommand.Value != "codex" || rc.WorkerCommand.Source != SourceEnv {
		t.Errorf("Resolve env WorkerCommand = (%v, %v), want (codex, %v)", rc.WorkerCommand.Value, rc.WorkerCommand.Source, SourceEnv)
	}
}

func TestResolveStringField(t *testing.T) {
	tests := []struct {
		name       string
		home       string
		project    string
		env        string
		flag       string
		def        string
		wantValue  string
		wantSource Source
	}{
		{
			name:       "default only",
			def:        "table",
			wantValue:  "table",
			wantSource: SourceDefault,
		},
		{
			name:       "home overrides default",
			home:       "json",
			def:        "table",
			wantValue:  "json",
			wantSource: SourceHome,
		},
		{
			name:       "project overrides home",
			home:       "json",
			project:    "yaml",
			def:        "table",
			wantValue:  "yaml",
			wantSource: SourceProject,
		},
		{
			name:       "env overrides project",
			home:       "json",
			project:    "yaml",
			env:        "csv",
			def:        "table",
			wantValue:  "csv",
			wantSource: SourceEnv,
		},
		{
			name:       "flag overrides everything",
			home:       "json",
			project:    "yaml",
			env:        "csv",
			flag:       "text",
			def:        "table",
			wantValue:  "text",
			wantSource: SourceFlag,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveStringField(tt.home, tt.project, tt.env, tt.flag, tt.def)
			if got.Value != tt.wantValue {
				t.Errorf("resolveStringField() Value = %v, want %v", got.Value, tt.wantValue)
			}
			if got.Source != tt.wantSource {
				t.Errorf("resolveStringField() Source = %v, want %v", got.Source, tt.wantSource)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		wantBool bool
		wantSet  bool
	}{
		{name: "true string", envVal: "true", wantBool: true, wantSet: true},
		{name: "1 string", envVal: "1", wantBool: true, wantSet: true},
		{name: "false string", envVal: "false", wantBool: false, wantSet: false},
		{name: "empty string", envVal: "", wantBool: false, wantSet: false},
		{name: "random string", envVal: "yes", wantBool: false, wantSet: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL_KEY", tt.envVal)
			gotBool, gotSet := getEnvBool("TEST_BOOL_KEY")
			if gotBool != tt.wantBool {
				t.Errorf("getEnvBool() bool = %v, want %v", gotBool, tt.wantBool)
			}
			if gotSet != tt.wantSet {
				t.Errorf("getEnvBool() set = %v, want %v", gotSet, tt.wantSet)
			}
		})
	}
}

func TestGetEnvString(t *testing.T) {
	tests := []struct {
		name    string
		envVal  string
		wantVal string
		wantSet bool
	}{
		{name: "set value", envVal: "hello", wantVal: "hello", wantSet: true},
		{name: "empty value", envVal: "", wantVal: "", wantSet: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_STR_KEY", tt.envVal)
			gotVal, gotSet := getEnvString("TEST_STR_KEY")
			if gotVal != tt.wantVal {
				t.Errorf("getEnvString() val = %q, want %q", gotVal, tt.wantVal)
			}
			if gotSet != tt.wantSet {
				t.Errorf("getEnvString() set = %v, want %v", gotSet, tt.wantSet)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name    string
		envVal  string
		wantInt int
		wantSet bool
	}{
		{name: "valid int", envVal: "42", wantInt: 42, wantSet: true},
		{name: "zero", envVal: "0", wantInt: 0, wantSet: true},
		{name: "empty", envVal: "", wantInt: 0, wantSet: false},
		{name: "non-numeric", envVal: "abc", wantInt: 0, wantSet: false},
		{name: "negative sign rejected", envVal: "-5", wantInt: 0, wantSet: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT_KEY", tt.envVal)
			gotInt, gotSet := getEnvInt("TEST_INT_KEY")
			if gotInt != tt.wantInt {
				t.Errorf("getEnvInt() int = %d, want %d", gotInt, tt.wantInt)
			}
			if gotSet != tt.wantSet {
				t.Errorf("getEnvInt() set = %v, want %v", gotSet, tt.wantSet)
			}
		})
	}
}

func TestProjectConfigPath_UsesWaveConfigEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "custom.yaml")
	t.Setenv("WAVE_CONFIG", configPath)

	got := projectConfigPath()
	if got != configPath {
		t.Fatalf("projectConfigPath() = %q, want %q", got, configPath)
	}
}

func TestProjectConfigPath_DefaultFromCwd(t *testing.T) {
	t.Setenv("WAVE_CONFIG", "")
	got := projectConfigPath()
	cwd, _ := os.Getwd()
	expected := filepath.Join(cwd, ".wave", "config.yaml")
	if got != expected {
		t.Errorf("projectConfigPath() = %q, want %q", got, expected)
	}
}

func TestProjectConfigPath_WhitespaceOnlyConfig(t *testing.T) {
	t.Setenv("WAVE_CONFIG", "  \t  ")
	got := projectConfigPath()
	cwd, _ := os.Getwd()
	expected := filepath.Join(cwd, ".wave", "config.yaml")
	if got != expected {
		t.Errorf("projectConfigPath() with whitespace = %q, want %q", got, expected)
	}
}

func TestResolve_WithProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
output: yaml
base_dir: /project/base
verbose: true
bus:
  driver: redis
store:
  driver: memory
worker:
  command: custom-claude
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WAVE_CONFIG", configPath)
	for _, key := range []string{
		"WAVE_OUTPUT", "WAVE_BASE_DIR", "WAVE_VERBOSE",
		"WAVE_BUS_DRIVER", "WAVE_STORE_DRIVER", "WAVE_WORKER_COMMAND",
	} {
		t.Setenv(key, "")
	}

	rc := Resolve("", "", false)

	if rc.Output.Value != "yaml" || rc.Output.Source != SourceProject {
		t.Errorf("Output = (%v, %v), want (yaml, %v)", rc.Output.Value, rc.Output.Source, SourceProject)
	}
	if rc.BaseDir.Value != "/project/base" || rc.BaseDir.Source != SourceProject {
		t.Errorf("BaseDir = (%v, %v), want (/project/base, %v)", rc.BaseDir.Value, rc.BaseDir.Source, SourceProject)
	}
	if rc.Verbose.Value != true || rc.Verbose.Source != SourceProject {
		t.Errorf("Verbose = (%v, %v), want (true, %v)", rc.Verbose.Value, rc.Verbose.Source, SourceProject)
	}
	if rc.BusDriver.Value != "redis" || rc.BusDriver.Source != SourceProject {
		t.Errorf("BusDriver = (%v, %v), want (redis, %v)", rc.BusDriver.Value, rc.BusDriver.Source, SourceProject)
	}
	if rc.StoreDriver.Value != "memory" || rc.StoreDriver.Source != SourceProject {
		t.Errorf("StoreDriver = (%v, %v), want (memory, %v)", rc.StoreDriver.Value, rc.StoreDriver.Source, SourceProject)
	}
	if rc.WorkerCommand.Value != "custom-claude" || rc.WorkerCommand.Source != SourceProject {
		t.Errorf("WorkerCommand = (%v, %v), want (custom-claude, %v)", rc.WorkerCommand.Value, rc.WorkerCommand.Source, SourceProject)
	}
}

func TestResolve_FlagOverridesProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
output: yaml
base_dir: /project/base
verbose: true
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WAVE_CONFIG", configPath)
	for _, key := range []string{
		"WAVE_OUTPUT", "WAVE_BASE_DIR", "WAVE_VERBOSE",
		"WAVE_BUS_DRIVER", "WAVE_STORE_DRIVER", "WAVE_WORKER_COMMAND",
	} {
		t.Setenv(key, "")
	}

	rc := Resolve("json", "/flag/dir", true)

	if rc.Output.Value != "json" || rc.Output.Source != SourceFlag {
		t.Errorf("Flag should override project: Output = (%v, %v)", rc.Output.Value, rc.Output.Source)
	}
	if rc.BaseDir.Value != "/flag/dir" || rc.BaseDir.Source != SourceFlag {
		t.Errorf("Flag should override project: BaseDir = (%v, %v)", rc.BaseDir.Value, rc.BaseDir.Source)
	}
	if rc.Verbose.Value != true || rc.Verbose.Source != SourceFlag {
		t.Errorf("Flag should override project: Verbose = (%v, %v)", rc.Verbose.Value, rc.Verbose.Source)
	}
}

func TestResolve_EnvOverridesProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
output: yaml
base_dir: /project/base
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WAVE_CONFIG", configPath)
	t.Setenv("WAVE_OUTPUT", "csv")
	t.Setenv("WAVE_BASE_DIR", "/env/dir")
	t.Setenv("WAVE_VERBOSE", "true")
	for _, key := range []string{"WAVE_BUS_DRIVER", "WAVE_STORE_DRIVER", "WAVE_WORKER_COMMAND"} {
		t.Setenv(key, "")
	}

	rc := Resolve("", "", false)

	if rc.Output.Value != "csv" || rc.Output.Source != SourceEnv {
		t.Errorf("Env should override project: Output = (%v, %v)", rc.Output.Value, rc.Output.Source)
	}
	if rc.BaseDir.Value != "/env/dir" || rc.BaseDir.Source != SourceEnv {
		t.Errorf("Env should override project: BaseDir = (%v, %v)", rc.BaseDir.Value, rc.BaseDir.Source)
	}
	if rc.Verbose.Value != true || rc.Verbose.Source != SourceEnv {
		t.Errorf("Env should override project: Verbose = (%v, %v)", rc.Verbose.Value, rc.Verbose.Source)
	}
}

func TestLoad_WithFlagOverrides(t *testing.T) {
	t.Setenv("WAVE_CONFIG", "")
	for _, key := range []string{"WAVE_OUTPUT", "WAVE_BASE_DIR", "WAVE_VERBOSE"} {
		t.Setenv(key, "")
	}

	overrides := &Config{
		Output:  "json",
		BaseDir: "/flag/base",
		Verbose: true,
	}

	cfg, err := Load(overrides)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Output != "json" {
		t.Errorf("Load Output = %q, want %q", cfg.Output, "json")
	}
	if cfg.BaseDir != "/flag/base" {
		t.Errorf("Load BaseDir = %q, want %q", cfg.BaseDir, "/flag/base")
	}
	if !cfg.Verbose {
		t.Error("Load Verbose = false, want true")
	}
}

func TestLoad_NilOverrides(t *testing.T) {
	t.Setenv("WAVE_CONFIG", "")
	for _, key := range []string{"WAVE_OUTPUT", "WAVE_BASE_DIR", "WAVE_VERBOSE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Output != "table" {
		t.Errorf("Load nil Output = %q, want %q", cfg.Output, "table")
	}
	if cfg.BaseDir != ".wave" {
		t.Errorf("Load nil BaseDir = %q, want %q", cfg.BaseDir, ".wave")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WAVE_CONFIG", "")
	t.Setenv("WAVE_OUTPUT", "yaml")
	t.Setenv("WAVE_BASE_DIR", "/env/dir")
	t.Setenv("WAVE_VERBOSE", "1")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Output != "yaml" {
		t.Errorf("Load env Output = %q, want %q", cfg.Output, "yaml")
	}
	if cfg.BaseDir != "/env/dir" {
		t.Errorf("Load env BaseDir = %q, want %q", cfg.BaseDir, "/env/dir")
	}
	if !cfg.Verbose {
		t.Error("Load env Verbose = false, want true")
	}
}

func TestLoad_WithProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
output: yaml
base_dir: /project/wave
bus:
  driver: redis
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WAVE_CONFIG", configPath)
	for _, key := range []string{"WAVE_OUTPUT", "WAVE_BASE_DIR", "WAVE_VERBOSE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Output != "yaml" {
		t.Errorf("Load with project config Output = %q, want %q", cfg.Output, "yaml")
	}
	if cfg.BaseDir != "/project/wave" {
		t.Errorf("Load with project config BaseDir = %q, want %q", cfg.BaseDir, "/project/wave")
	}
	if cfg.Bus.Driver != "redis" {
		t.Errorf("Load with project config Bus.Driver = %q, want %q", cfg.Bus.Driver, "redis")
	}
}

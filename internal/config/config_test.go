package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return Default()
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TASKFLOW_SERVER_API_KEY", "")
	t.Setenv(LegacyAPIKeyEnv, "")
}

func TestValidate_Defaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, ErrEmptyAddr},
		{"empty api key", func(c *Config) { c.Server.APIKey = "" }, ErrEmptyAPIKey},
		{"negative timeout", func(c *Config) { c.Server.ShutdownTimeout = -time.Second }, ErrNegativeTimeout},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, ErrInvalidLogLevel},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
		{"audit retention", func(c *Config) { c.Audit.RetentionDays = -1 }, ErrInvalidRetention},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidate_CronExpressions(t *testing.T) {
	cfg := validConfig()
	cfg.Schedule.StatsSnapshot = "every now and then"
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "schedule.stats_snapshot") {
		t.Errorf("expected stats_snapshot cron error, got %v", err)
	}

	cfg = validConfig()
	cfg.Schedule.AuditPrune = "0 3 * * *"
	cfg.Schedule.StatsSnapshot = ""
	if err := Validate(cfg); err != nil {
		t.Errorf("standard cron and disabled job should validate, got %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{":memory:", ":memory:"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := expandPath(tt.input); got != tt.expected {
			t.Errorf("expandPath(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLoadFromPaths_Defaults(t *testing.T) {
	clearKeyEnv(t)
	tmpDir := t.TempDir()

	cfg, err := LoadFromPaths(tmpDir, filepath.Join(tmpDir, "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPaths error: %v", err)
	}

	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.Server.APIKey != DefaultAPIKey {
		t.Errorf("APIKey = %q, want %q", cfg.Server.APIKey, DefaultAPIKey)
	}
	if cfg.Server.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("ShutdownTimeout = %v, want %v", cfg.Server.ShutdownTimeout, DefaultShutdownTimeout)
	}
	if cfg.DB.Path != DefaultDBPath {
		t.Errorf("DB.Path = %q, want %q", cfg.DB.Path, DefaultDBPath)
	}
	if !cfg.Audit.Enabled || cfg.Audit.RetentionDays != DefaultAuditRetentionDays {
		t.Errorf("Audit = %+v", cfg.Audit)
	}
	if cfg.Schedule.StatsSnapshot != DefaultStatsSnapshot {
		t.Errorf("StatsSnapshot = %q", cfg.Schedule.StatsSnapshot)
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want empty", cfg.Source)
	}
}

func TestLoadFromPaths_WithYAML(t *testing.T) {
	clearKeyEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ProjectConfigName)

	configContent := `
server:
  addr: ":8080"
  read_timeout: 3s
logging:
  level: debug
db:
  path: ~/taskflow/taskflow.db
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPaths(tmpDir, filepath.Join(tmpDir, "nonexistent", "global.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPaths error: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != 3*time.Second {
		t.Errorf("ReadTimeout = %v, want 3s", cfg.Server.ReadTimeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Server.APIKey != DefaultAPIKey {
		t.Errorf("unset key should keep default, got %q", cfg.Server.APIKey)
	}
	if !strings.HasSuffix(cfg.ExpandedDBPath(), filepath.Join("taskflow", "taskflow.db")) || strings.HasPrefix(cfg.ExpandedDBPath(), "~") {
		t.Errorf("ExpandedDBPath = %q", cfg.ExpandedDBPath())
	}
	if cfg.Source != configPath {
		t.Errorf("Source = %q, want %q", cfg.Source, configPath)
	}
}

func TestLoadFromPaths_MergeConfigs(t *testing.T) {
	clearKeyEnv(t)
	tmpDir := t.TempDir()
	globalDir := filepath.Join(tmpDir, "global")
	projectDir := filepath.Join(tmpDir, "project")
	if err := os.MkdirAll(globalDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		t.Fatal(err)
	}

	globalConfig := filepath.Join(globalDir, "config.yaml")
	globalContent := `
server:
  addr: ":7000"
  api_key: global-key
audit:
  retention_days: 90
`
	if err := os.WriteFile(globalConfig, []byte(globalContent), 0644); err != nil {
		t.Fatal(err)
	}

	projectContent := `
server:
  api_key: project-key
`
	if err := os.WriteFile(filepath.Join(projectDir, ProjectConfigName), []byte(projectContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPaths(projectDir, globalConfig)
	if err != nil {
		t.Fatalf("LoadFromPaths error: %v", err)
	}

	if cfg.Server.APIKey != "project-key" {
		t.Errorf("APIKey = %q, want project-key", cfg.Server.APIKey)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Addr = %q, want :7000 from global", cfg.Server.Addr)
	}
	if cfg.Audit.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want 90", cfg.Audit.RetentionDays)
	}
}

func TestLoadFromPaths_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ProjectConfigName), []byte("server:\n  addr: \":9000\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TASKFLOW_SERVER_ADDR", ":9100")
	t.Setenv("TASKFLOW_SERVER_API_KEY", "")
	t.Setenv("API_KEY", "legacy-key")

	cfg, err := LoadFromPaths(tmpDir, "")
	if err != nil {
		t.Fatalf("LoadFromPaths error: %v", err)
	}
	if cfg.Server.Addr != ":9100" {
		t.Errorf("Addr = %q, want env override :9100", cfg.Server.Addr)
	}
	if cfg.Server.APIKey != "legacy-key" {
		t.Errorf("APIKey = %q, want legacy-key", cfg.Server.APIKey)
	}
}

func TestLoadFromPaths_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ProjectConfigName), []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromPaths(tmpDir, ""); err == nil {
		t.Error("expected error for malformed project config")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("schedule:\n  audit_prune: \"\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.Schedule.AuditPrune != "" {
		t.Errorf("AuditPrune = %q, want disabled", cfg.Schedule.AuditPrune)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := GlobalConfigPath(); got != filepath.Join("/tmp/xdg", "taskflow", "config.yaml") {
		t.Errorf("GlobalConfigPath() = %q", got)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	clearKeyEnv(t)
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ProjectConfigName)
	if err := os.WriteFile(path, []byte("server:\n  api_key: first\n"), 0644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan *Config, 4)
	reload := func() (*Config, error) { return LoadFromPaths(tmpDir, "") }
	err := Watch(path, reload, func(cfg *Config, err error) {
		if err != nil {
			return
		}
		select {
		case changed <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch error: %v", err)
	}

	if err := os.WriteFile(path, []byte("server:\n  api_key: second\n"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changed:
			if cfg.Server.APIKey == "second" {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "nope.yaml"), nil, func(*Config, error) {})
	if err == nil {
		t.Error("expected error watching a missing file")
	}
}

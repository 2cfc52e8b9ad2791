// Package config handles loading and validating taskflow configuration.
// Supports YAML config files (global and per-project) and environment
// variable overrides, and can watch the active file for changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all taskflow configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	DB       DBConfig       `mapstructure:"db" yaml:"db"`
	Audit    AuditConfig    `mapstructure:"audit" yaml:"audit"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`

	// Source is the file the last layer was read from, if any.
	Source string `mapstructure:"-" yaml:"-"`
}

// ServerConfig configures the HTTP listener and the shared-secret gate.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	APIKey          string        `mapstructure:"api_key" yaml:"api_key"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`
	Format        string `mapstructure:"format" yaml:"format"`
	Path          string `mapstructure:"path" yaml:"path"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// DBConfig locates the side database.
type DBConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AuditConfig controls the audit trail.
type AuditConfig struct {
	Enabled       bool `mapstructure:"enabled" yaml:"enabled"`
	RetentionDays int  `mapstructure:"retention_days" yaml:"retention_days"`
}

// ScheduleConfig holds cron expressions for background jobs. An empty
// expression disables the job.
type ScheduleConfig struct {
	StatsSnapshot string `mapstructure:"stats_snapshot" yaml:"stats_snapshot"`
	AuditPrune    string `mapstructure:"audit_prune" yaml:"audit_prune"`
}

// Defaults.
const (
	DefaultAddr               = ":5000"
	DefaultAPIKey             = "dev-key-12345"
	DefaultReadTimeout        = 10 * time.Second
	DefaultWriteTimeout       = 10 * time.Second
	DefaultShutdownTimeout    = 5 * time.Second
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultLogRetentionDays   = 7
	DefaultDBPath             = ":memory:"
	DefaultAuditRetentionDays = 30
	DefaultStatsSnapshot      = "@every 1h"
	DefaultAuditPrune         = "@daily"

	// ProjectConfigName is the per-project config file name.
	ProjectConfigName = "taskflow.yaml"
	// EnvPrefix prefixes every environment override, e.g. TASKFLOW_SERVER_ADDR.
	EnvPrefix = "TASKFLOW"
	// LegacyAPIKeyEnv is honoured for the API key when the prefixed form is unset.
	LegacyAPIKeyEnv = "API_KEY"
)

// Validation errors.
var (
	ErrEmptyAddr        = errors.New("server.addr must not be empty")
	ErrEmptyAPIKey      = errors.New("server.api_key must not be empty")
	ErrInvalidLogLevel  = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat = errors.New("logging.format must be one of: json, text")
	ErrNegativeTimeout  = errors.New("server timeouts must not be negative")
	ErrInvalidRetention = errors.New("retention_days must not be negative")
)

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			APIKey:          DefaultAPIKey,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:         DefaultLogLevel,
			Format:        DefaultLogFormat,
			RetentionDays: DefaultLogRetentionDays,
		},
		DB: DBConfig{
			Path: DefaultDBPath,
		},
		Audit: AuditConfig{
			Enabled:       true,
			RetentionDays: DefaultAuditRetentionDays,
		},
		Schedule: ScheduleConfig{
			StatsSnapshot: DefaultStatsSnapshot,
			AuditPrune:    DefaultAuditPrune,
		},
	}
}

// GlobalConfigPath returns the path of the user-wide config file.
func GlobalConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "taskflow", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "taskflow", "config.yaml")
}

// Load reads configuration for the current directory.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return LoadFromPaths(cwd, GlobalConfigPath())
}

// LoadFile reads configuration from one explicit file plus the environment.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return decode(v, path)
}

// LoadFromPaths layers defaults, the global config, the project config in
// projectDir and the environment, in increasing precedence. Missing files
// are skipped.
func LoadFromPaths(projectDir, globalPath string) (*Config, error) {
	v := newViper()
	source := ""

	if globalPath != "" && fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read global config: %w", err)
		}
		source = globalPath
	}

	projectPath := filepath.Join(projectDir, ProjectConfigName)
	if projectDir != "" && fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read project config: %w", err)
		}
		source = projectPath
	}

	return decode(v, source)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	d := Default()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.api_key", d.Server.APIKey)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.retention_days", d.Logging.RetentionDays)
	v.SetDefault("db.path", d.DB.Path)
	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.retention_days", d.Audit.RetentionDays)
	v.SetDefault("schedule.stats_snapshot", d.Schedule.StatsSnapshot)
	v.SetDefault("schedule.audit_prune", d.Schedule.AuditPrune)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.api_key", EnvPrefix+"_SERVER_API_KEY", LegacyAPIKeyEnv)

	return v
}

func decode(v *viper.Viper, source string) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Source = source
	return cfg, nil
}

// Validate checks cfg for values the service cannot run with.
func Validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return ErrEmptyAddr
	}
	if cfg.Server.APIKey == "" {
		return ErrEmptyAPIKey
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 || cfg.Server.ShutdownTimeout < 0 {
		return ErrNegativeTimeout
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "json", "text":
	default:
		return ErrInvalidLogFormat
	}
	if cfg.Logging.RetentionDays < 0 || cfg.Audit.RetentionDays < 0 {
		return ErrInvalidRetention
	}

	for key, expr := range map[string]string{
		"schedule.stats_snapshot": cfg.Schedule.StatsSnapshot,
		"schedule.audit_prune":    cfg.Schedule.AuditPrune,
	} {
		if expr == "" {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("%s: invalid cron expression %q: %w", key, expr, err)
		}
	}

	return nil
}

// ExpandedDBPath returns the DB path with ~ expanded.
func (c *Config) ExpandedDBPath() string {
	return expandPath(c.DB.Path)
}

// ExpandedLogPath returns the log directory with ~ expanded.
func (c *Config) ExpandedLogPath() string {
	return expandPath(c.Logging.Path)
}

// Watch calls onChange with a freshly loaded config every time path is
// written. reload rebuilds the config; nil means LoadFile(path). Reload and
// validation errors are passed through so the caller can keep the previous
// config.
func Watch(path string, reload func() (*Config, error), onChange func(*Config, error)) error {
	if !fileExists(path) {
		return fmt.Errorf("watch config: %s does not exist", path)
	}
	if reload == nil {
		reload = func() (*Config, error) { return LoadFile(path) }
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := reload()
		if err == nil {
			err = Validate(cfg)
		}
		onChange(cfg, err)
	})
	v.WatchConfig()
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/worace/sluice/internal/guard"
	"github.com/worace/sluice/pipeline"
)

// Config holds the sluice command-line configuration.
type Config struct {
	ContextConfig ContextConfig         `yaml:"context"`
	Audit         AuditConfig           `yaml:"audit"`
	Guards        map[string]guard.Rule `yaml:"guards"`
	Log           LogConfig             `yaml:"log"`
}

// ContextConfig describes the default execution context for pipelines run
// from the command line.
type ContextConfig struct {
	Dir           string            `yaml:"dir"`
	Env           map[string]string `yaml:"env"`
	EnvFile       string            `yaml:"env_file"`
	DisinheritEnv bool              `yaml:"disinherit_env"`
}

// AuditConfig controls the audit log.
type AuditConfig struct {
	// Path is the log file. An empty path disables auditing.
	Path string `yaml:"path"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Audit: AuditConfig{
			Path: filepath.Join(home, ".local", "share", "sluice", "audit.jsonl"),
		},
		Log: LogConfig{Level: "warn"},
	}
}

// Load reads the config from the standard location (~/.config/sluice/config.yaml).
// If the file doesn't exist, returns the default config.
func Load() (*Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from the given path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Audit.Path = expandHome(cfg.Audit.Path)
	cfg.ContextConfig.Dir = expandHome(cfg.ContextConfig.Dir)
	cfg.ContextConfig.EnvFile = expandHome(cfg.ContextConfig.EnvFile)
	return cfg, nil
}

// ConfigPath returns the standard config file path, or "" when the home
// directory is unknown.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "sluice", "config.yaml")
}

// Context builds the default pipeline context. Variables from env_file are
// applied before those listed under env, so env wins.
func (c *Config) Context() (pipeline.Context, error) {
	ctx := pipeline.NewContext()
	if c.ContextConfig.Dir != "" {
		ctx = ctx.Chdir(c.ContextConfig.Dir)
	}
	if c.ContextConfig.EnvFile != "" {
		var err error
		if ctx, err = ctx.LoadEnvFile(c.ContextConfig.EnvFile); err != nil {
			return ctx, err
		}
	}
	if len(c.ContextConfig.Env) > 0 {
		ctx = ctx.Setenv(c.ContextConfig.Env)
	}
	if c.ContextConfig.DisinheritEnv {
		ctx = ctx.DisinheritEnv()
	}
	return ctx, nil
}

// GuardSet compiles the configured guards. With none configured the
// defaults apply.
func (c *Config) GuardSet() *guard.Set {
	rules := c.Guards
	if rules == nil {
		rules = guard.Defaults()
	}
	return guard.Build(rules)
}

// LogLevel parses the configured level, falling back to warn.
func (c *Config) LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelWarn
	}
	return lvl
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

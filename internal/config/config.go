// Package config loads workflow settings from a YAML file and environment
// variables. Precedence: environment > file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings for one workspace
type Config struct {
	// DBPath is the SQLite database file. Relative paths resolve against
	// the working directory.
	DBPath string `yaml:"db_path"`

	// WorkspaceRoot is where 'sdw sync' exports artifact files.
	WorkspaceRoot string `yaml:"workspace_root"`

	// LockDir holds per-feature lock files.
	LockDir string `yaml:"lock_dir"`

	// LockStaleMinutes is how long a feature lock survives before another
	// process may reclaim it. Default: 15, Range: 1-1440
	LockStaleMinutes int `yaml:"lock_stale_minutes"`

	// AnalyzeParallelism bounds concurrent analyses in 'sdw analyze --all'.
	// Default: 4, Range: 1-32
	AnalyzeParallelism int `yaml:"analyze_parallelism"`

	// Actor is the default identity recorded on events and approvals when
	// --actor is not given. Defaults to $USER.
	Actor string `yaml:"actor"`
}

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = ".sdw/config.yaml"

// Default returns the default configuration
func Default() Config {
	actor := os.Getenv("USER")
	if actor == "" {
		actor = "unknown"
	}
	return Config{
		DBPath:             ".sdw/sdw.db",
		WorkspaceRoot:      ".sdw/workspace",
		LockDir:            ".sdw/locks",
		LockStaleMinutes:   15,
		AnalyzeParallelism: 4,
		Actor:              actor,
	}
}

// Load reads the config file at path, applies environment overrides, and
// validates the result. A missing file is not an error; defaults apply.
//
// Environment variables:
//   - SDW_DB_PATH: SQLite database file
//   - SDW_WORKSPACE_ROOT: artifact export directory
//   - SDW_LOCK_DIR: feature lock directory
//   - SDW_LOCK_STALE_MINUTES: lock reclaim threshold in minutes (default: 15)
//   - SDW_ANALYZE_PARALLELISM: concurrent analyses for --all (default: 4)
//   - SDW_ACTOR: identity recorded on events and approvals
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}

	if v := os.Getenv("SDW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SDW_WORKSPACE_ROOT"); v != "" {
		cfg.WorkspaceRoot = v
	}
	if v := os.Getenv("SDW_LOCK_DIR"); v != "" {
		cfg.LockDir = v
	}
	if v := os.Getenv("SDW_ACTOR"); v != "" {
		cfg.Actor = v
	}
	if err := parseEnvInt("SDW_LOCK_STALE_MINUTES", &cfg.LockStaleMinutes); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("SDW_ANALYZE_PARALLELISM", &cfg.AnalyzeParallelism); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path cannot be empty")
	}
	if c.WorkspaceRoot == "" {
		return fmt.Errorf("workspace_root cannot be empty")
	}
	if c.LockDir == "" {
		return fmt.Errorf("lock_dir cannot be empty")
	}
	if c.LockStaleMinutes < 1 || c.LockStaleMinutes > 1440 {
		return fmt.Errorf("lock_stale_minutes must be between 1 and 1440 (got %d)",
			c.LockStaleMinutes)
	}
	if c.AnalyzeParallelism < 1 || c.AnalyzeParallelism > 32 {
		return fmt.Errorf("analyze_parallelism must be between 1 and 32 (got %d)",
			c.AnalyzeParallelism)
	}
	return nil
}

// LockStaleAfter returns the lock reclaim threshold as a duration.
func (c Config) LockStaleAfter() time.Duration {
	return time.Duration(c.LockStaleMinutes) * time.Minute
}

// Write saves the config as YAML, creating parent directories as needed.
// Used by 'sdw init' to scaffold a workspace.
func (c Config) Write(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// parseEnvInt parses an integer environment variable into target if set
func parseEnvInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be an integer (got %q)", key, v)
	}
	*target = parsed
	return nil
}

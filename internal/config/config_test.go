package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ".sdw/sdw.db", cfg.DBPath)
	assert.Equal(t, ".sdw/workspace", cfg.WorkspaceRoot)
	assert.Equal(t, 15, cfg.LockStaleMinutes)
	assert.Equal(t, 4, cfg.AnalyzeParallelism)
	assert.Equal(t, 15*time.Minute, cfg.LockStaleAfter())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "db_path: /tmp/other.db\nlock_stale_minutes: 30\nactor: robot\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.DBPath)
	assert.Equal(t, 30, cfg.LockStaleMinutes)
	assert.Equal(t, "robot", cfg.Actor)
	// Unset keys keep defaults.
	assert.Equal(t, 4, cfg.AnalyzeParallelism)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: /from/file.db\n"), 0644))

	t.Setenv("SDW_DB_PATH", "/from/env.db")
	t.Setenv("SDW_ANALYZE_PARALLELISM", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.db", cfg.DBPath)
	assert.Equal(t, 8, cfg.AnalyzeParallelism)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("SDW_LOCK_STALE_MINUTES", "soon")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"empty db path", func(c *Config) { c.DBPath = "" }, true},
		{"zero stale minutes", func(c *Config) { c.LockStaleMinutes = 0 }, true},
		{"stale minutes too large", func(c *Config) { c.LockStaleMinutes = 2000 }, true},
		{"zero parallelism", func(c *Config) { c.AnalyzeParallelism = 0 }, true},
		{"parallelism too large", func(c *Config) { c.AnalyzeParallelism = 64 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Actor = "alice"
	require.NoError(t, cfg.Write(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

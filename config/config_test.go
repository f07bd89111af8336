package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadForTest(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadForTest(t)

	assert.Equal(t, RoleMain, cfg.ProcessRole)
	assert.True(t, cfg.IsMainProcess())
	assert.Equal(t, "ws://127.0.0.1:9222/control", cfg.Engine.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Session.AutoSaveInterval)
	assert.Equal(t, 10, cfg.Session.MaxSnapshots)
	assert.False(t, cfg.Push.Enabled)
	assert.False(t, cfg.CrashReporter.Enabled)
	assert.Equal(t, 12*time.Hour, cfg.Addons.UpdateCheckInterval)
	assert.Equal(t, 256, cfg.Icons.CacheSize)
	assert.Equal(t, 24*time.Hour, cfg.Uploads.MaxAge)
}

func TestLoadConfigResolvesDataPaths(t *testing.T) {
	cfg := loadForTest(t)

	assert.Equal(t, "./data", cfg.GetDataDir())
	assert.Equal(t, filepath.Join("./data", "sessions.db"), cfg.GetSessionDBPath())
	assert.Equal(t, filepath.Join("./data", "uploads"), cfg.GetUploadsDir())
}

func TestProcessRoleFromEnvironment(t *testing.T) {
	t.Setenv("BROWSERD_PROCESS_ROLE", "renderer")
	cfg := loadForTest(t)

	assert.Equal(t, RoleRenderer, cfg.ProcessRole)
	assert.False(t, cfg.IsMainProcess())
}

func TestDataDirFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BROWSERD_DATA_DIR", dir)
	cfg := loadForTest(t)

	assert.Equal(t, dir, cfg.GetDataDir())
	assert.Equal(t, filepath.Join(dir, "sessions.db"), cfg.GetSessionDBPath())
}

func TestExplicitSessionDBOverride(t *testing.T) {
	t.Setenv("BROWSERD_SESSION_DB", "/var/lib/browserd/sessions.db")
	cfg := loadForTest(t)

	assert.Equal(t, "/var/lib/browserd/sessions.db", cfg.GetSessionDBPath())
	assert.Equal(t, filepath.Join("./data", "uploads"), cfg.GetUploadsDir(), "other paths still derive from data_dir")
}

func TestValidateRejectsUnknownRole(t *testing.T) {
	cfg := loadForTest(t)
	cfg.ProcessRole = "mystery"
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsPushWithoutTransport(t *testing.T) {
	cfg := loadForTest(t)
	cfg.Push.Enabled = true
	cfg.Push.Addr = ""
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsCrashReporterWithoutEndpoint(t *testing.T) {
	cfg := loadForTest(t)
	cfg.CrashReporter.Enabled = true
	cfg.CrashReporter.Endpoint = ""
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsNonPositiveInterval(t *testing.T) {
	cfg := loadForTest(t)
	cfg.Session.AutoSaveInterval = 0
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsMissingEngineEndpoint(t *testing.T) {
	cfg := loadForTest(t)
	cfg.Engine.Endpoint = ""
	assert.Error(t, Validate(cfg))
}

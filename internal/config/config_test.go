package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, DefaultRefresh, cfg.RefreshCron)
	assert.Empty(t, cfg.Calendars)
	assert.False(t, cfg.BasicAuth.Enabled())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
timezone: Europe/Berlin
cors_proxy:
  url: "https://proxy.example.com/?url="
  headers:
    X-Proxy-Key: secret
calendars:
  - url: https://example.com/work.ics
    color: "#ff0000"
    name: Work
  - url: "  "
    color: "#00ff00"
  - url: https://example.com/home.ics
snapshot:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	assert.Equal(t, DefaultRefresh, cfg.RefreshCron)
	assert.Equal(t, "https://proxy.example.com/?url=", cfg.CORSProxy.URL)
	assert.Equal(t, map[string]string{"X-Proxy-Key": "secret"}, cfg.CORSProxy.Headers)

	require.Len(t, cfg.Calendars, 2)
	assert.Equal(t, CalendarConfig{URL: "https://example.com/work.ics", Color: "#ff0000", Name: "Work"}, cfg.Calendars[0])
	assert.Equal(t, DefaultColor, cfg.Calendars[1].Color)

	assert.True(t, cfg.Snapshot.Enabled)
	assert.Equal(t, DefaultSnapshotWidth, cfg.Snapshot.Width)
	assert.Equal(t, "http://127.0.0.1:9090/", cfg.SnapshotURL())
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "listen: 127.0.0.1:7000\nlog_level: warn\n")

	t.Setenv("STATUSBOARD_LISTEN", "0.0.0.0:8081")
	t.Setenv("STATUSBOARD_BASIC_AUTH__USERNAME", "admin")
	t.Setenv("STATUSBOARD_BASIC_AUTH__PASSWORD", "hunter2")
	t.Setenv("STATUSBOARD_SNAPSHOT__WIDTH", "1024")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8081", cfg.Listen)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.BasicAuth.Enabled())
	assert.Equal(t, "admin", cfg.BasicAuth.Username)
	assert.Equal(t, 1024, cfg.Snapshot.Width)
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	path := writeConfig(t, "listen: [unterminated\n")
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}

func TestSaveRoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Timezone = "Asia/Seoul"
	cfg.Calendars = []CalendarConfig{{URL: "https://example.com/a.ics", Color: "teal"}}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", loaded.Timezone)
	assert.Equal(t, cfg.Calendars, loaded.Calendars)
}

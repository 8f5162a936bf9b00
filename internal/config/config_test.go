package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, 2*time.Minute, cfg.Sessions.StaleAfter)
	assert.Equal(t, 150*time.Second, cfg.Engine.TimerDuration)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  allowed_origins: ["http://tv.local"]
database:
  driver: postgres
  dsn: postgres://localhost/tourney
engine:
  timer_duration: 3m
archive:
  bucket: results
  access_key_id: key
  secret_access_key: secret
`), 0o600))

	t.Setenv("PORT", "7000")
	t.Setenv("TIMER_DURATION", "90")
	t.Setenv("SESSION_SWEEP_INTERVAL", "15s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, []string{"http://tv.local"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 90*time.Second, cfg.Engine.TimerDuration)
	assert.Equal(t, 15*time.Second, cfg.Sessions.SweepInterval)
	assert.Equal(t, "results", cfg.Archive.Bucket)
	assert.Equal(t, "tournaments/", cfg.Archive.Prefix, "unset keys keep their default")
}

func TestLoadConfigRejects(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "unknown driver", yaml: "database:\n  driver: mysql\n"},
		{name: "bad yaml", yaml: "server: [\n"},
		{name: "half credentials", yaml: "archive:\n  bucket: b\n  access_key_id: k\n"},
		{name: "bad duration", env: map[string]string{"SESSION_STALE_AFTER": "soon"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o600))
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

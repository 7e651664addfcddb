package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"server_url":              "https://www.example:9000",
		"request_timeout":         "15s",
		"safety_refresh_interval": "30m",
		"max_inactivity":          int64(48 * time.Hour),
	})
	pathEnv := writeTempJSON(t, dir, "env.json", map[string]any{
		"data_dir": "/var/lib/rd",
	})

	t.Run("loads from flags", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}
		t.Setenv("REVIEWDESK_CONFIG", "")

		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg))

		assert.Equal(t, "https://www.example:9000", cfg.ServerURL)
		assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 30*time.Minute, cfg.SafetyRefreshInterval)
		assert.Equal(t, 48*time.Hour, cfg.MaxInactivity)
		// Absent keys keep their defaults.
		assert.Equal(t, 2*time.Minute, cfg.RefreshLeadTime)
		assert.Equal(t, ".reviewdesk", cfg.DataDir)
	})

	t.Run("loads from env when no flag", func(t *testing.T) {
		os.Args = []string{"testbin"}
		t.Setenv("REVIEWDESK_CONFIG", pathEnv)

		cfg := &Config{}
		require.NoError(t, parseJson(cfg))

		assert.Equal(t, "/var/lib/rd", cfg.DataDir)
	})

	t.Run("no config and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}
		t.Setenv("REVIEWDESK_CONFIG", "")

		cfg := &Config{ServerURL: "http://defaults:1234", RequestTimeout: 42 * time.Second}
		require.NoError(t, parseJson(cfg))

		assert.Equal(t, "http://defaults:1234", cfg.ServerURL)
		assert.Equal(t, 42*time.Second, cfg.RequestTimeout)
	})

	t.Run("invalid JSON → error", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		os.Args = []string{"testbin", "-config", bad}

		require.Error(t, parseJson(&Config{}))
	})

	t.Run("missing file → error", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "absent.json")}

		require.Error(t, parseJson(&Config{}))
	})
}

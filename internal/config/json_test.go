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

func Test_parseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	path := writeTempJSON(t, dir, "flag.json", map[string]any{
		"database_driver":  "postgres",
		"database_dsn":     "postgres://u:p@localhost/credcore",
		"session_ttl":      "2h",
		"lockout_duration": float64(10 * time.Minute),
		"kdf_threads":      2,
		"debug":            true,
	})

	t.Run("overlays present keys", func(t *testing.T) {
		os.Args = []string{"credcore", "-config", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "postgres", cfg.DatabaseDriver)
		assert.Equal(t, "postgres://u:p@localhost/credcore", cfg.DatabaseDSN)
		assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
		assert.Equal(t, 10*time.Minute, cfg.LockoutDuration)
		assert.Equal(t, uint8(2), cfg.KDFThreads)
		assert.True(t, cfg.Debug)

		assert.Equal(t, 5, cfg.LockoutThreshold)
		assert.Equal(t, 24*time.Hour, cfg.EmailTokenTTL)
		assert.Equal(t, "credcore", cfg.TOTPIssuer)
	})

	t.Run("no config flag leaves config untouched", func(t *testing.T) {
		os.Args = []string{"credcore"}

		cfg := &Config{LogFormat: "zap", LockoutThreshold: 9}
		parseJson(cfg)

		assert.Equal(t, &Config{LogFormat: "zap", LockoutThreshold: 9}, cfg)
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"credcore", "-c", filepath.Join(dir, "absent.json")}
		require.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"credcore", "-config", bad}
		require.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("invalid duration panics", func(t *testing.T) {
		bad := writeTempJSON(t, dir, "dur.json", map[string]any{"session_ttl": "forever"})

		os.Args = []string{"credcore", "-c", bad}
		require.Panics(t, func() { parseJson(&Config{}) })
	})
}

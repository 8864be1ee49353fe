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
		"store_backend":          "postgres",
		"database_dsn":           "postgres://example/securechat",
		"redis_addr":             "redis.example:6379",
		"secret_key":             "my_secret_key",
		"secret_read_arm_window": "30s",
		"secret_arm_on_send":     true,
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, BackendPostgres, cfg.StoreBackend)
		assert.Equal(t, "postgres://example/securechat", cfg.DatabaseDSN)
		assert.Equal(t, "redis.example:6379", cfg.RedisAddr)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 30*time.Second, cfg.SecretReadArmWindow)
		assert.True(t, cfg.SecretArmOnSend)
		// Fields absent from the file keep their defaults.
		assert.Equal(t, 10*time.Second, cfg.SecretSendLifetime)
		assert.True(t, cfg.RepublishKeyOnSignIn)
	})

	t.Run("no config flag means no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{StoreBackend: "memory", SecretKey: "key"}
		parseJson(cfg)

		assert.Equal(t, "memory", cfg.StoreBackend)
		assert.Equal(t, "key", cfg.SecretKey)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}

// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load looks at so the host environment does not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DUEL_ADDR", "ALLOWED_ORIGINS", "DUEL_OUT_BUFFER", "DUEL_EVENT_BUFFER",
		"DUEL_RECORD_HISTORY", "REDIS_ADDR", "REDIS_DB", "HISTORIAN_QUEUE_NAME", "DATABASE_URL",
		"HISTORIAN_BATCH_SIZE", "HISTORIAN_FLUSH_MS", "ROOM_INACTIVITY_TIMEOUT_SEC", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

// chdir stands in for testing.T.Chdir (Go 1.24+): it changes the working
// directory for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "duel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 500*time.Millisecond, cfg.Historian.FlushInterval())
	assert.Equal(t, 10*time.Minute, cfg.Historian.Inactivity())
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
server:
  addr: ":9000"
  allowed_origins: ["game.example.com"]
  record_history: true
redis:
  queue: custom_queue
historian:
  batch_size: 5
log_level: debug
`)
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("HISTORIAN_BATCH_SIZE", "50")
	t.Setenv("ALLOWED_ORIGINS", "a.example.com, b.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.True(t, cfg.Server.RecordHistory)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "custom_queue", cfg.Redis.Queue)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 50, cfg.Historian.BatchSize)
	assert.Equal(t, 500, cfg.Historian.FlushMs, "unset keys keep their defaults")
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
}

func TestLoad_PortEnv(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")

	_, err = Load(writeFile(t, "server: [not, a, map"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "log_level: loud\nhistorian:\n  batch_size: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "batch_size")
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("DUEL_TEST_INT", "nope")
	assert.Equal(t, 3, getEnvInt("DUEL_TEST_INT", 3))
	t.Setenv("DUEL_TEST_INT", "12")
	assert.Equal(t, 12, getEnvInt("DUEL_TEST_INT", 3))

	t.Setenv("DUEL_TEST_BOOL", "true")
	assert.True(t, getEnvBool("DUEL_TEST_BOOL", false))
	t.Setenv("DUEL_TEST_BOOL", "maybe")
	assert.False(t, getEnvBool("DUEL_TEST_BOOL", false))
}

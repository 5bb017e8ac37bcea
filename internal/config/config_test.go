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
	t.Setenv("HOME", t.TempDir()) // keep a real ~/.hive/config.yaml out of the test

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, "ws://localhost:8000", cfg.WebSocketURL, "websocket URL derived from backend URL")
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 20*time.Millisecond, cfg.TypingInterval)
	assert.Equal(t, 1.0, cfg.SchedulerTimeScale)
	assert.Equal(t, 8090, cfg.ServePort)
	assert.NotEmpty(t, cfg.StateDir)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend_url: https://chat.example.com
state_dir: /tmp/hive-test
typing_interval: 5ms
serve_port: 9999
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com", cfg.BackendURL)
	assert.Equal(t, "wss://chat.example.com", cfg.WebSocketURL)
	assert.Equal(t, "/tmp/hive-test", cfg.StateDir)
	assert.Equal(t, 5*time.Millisecond, cfg.TypingInterval)
	assert.Equal(t, 9999, cfg.ServePort)
}

func TestLoadExplicitWebSocketURLWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend_url: http://a.example.com
websocket_url: ws://b.example.com
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://b.example.com", cfg.WebSocketURL)
}

func TestLoadMissingExplicitFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HIVE_BACKEND_URL", "http://envhost:1234")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://envhost:1234", cfg.BackendURL)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	original := &Config{
		BackendURL:         "http://saved.example.com",
		StateDir:           dir,
		RequestTimeout:     10 * time.Second,
		TypingInterval:     15 * time.Millisecond,
		SchedulerTimeScale: 0.5,
		ServeHost:          "0.0.0.0",
		ServePort:          8123,
	}
	require.NoError(t, original.Save(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original.BackendURL, cfg.BackendURL)
	assert.Equal(t, original.ServePort, cfg.ServePort)
	assert.Equal(t, original.SchedulerTimeScale, cfg.SchedulerTimeScale)
}

func TestDeriveWebSocketURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ws://h:1", DeriveWebSocketURL("http://h:1"))
	assert.Equal(t, "wss://h", DeriveWebSocketURL("https://h"))
	assert.Equal(t, "ws://already", DeriveWebSocketURL("ws://already"))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/lightplan/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "lightplan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadWithEnv("", noEnv)
	require.NoError(t, err)

	assert.Equal(t, chat.DefaultServer, cfg.Chat.Server)
	assert.Equal(t, 3, cfg.Chat.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Chat.RetryDelay)
	assert.Equal(t, 20, cfg.Chat.RateLimit)
	assert.Equal(t, int64(0), cfg.Run.StreamDelayMs)
	assert.Empty(t, cfg.OSC.Listen)
	assert.False(t, cfg.ChatCredentialsSet())
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
chat:
  username: lightbot
  token: oauth:abc
  channel: MyStream
  connect_timeout: 3s
  retry_delay: 250ms
  rate_limit: 0
run:
  stream_delay_ms: 2000
  delay_adjust_ms: -300
osc:
  listen: 127.0.0.1:9000
log_level: debug
`)

	cfg, err := LoadWithEnv(path, noEnv)
	require.NoError(t, err)

	assert.Equal(t, chat.DefaultServer, cfg.Chat.Server)
	assert.Equal(t, "lightbot", cfg.Chat.Username)
	assert.Equal(t, 3*time.Second, cfg.Chat.ConnectTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Chat.RetryDelay)
	assert.Equal(t, 0, cfg.Chat.RateLimit)
	assert.Equal(t, int64(2000), cfg.Run.StreamDelayMs)
	assert.Equal(t, int64(-300), cfg.Run.DelayAdjustMs)
	assert.Equal(t, "127.0.0.1:9000", cfg.OSC.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.ChatCredentialsSet())

	cc := cfg.Chat.ClientConfig()
	assert.Equal(t, "lightbot", cc.Nick)
	assert.Equal(t, "oauth:abc", cc.Secret)
	assert.Equal(t, "MyStream", cc.Channel)
	assert.Equal(t, 3*time.Second, cc.DialTimeout)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "run:\n  stream_delay_ms: 2000\n")
	cfg, err := LoadWithEnv(path, envMap(map[string]string{
		"LIGHTPLAN_STREAM_DELAY_MS": "1500",
		"LIGHTPLAN_CHAT_TOKEN":      "oauth:env",
		"LIGHTPLAN_CHAT_RATE_LIMIT": "100",
		"LIGHTPLAN_METRICS_LISTEN":  ":2112",
	}))
	require.NoError(t, err)

	assert.Equal(t, int64(1500), cfg.Run.StreamDelayMs)
	assert.Equal(t, "oauth:env", cfg.Chat.Token)
	assert.Equal(t, 100, cfg.Chat.RateLimit)
	assert.Equal(t, ":2112", cfg.Metrics.Listen)
}

func TestBadEnvValue(t *testing.T) {
	t.Parallel()

	_, err := LoadWithEnv("", envMap(map[string]string{"LIGHTPLAN_DELAY_ADJUST_MS": "soon"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LIGHTPLAN_DELAY_ADJUST_MS")
}

func TestValidation(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
chat:
  server: ""
  max_retries: -1
run:
  stream_delay_ms: -5
  delay_adjust_ms: 45000
log_level: loud
`)

	_, err := LoadWithEnv(path, noEnv)
	require.Error(t, err)

	verr, ok := errors.Unwrap(err).(ValidationError)
	require.True(t, ok, "expected a ValidationError, got %T", errors.Unwrap(err))
	assert.Len(t, verr.Problems, 5)
	assert.Contains(t, err.Error(), "run.delay_adjust_ms")
}

func TestMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "nope.yaml"), noEnv)
	require.Error(t, err)
}

func TestClampRuntimeAdjust(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(MaxRuntimeAdjustMs), ClampRuntimeAdjust(99999))
	assert.Equal(t, int64(-MaxRuntimeAdjustMs), ClampRuntimeAdjust(-30001))
	assert.Equal(t, int64(-1200), ClampRuntimeAdjust(-1200))
}

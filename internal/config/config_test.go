package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  env: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, 5*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, time.Second, cfg.Monitor.TickInterval)
	assert.True(t, cfg.Monitor.AutoRefresh)
	assert.Equal(t, time.Minute, cfg.Monitor.LockTTL)
	assert.Equal(t, 30*time.Second, cfg.Upstream.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Upstream.ReplyTimeout)
	assert.Equal(t, "redis", cfg.Session.Store)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	t.Setenv("OUTREACH_UPSTREAM_BASE_URL", "http://backend:9000")
	t.Setenv("OUTREACH_SESSION_STORE", "memory")

	cfg, err := Load(writeConfig(t, `
monitor:
  poll_interval: 10s
  max_views: 8
upstream:
  base_url: http://ignored:8000
`))
	require.NoError(t, err)

	assert.Equal(t, "http://backend:9000", cfg.Upstream.BaseURL)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 10*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, 8, cfg.Monitor.MaxViews)
}

func TestLoadValidates(t *testing.T) {
	cases := map[string]string{
		"reply shorter than request": "upstream:\n  request_timeout: 10s\n  reply_timeout: 5s\n",
		"kafka without brokers":      "kafka:\n  enabled: true\n",
		"unknown session store":      "session:\n  store: etcd\n",
		"non-positive poll interval": "monitor:\n  poll_interval: 0s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

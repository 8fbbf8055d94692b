package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "address: engine.internal:28015\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "engine.internal:28015", cfg.Address)
	assert.Equal(t, TransportTCP, cfg.Transport)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 8, cfg.Pool.Workers)
	assert.True(t, cfg.Reconnect.Enabled)
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
address: nats://broker:4222
transport: nats
connect_timeout: 3s
client_name: analytics
nats:
  subject_prefix: engine
reconnect:
  enabled: true
  attempts: 5
  base_delay: 200ms
  max_delay: 10s
  factor: 2.0
  jitter: true
write_rate:
  events_per_sec: 100
  burst: 20
pool:
  workers: 16
  queue_size: 4096
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, TransportNATS, cfg.Transport)
	assert.Equal(t, "engine", cfg.NATS.SubjectPrefix)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, "analytics", cfg.ClientName)
	assert.Equal(t, 100.0, cfg.WriteRate.EventsPerSec)
	assert.Equal(t, 16, cfg.Pool.Workers)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 5, policy.Attempts)
	assert.Equal(t, 200*time.Millisecond, policy.BaseDelay)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "address: from-file:28015\n")
	t.Setenv("QUERYSTREAM_ADDRESS", "from-env:28015")
	t.Setenv("QUERYSTREAM_TRANSPORT", "websocket")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env:28015", cfg.Address)
	assert.Equal(t, TransportWebSocket, cfg.Transport)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsNonYAMLPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default is valid", func(c *Config) {}, false},
		{"empty address", func(c *Config) { c.Address = "" }, true},
		{"unknown transport", func(c *Config) { c.Transport = "carrier-pigeon" }, true},
		{"empty transport defaults", func(c *Config) { c.Transport = "" }, false},
		{"negative timeout", func(c *Config) { c.ConnectTimeout = -time.Second }, true},
		{"rate without burst", func(c *Config) { c.WriteRate.EventsPerSec = 10 }, true},
		{"rate with burst", func(c *Config) { c.WriteRate.EventsPerSec = 10; c.WriteRate.Burst = 1 }, false},
		{"negative pool", func(c *Config) { c.Pool.Workers = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryPolicy_SingleByDefault(t *testing.T) {
	cfg := Default()
	policy := cfg.RetryPolicy()
	assert.Equal(t, 1, policy.Attempts)
}

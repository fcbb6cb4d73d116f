package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAndValidate(t *testing.T) {
	content := `
backend:
  host: 192.168.91.84
  port: 8000
  poll_interval: 2s
  timeout: 3s

server:
  addr: ":9000"
  allowed_origins:
    - http://localhost:3000

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

logging:
  level: "debug"
  format: "json"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "192.168.91.84", cfg.Backend.Host)
	assert.Equal(t, 2*time.Second, cfg.Backend.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "http://192.168.91.84:8000", cfg.Backend.BaseURL())
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Telegram.Enabled)
	assert.True(t, cfg.Telegram.NotifyResults, "default should survive a partial telegram section")

	require.NoError(t, cfg.Validate())
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL())
	assert.Equal(t, time.Second, cfg.Backend.PollInterval)
	assert.Equal(t, 1, cfg.Backend.MaxRetries)
	assert.Equal(t, ":8050", cfg.Server.Addr)
	assert.False(t, cfg.Telegram.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MARKETSTATE_BACKEND_HOST", "sim.internal")
	t.Setenv("MARKETSTATE_BACKEND_PORT", "9001")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://sim.internal:9001", cfg.Backend.BaseURL())
}

func TestLoadTelegramCredentialsFromEnv(t *testing.T) {
	t.Setenv("MARKETSTATE_TELEGRAM_ENABLED", "true")
	t.Setenv("MARKETSTATE_TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("MARKETSTATE_TELEGRAM_CHAT_ID", "-10042")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Telegram.Enabled)
	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, "-10042", cfg.Telegram.ChatID)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Scheme:       "http",
			Host:         "localhost",
			Port:         8000,
			PollInterval: time.Second,
			Timeout:      5 * time.Second,
			MaxRetries:   1,
		},
		Server:  ServerConfig{Addr: ":8050"},
		Charts:  ChartsConfig{Width: 640, Height: 280},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "bad scheme", mutate: func(c *Config) { c.Backend.Scheme = "ftp" }, wantErr: true},
		{name: "missing host", mutate: func(c *Config) { c.Backend.Host = "" }, wantErr: true},
		{name: "port out of range", mutate: func(c *Config) { c.Backend.Port = 70000 }, wantErr: true},
		{name: "poll interval too short", mutate: func(c *Config) { c.Backend.PollInterval = 10 * time.Millisecond }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Backend.Timeout = 0 }, wantErr: true},
		{name: "zero retries", mutate: func(c *Config) { c.Backend.MaxRetries = 0 }, wantErr: true},
		{name: "missing server addr", mutate: func(c *Config) { c.Server.Addr = "" }, wantErr: true},
		{name: "tiny chart", mutate: func(c *Config) { c.Charts.Width = 10 }, wantErr: true},
		{
			name: "missing telegram token when enabled",
			mutate: func(c *Config) {
				c.Telegram.Enabled = true
				c.Telegram.ChatID = "1"
			},
			wantErr: true,
		},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: true},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

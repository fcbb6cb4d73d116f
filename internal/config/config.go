package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Server   ServerConfig   `mapstructure:"server"`
	Charts   ChartsConfig   `mapstructure:"charts"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BackendConfig holds the simulation server connection settings
type BackendConfig struct {
	Scheme              string        `mapstructure:"scheme"`
	Host                string        `mapstructure:"host"`
	Port                int           `mapstructure:"port"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RetryDelayBase      time.Duration `mapstructure:"retry_delay_base"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
}

// BaseURL joins scheme, host and port, e.g. http://localhost:8000.
func (b BackendConfig) BaseURL() string {
	u := url.URL{
		Scheme: b.Scheme,
		Host:   b.Host + ":" + strconv.Itoa(b.Port),
	}
	return u.String()
}

// ServerConfig holds the dashboard HTTP server settings
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReleaseMode    bool     `mapstructure:"release_mode"`
}

// ChartsConfig holds demand chart dimensions in pixels
type ChartsConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	NotifyResults  bool          `mapstructure:"notify_results"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// MARKETSTATE_BACKEND_HOST overrides backend.host
	v.SetEnvPrefix("MARKETSTATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.scheme", "http")
	v.SetDefault("backend.host", "localhost")
	v.SetDefault("backend.port", 8000)
	v.SetDefault("backend.poll_interval", "1s")
	v.SetDefault("backend.timeout", "5s")
	v.SetDefault("backend.max_retries", 1) // ticks are 1s apart, retrying would overlap the next tick
	v.SetDefault("backend.retry_delay_base", "200ms")
	v.SetDefault("backend.max_idle_conns", 20)
	v.SetDefault("backend.max_idle_conns_per_host", 10)
	v.SetDefault("backend.idle_conn_timeout", "90s")

	v.SetDefault("server.addr", ":8050")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.release_mode", false)

	v.SetDefault("charts.width", 640)
	v.SetDefault("charts.height", 280)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")
	v.SetDefault("telegram.notify_results", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Backend.Scheme != "http" && c.Backend.Scheme != "https" {
		return fmt.Errorf("backend.scheme must be http or https")
	}
	if c.Backend.Host == "" {
		return fmt.Errorf("backend.host is required")
	}
	if c.Backend.Port < 1 || c.Backend.Port > 65535 {
		return fmt.Errorf("backend.port must be between 1 and 65535")
	}
	if c.Backend.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("backend.poll_interval must be at least 100ms")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	if c.Backend.MaxRetries < 1 {
		return fmt.Errorf("backend.max_retries must be at least 1")
	}
	if c.Backend.RetryDelayBase < 0 {
		return fmt.Errorf("backend.retry_delay_base must not be negative")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if c.Charts.Width < 100 || c.Charts.Height < 100 {
		return fmt.Errorf("charts.width and charts.height must be at least 100")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

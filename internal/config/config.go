package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all system-wide settings. Values come from GHOUSE_-prefixed
// environment variables with the defaults below.
type Config struct {
	App       AppConfig       `split_words:"true"`
	HTTP      HTTPConfig      `split_words:"true"`
	Database  DatabaseConfig  `split_words:"true"`
	MQTT      MQTTConfig      `split_words:"true"`
	JWT       JWTConfig       `split_words:"true"`
	Telegram  TelegramConfig  `split_words:"true"`
	WebSocket WebSocketConfig `envconfig:"WEBSOCKET"`
}

type AppConfig struct {
	Env      string `default:"development"`
	LogLevel string `default:"info" split_words:"true"`
}

type HTTPConfig struct {
	Host         string        `default:"0.0.0.0"`
	Port         int           `default:"8000"`
	ReadTimeout  time.Duration `default:"30s" split_words:"true"`
	WriteTimeout time.Duration `default:"30s" split_words:"true"`
}

type DatabaseConfig struct {
	Path    string        `default:"./ghouse.db"`
	Timeout time.Duration `default:"30s"`
}

type MQTTConfig struct {
	Broker   string `default:"tcp://localhost:1883"`
	ClientID string `default:"ghouse_backend" split_words:"true"`
	Username string `default:"ghouse"`
	Password string
	// Namespace is the leading topic segment for all device topics.
	Namespace string `default:"ghouse"`
	QoS       byte   `default:"0"`
}

type JWTConfig struct {
	Secret       string        `default:"change_me_in_production"`
	AccessExpiry time.Duration `default:"1h" split_words:"true"`
}

type TelegramConfig struct {
	BotToken string `split_words:"true"`
	// APIBase is overridable for tests; empty means the public Bot API.
	APIBase string `split_words:"true"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `default:"30s" split_words:"true"`
	ReadTimeout  time.Duration `default:"60s" split_words:"true"`
	WriteTimeout time.Duration `default:"10s" split_words:"true"`
	BufferSize   int           `default:"100" split_words:"true"`
}

// Load reads configuration from the environment, falling back to defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("ghouse", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("MQTT broker cannot be empty")
	}
	if c.MQTT.ClientID == "" {
		return fmt.Errorf("MQTT client ID cannot be empty")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret cannot be empty")
	}
	if c.JWT.AccessExpiry <= 0 {
		return fmt.Errorf("JWT access expiry must be positive")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket read timeout must be positive")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	return nil
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

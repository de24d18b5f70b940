// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Realtime      RealtimeConfig     `mapstructure:"realtime"`
	Polling       PollingConfig      `mapstructure:"polling"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name           string `mapstructure:"name"`
	Version        string `mapstructure:"version"`
	Environment    string `mapstructure:"environment"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// ServerConfig holds the HTTP/websocket listen settings of the hub.
type ServerConfig struct {
	Address        string `mapstructure:"address"`
	ReadTimeout    int    `mapstructure:"read_timeout"`    // seconds
	WriteTimeout   int    `mapstructure:"write_timeout"`   // seconds
	ShutdownGrace  int    `mapstructure:"shutdown_grace"`  // seconds
	MetricsEnabled bool   `mapstructure:"metrics_enabled"` // expose /metrics
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RealtimeConfig holds the client-side connection settings: where the hub
// lives and how reconnection backoff behaves.
type RealtimeConfig struct {
	URL               string  `mapstructure:"url"`
	BackoffBaseMs     int     `mapstructure:"backoff_base_ms"`
	BackoffMaxMs      int     `mapstructure:"backoff_max_ms"`
	BackoffJitter     float64 `mapstructure:"backoff_jitter"` // 0..1 fraction
	HandshakeTimeout  int     `mapstructure:"handshake_timeout"` // seconds
	WriteTimeoutSec   int     `mapstructure:"write_timeout"`
	PongTimeoutSec    int     `mapstructure:"pong_timeout"`
}

// PollingConfig drives the fallback poller used while the real-time channel
// is down.
type PollingConfig struct {
	IntervalSec int `mapstructure:"interval"`
	PageLimit   int `mapstructure:"page_limit"`
}

// NotificationConfig holds delivery settings for the dispatcher.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled           bool   `mapstructure:"enabled"`
		PriorityThreshold string `mapstructure:"priority_threshold"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	API struct {
		BaseURL string `mapstructure:"base_url"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"api"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

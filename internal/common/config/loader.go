// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration in layers: .env file, configs/config.yaml, an
// environment-specific config.<env>.yaml overlay, then environment variable
// overrides (e.g. DATABASE_POSTGRES_HOST).
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // overlay is optional

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or the project root so
// the binary behaves the same when run from cmd/ subdirectories or tests.
func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}
	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "notification-hub"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8085"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15
	}
	if cfg.Server.ShutdownGrace == 0 {
		cfg.Server.ShutdownGrace = 10
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 20
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = "localhost:6379"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "notifications"
	}
	if cfg.Realtime.URL == "" {
		cfg.Realtime.URL = "ws://localhost:8085/ws"
	}
	if cfg.Realtime.BackoffBaseMs == 0 {
		cfg.Realtime.BackoffBaseMs = 500
	}
	if cfg.Realtime.BackoffMaxMs == 0 {
		cfg.Realtime.BackoffMaxMs = 30000
	}
	if cfg.Realtime.BackoffJitter == 0 {
		cfg.Realtime.BackoffJitter = 0.2
	}
	if cfg.Realtime.HandshakeTimeout == 0 {
		cfg.Realtime.HandshakeTimeout = 10
	}
	if cfg.Realtime.WriteTimeoutSec == 0 {
		cfg.Realtime.WriteTimeoutSec = 10
	}
	if cfg.Realtime.PongTimeoutSec == 0 {
		cfg.Realtime.PongTimeoutSec = 60
	}
	if cfg.Polling.IntervalSec == 0 {
		cfg.Polling.IntervalSec = 30
	}
	if cfg.Polling.PageLimit == 0 {
		cfg.Polling.PageLimit = 20
	}
	if cfg.Notifications.SMS.PriorityThreshold == "" {
		cfg.Notifications.SMS.PriorityThreshold = "high"
	}
	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = "us-east-1"
	}
	if cfg.Notifications.API.Timeout == 0 {
		cfg.Notifications.API.Timeout = 10000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Realtime.BackoffBaseMs > cfg.Realtime.BackoffMaxMs {
		return fmt.Errorf("realtime.backoff_base_ms (%d) exceeds backoff_max_ms (%d)",
			cfg.Realtime.BackoffBaseMs, cfg.Realtime.BackoffMaxMs)
	}
	if cfg.Realtime.BackoffJitter < 0 || cfg.Realtime.BackoffJitter > 1 {
		return fmt.Errorf("realtime.backoff_jitter must be within [0,1], got %v",
			cfg.Realtime.BackoffJitter)
	}
	if cfg.Polling.IntervalSec < 1 {
		return fmt.Errorf("polling.interval must be at least 1 second")
	}
	return nil
}

// Package config loads layered worker configuration: built-in defaults,
// an optional JSON file, then environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all etlworker configuration.
type Config struct {
	ObjectStore ObjectStoreConfig `json:"object_store"`
	MessageBus  MessageBusConfig  `json:"message_bus"`
	Database    DatabaseConfig    `json:"database"`
	Dashboard   DashboardConfig   `json:"dashboard"`
	Worker      WorkerConfig      `json:"worker"`
	Dedup       DedupConfig       `json:"dedup"`
	Logging     LoggingConfig     `json:"logging"`
}

// ObjectStoreConfig describes how to reach the S3-compatible bucket.
type ObjectStoreConfig struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	UseTLS    bool   `json:"use_tls"`
}

// MessageBusConfig describes the downstream event bus topic.
type MessageBusConfig struct {
	BrokerEndpoint string `json:"broker_endpoint"`
	Topic          string `json:"topic"`
}

// DatabaseConfig describes the Postgres job-history database. The
// DATABASE_* variables forwarded to shell handlers are copied from the
// worker's own process environment, not from this struct.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Table    string `json:"table"`
	Enabled  bool   `json:"enabled"`
}

// DashboardConfig describes the operator HTTP+WebSocket surface.
type DashboardConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Enabled bool   `json:"enabled"`
}

// WorkerConfig carries worker identity and scheduling knobs.
type WorkerConfig struct {
	Name              string `json:"name"`
	ConfigSuffix      string `json:"config_suffix"`
	ChildPollInterval int    `json:"child_poll_interval_ms"`
}

// DedupConfig sizes the notification de-duplication bloom filter.
type DedupConfig struct {
	ExpectedItems     uint    `json:"expected_items"`
	FalsePositiveRate float64 `json:"false_positive_rate"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
	File   string `json:"file"`
}

// DefaultConfig returns configuration suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		ObjectStore: ObjectStoreConfig{
			Endpoint: "localhost:9000",
			Bucket:   "etl",
			UseTLS:   false,
		},
		MessageBus: MessageBusConfig{
			BrokerEndpoint: "localhost:9092",
			Topic:          "etl.job-events",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "etlworker",
			Table:   "job_history",
			Enabled: false,
		},
		Dashboard: DashboardConfig{
			Host:    "localhost",
			Port:    8090,
			Enabled: true,
		},
		Worker: WorkerConfig{
			Name:              "castiron",
			ConfigSuffix:      ".toml",
			ChildPollInterval: 500,
		},
		Dedup: DedupConfig{
			ExpectedItems:     100_000,
			FalsePositiveRate: 0.01,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "console",
		},
	}
}

// Load reads defaults, optionally overlays a JSON file, applies
// environment overrides, then validates.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	if v := os.Getenv("ETL_OBJECTSTORE_ENDPOINT"); v != "" {
		c.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("ETL_OBJECTSTORE_ACCESS_KEY"); v != "" {
		c.ObjectStore.AccessKey = v
	}
	if v := os.Getenv("ETL_OBJECTSTORE_SECRET_KEY"); v != "" {
		c.ObjectStore.SecretKey = v
	}
	if v := os.Getenv("ETL_OBJECTSTORE_BUCKET"); v != "" {
		c.ObjectStore.Bucket = v
	}
	if v := os.Getenv("ETL_OBJECTSTORE_TLS"); v != "" {
		c.ObjectStore.UseTLS = strings.EqualFold(v, "true")
	}

	if v := os.Getenv("ETL_MESSAGEBUS_ENDPOINT"); v != "" {
		c.MessageBus.BrokerEndpoint = v
	}
	if v := os.Getenv("ETL_MESSAGEBUS_TOPIC"); v != "" {
		c.MessageBus.Topic = v
	}

	if v := os.Getenv("DATABASE_HOST"); v != "" {
		c.Database.Host = v
		c.Database.Enabled = true
	}
	if v := os.Getenv("DATABASE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v := os.Getenv("DATABASE_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DATABASE_TABLE"); v != "" {
		c.Database.Table = v
	}

	if v := os.Getenv("DASHBOARD_HOST"); v != "" {
		c.Dashboard.Host = v
	}
	if v := os.Getenv("DASHBOARD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Dashboard.Port = port
		}
	}
	if v := os.Getenv("DASHBOARD_ENABLED"); v != "" {
		c.Dashboard.Enabled = strings.EqualFold(v, "true")
	}

	if v := os.Getenv("ETL_WORKER_NAME"); v != "" {
		c.Worker.Name = v
	}

	if v := os.Getenv("ETL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ETL_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("ETL_LOG_OUTPUT"); v != "" {
		c.Logging.Output = v
	}
	if v := os.Getenv("ETL_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.ObjectStore.Bucket == "" {
		return fmt.Errorf("object store bucket cannot be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	validOutputs := map[string]bool{"console": true, "file": true, "both": true}
	if !validOutputs[strings.ToLower(c.Logging.Output)] {
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	if c.Dashboard.Enabled && (c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("dashboard port must be between 1 and 65535")
	}

	if c.Worker.ConfigSuffix == "" {
		return fmt.Errorf("worker config suffix cannot be empty")
	}

	if c.Worker.ChildPollInterval <= 0 {
		return fmt.Errorf("child poll interval must be positive")
	}

	if c.Dedup.ExpectedItems == 0 {
		return fmt.Errorf("dedup expected items must be positive")
	}
	if c.Dedup.FalsePositiveRate <= 0 || c.Dedup.FalsePositiveRate >= 1 {
		return fmt.Errorf("dedup false positive rate must be in (0,1)")
	}

	return nil
}

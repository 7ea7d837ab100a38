// Package etlconfig loads the YAML configuration document that drives a
// binance-etl process (spec.md §6), grounded on the teacher's
// internal/config.MasterConfig / gopkg.in/yaml.v3 convention.
package etlconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigEnvVar is the environment variable holding the path to the YAML
// configuration document (spec.md §6).
const ConfigEnvVar = "BINANCE_ETL_CONFIG"

// LoggerConfig controls zerolog initialization.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PostgresConfig configures the postgres storage backend.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NotifyConfig configures the NATS JetStream flush-notification decorator.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Backend   string         `yaml:"backend"` // "csv" | "postgres"
	BasePath  string         `yaml:"base_path"`
	BatchSize int            `yaml:"batch_size"`
	Postgres  PostgresConfig `yaml:"postgres"`
	Notify    NotifyConfig   `yaml:"notify"`
}

// Subscription is one (exchange, market, symbol) pair and the event
// streams to record for it (spec.md §6, "exchange.market.symbol.event
// dotted identifiers").
type Subscription struct {
	Exchange string   `yaml:"exchange"`
	Market   string   `yaml:"market"`
	Symbol   string   `yaml:"symbol"`
	Events   []string `yaml:"events"`
}

// HasEvent reports whether event is listed for this subscription.
func (s Subscription) HasEvent(event string) bool {
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Config is the root configuration document.
type Config struct {
	Logger        LoggerConfig   `yaml:"logger"`
	Storage       StorageConfig  `yaml:"storage"`
	Subscriptions []Subscription `yaml:"subscriptions"`
}

// Load reads and parses the YAML document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	for i := range cfg.Subscriptions {
		if cfg.Subscriptions[i].Market == "" {
			cfg.Subscriptions[i].Market = "spot"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadFromEnv loads the document at the path named by ConfigEnvVar.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv(ConfigEnvVar)
	if path == "" {
		return nil, fmt.Errorf("%s is not set", ConfigEnvVar)
	}
	return Load(path)
}

// Validate checks the minimal structural requirements of a Config.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "csv", "":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required when storage.backend is postgres")
		}
	default:
		return fmt.Errorf("unsupported storage.backend: %s", c.Storage.Backend)
	}

	if len(c.Subscriptions) == 0 {
		return fmt.Errorf("at least one subscription is required")
	}
	for i, sub := range c.Subscriptions {
		if sub.Exchange == "" {
			return fmt.Errorf("subscriptions[%d].exchange cannot be empty", i)
		}
		if sub.Symbol == "" {
			return fmt.Errorf("subscriptions[%d].symbol cannot be empty", i)
		}
		if len(sub.Events) == 0 {
			return fmt.Errorf("subscriptions[%d].events cannot be empty", i)
		}
	}
	return nil
}

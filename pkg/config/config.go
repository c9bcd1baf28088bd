// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package config

import (
	"fmt"
	"time"
)

// Event store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the typed configuration of the ticketing engine.
type Config struct {
	Ledger     LedgerConfig     `mapstructure:"ledger" yaml:"ledger"`
	Reclaimer  ReclaimerConfig  `mapstructure:"reclaimer" yaml:"reclaimer"`
	Saga       SagaConfig       `mapstructure:"saga" yaml:"saga"`
	EventStore EventStoreConfig `mapstructure:"event_store" yaml:"event_store"`
	Redis      RedisConfig      `mapstructure:"redis" yaml:"redis"`
	Postgres   PostgresConfig   `mapstructure:"postgres" yaml:"postgres"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
	Sentry     SentryConfig     `mapstructure:"sentry" yaml:"sentry"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// LedgerConfig controls reservation holds.
type LedgerConfig struct {
	HoldTTL               time.Duration `mapstructure:"hold_ttl" yaml:"hold_ttl"`
	DefaultPerPersonLimit int           `mapstructure:"default_per_person_limit" yaml:"default_per_person_limit"`
}

// ReclaimerConfig controls the expired-hold sweep.
type ReclaimerConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// SagaConfig bounds outbound calls made by saga steps.
type SagaConfig struct {
	StepTimeout         time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	CompensationTimeout time.Duration `mapstructure:"compensation_timeout" yaml:"compensation_timeout"`
}

// EventStoreConfig selects where saga events are kept.
type EventStoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
}

// RedisConfig configures the Redis event store.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr" yaml:"addr"`
	Password  string        `mapstructure:"password" yaml:"password"`
	DB        int           `mapstructure:"db" yaml:"db"`
	KeyPrefix string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// PostgresConfig configures the PostgreSQL event store.
type PostgresConfig struct {
	DSN          string `mapstructure:"dsn" yaml:"dsn"`
	Table        string `mapstructure:"table" yaml:"table"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate" yaml:"auto_migrate"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName  string  `mapstructure:"service_name" yaml:"service_name"`
	Exporter     string  `mapstructure:"exporter" yaml:"exporter"`
	Endpoint     string  `mapstructure:"endpoint" yaml:"endpoint"`
	SamplingRate float64 `mapstructure:"sampling_rate" yaml:"sampling_rate"`
}

// SentryConfig controls compensation-failure alerting through Sentry.
type SentryConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN         string `mapstructure:"dsn" yaml:"dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// LoggingConfig controls the global zap logger.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// RegisterDefaults installs the built-in defaults on m.
func RegisterDefaults(m *Manager) {
	m.SetDefault("ledger.hold_ttl", 15*time.Minute)
	m.SetDefault("ledger.default_per_person_limit", 10)
	m.SetDefault("reclaimer.interval", 5*time.Minute)
	m.SetDefault("saga.step_timeout", 10*time.Second)
	m.SetDefault("saga.compensation_timeout", 30*time.Second)
	m.SetDefault("event_store.backend", BackendMemory)
	m.SetDefault("redis.addr", "localhost:6379")
	m.SetDefault("redis.password", "")
	m.SetDefault("redis.db", 0)
	m.SetDefault("redis.key_prefix", "ticketing:")
	m.SetDefault("redis.ttl", 7*24*time.Hour)
	m.SetDefault("postgres.dsn", "")
	m.SetDefault("postgres.table", "saga_events")
	m.SetDefault("postgres.max_open_conns", 10)
	m.SetDefault("postgres.max_idle_conns", 5)
	m.SetDefault("postgres.auto_migrate", true)
	m.SetDefault("metrics.enabled", false)
	m.SetDefault("metrics.addr", ":9090")
	m.SetDefault("tracing.enabled", false)
	m.SetDefault("tracing.service_name", "ticketing")
	m.SetDefault("tracing.exporter", "console")
	m.SetDefault("tracing.endpoint", "")
	m.SetDefault("tracing.sampling_rate", 1.0)
	m.SetDefault("sentry.enabled", false)
	m.SetDefault("sentry.dsn", "")
	m.SetDefault("sentry.environment", "development")
	m.SetDefault("logging.level", "info")
}

// Load builds a Manager from options, applies defaults and file layers, and
// returns the validated typed configuration.
func Load(options Options) (*Config, *Manager, error) {
	m := NewManager(options)
	RegisterDefaults(m)
	if err := m.Load(); err != nil {
		return nil, nil, err
	}
	var cfg Config
	if err := m.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, m, nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Ledger.HoldTTL <= 0 {
		return fmt.Errorf("ledger.hold_ttl must be positive, got %s", c.Ledger.HoldTTL)
	}
	if c.Ledger.DefaultPerPersonLimit <= 0 {
		return fmt.Errorf("ledger.default_per_person_limit must be positive, got %d", c.Ledger.DefaultPerPersonLimit)
	}
	if c.Reclaimer.Interval <= 0 {
		return fmt.Errorf("reclaimer.interval must be positive, got %s", c.Reclaimer.Interval)
	}
	if c.Saga.StepTimeout <= 0 {
		return fmt.Errorf("saga.step_timeout must be positive, got %s", c.Saga.StepTimeout)
	}
	if c.Saga.CompensationTimeout <= 0 {
		return fmt.Errorf("saga.compensation_timeout must be positive, got %s", c.Saga.CompensationTimeout)
	}

	switch c.EventStore.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis event store")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for the postgres event store")
		}
		if c.Postgres.Table == "" {
			return fmt.Errorf("postgres.table must not be empty")
		}
	default:
		return fmt.Errorf("unsupported event_store.backend %q", c.EventStore.Backend)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	if c.Sentry.Enabled && c.Sentry.DSN == "" {
		return fmt.Errorf("sentry.dsn is required when sentry is enabled")
	}
	return nil
}

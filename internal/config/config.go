// Package config centralises configuration parsing for the signup service.
package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
)

// Config captures runtime configuration values for the API server.
type Config struct {
	HTTPAddress     string        `env:"HTTP_ADDRESS"     envDefault:":8080"`
	StaticDir       string        `env:"STATIC_DIR"       envDefault:"static"`
	AllowedOrigin   string        `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:5173"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	Log             LogConfig     `envPrefix:"LOG_"`
	RateLimit       RateConfig    `envPrefix:"RATE_LIMIT_"`
	Tracing         TracingConfig `envPrefix:"OTEL_"`
	Outbox          OutboxConfig
}

// LogConfig selects slog level and output format.
type LogConfig struct {
	Level  string `env:"LEVEL"  envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// RateConfig bounds mutating requests per client. A zero RPS disables limiting.
type RateConfig struct {
	RPS   float64 `env:"RPS"   envDefault:"20"`
	Burst int     `env:"BURST" envDefault:"40"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool   `env:"ENABLED"      envDefault:"false"`
	Endpoint    string `env:"ENDPOINT"     envDefault:"localhost:4318"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"signup-service"`
}

// OutboxConfig configures roster event delivery. Empty KafkaBrokers disables publishing.
type OutboxConfig struct {
	KafkaBrokers      []string      `env:"KAFKA_BROKERS"        envSeparator:","`
	Topic             string        `env:"ROSTER_TOPIC"         envDefault:"activity_roster_events"`
	SchemaRegistryURL string        `env:"SCHEMA_REGISTRY_URL"`
	PollInterval      time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	BatchSize         int           `env:"OUTBOX_BATCH_SIZE"    envDefault:"25"`
	Capacity          int           `env:"OUTBOX_CAPACITY"      envDefault:"1024"`
	MaxAttempts       int           `env:"OUTBOX_MAX_ATTEMPTS"  envDefault:"5"`
}

// Enabled reports whether roster events should be published.
func (c OutboxConfig) Enabled() bool {
	return len(c.KafkaBrokers) > 0
}

// ConsumerConfig captures configuration for the roster audit consumer.
type ConsumerConfig struct {
	KafkaBrokers    []string  `env:"KAFKA_BROKERS"     envSeparator:"," envDefault:"kafka:9092"`
	ConsumerGroupID string    `env:"CONSUMER_GROUP_ID" envDefault:"signup-roster-audit"`
	ConsumerTopics  []string  `env:"CONSUMER_TOPICS"   envSeparator:"," envDefault:"activity_roster_events"`
	PostgresURL     string    `env:"POSTGRES_URL"`
	MetricsAddress  string    `env:"METRICS_ADDRESS"   envDefault:":9102"`
	Log             LogConfig `envPrefix:"LOG_"`
}

// Load reads environment variables into Config, applying defaults for local dev.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Outbox.KafkaBrokers = trimAll(cfg.Outbox.KafkaBrokers)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConsumer reads environment variables into ConsumerConfig.
func LoadConsumer() (ConsumerConfig, error) {
	var cfg ConsumerConfig
	if err := env.Parse(&cfg); err != nil {
		return ConsumerConfig{}, fmt.Errorf("parse consumer config: %w", err)
	}
	cfg.KafkaBrokers = trimAll(cfg.KafkaBrokers)
	cfg.ConsumerTopics = trimAll(cfg.ConsumerTopics)
	if len(cfg.ConsumerTopics) == 0 {
		return ConsumerConfig{}, fmt.Errorf("CONSUMER_TOPICS must name at least one topic")
	}
	return cfg, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c Config) validate() error {
	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be > 0, got %d", c.Outbox.BatchSize)
	}
	if c.Outbox.Capacity <= 0 {
		return fmt.Errorf("OUTBOX_CAPACITY must be > 0, got %d", c.Outbox.Capacity)
	}
	if c.Outbox.PollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be > 0")
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	return nil
}

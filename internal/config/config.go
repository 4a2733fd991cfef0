// Package config defines the process configuration for the notification event
// aggregation service. Configuration is loaded once at startup and is
// immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> *_FILE secret pointers (Lowest)
//
// Any missing required value or invalid format is reported as a ConfigError
// and the binaries exit immediately (fail fast).
package config

import (
	"time"

	"fdm/internal/types"
)

// SecretString is an alias for types.SecretString so that config consumers do
// not need to import the types package for redacted values.
type SecretString = types.SecretString

// Store drivers accepted by STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the top-level configuration struct. Sub-components receive only
// the subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev test perf-test prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"fcp-sfd-data"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Store         StoreConfig
	AWS           AWSConfig
	Consumer      ConsumerConfig
	Breaker       BreakerConfig
	Observability ObservabilityConfig
	Feature       FeatureConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"3000"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

// StoreConfig selects the event store backend and holds its connection and
// pool tuning parameters.
type StoreConfig struct {
	Driver string       `envconfig:"STORE_DRIVER" default:"postgres" validate:"oneof=postgres sqlite"`
	URL    SecretString `envconfig:"DATABASE_URL" validate:"required_if=Driver postgres"`

	// SQLitePath is a file path or ":memory:".
	SQLitePath string `envconfig:"SQLITE_PATH" default:"fdm.db"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2" validate:"min=0,ltefield=MaxConns"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"eu-west-2"`

	// EventsQueueURL is the SQS queue the consumer polls and the simulator
	// publishes to.
	EventsQueueURL string `envconfig:"SQS_EVENTS_QUEUE_URL" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// ConsumerConfig tunes the SQS long-poll loop.
type ConsumerConfig struct {
	Enabled         bool          `envconfig:"CONSUMER_ENABLED" default:"true"`
	MaxMessages     int32         `envconfig:"SQS_MAX_MESSAGES" default:"10" validate:"min=1,max=10"`
	WaitTime        time.Duration `envconfig:"SQS_WAIT_TIME" default:"10s" validate:"max=20s"`
	PollingInterval time.Duration `envconfig:"POLLING_INTERVAL" default:"1s"`
}

// BreakerConfig tunes the storage circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"5" validate:"min=1"`
	OpenTimeout time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s"`
	Interval    time.Duration `envconfig:"BREAKER_INTERVAL" default:"1m"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"FDM"`
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
}

// FeatureConfig holds switches for optional surfaces.
type FeatureConfig struct {
	APIEnabled        bool `envconfig:"API_ENABLED" default:"true"`
	SimulationEnabled bool `envconfig:"SIMULATION_ENABLED" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSecretResolution indicates a *_FILE secret pointer could not be read.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

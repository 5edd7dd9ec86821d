// Package config defines the process configuration for the notification
// worker and API binaries. Configuration is loaded once at startup and is
// immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or invalid format is reported as a *ConfigError
// and the binary exits before touching the queue or the database.
package config

import (
	"time"

	"github.com/ToFood/tofood-zip/internal/types"
)

// SecretString is an alias for types.SecretString so configuration secrets
// are redacted when the Config is logged.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Components receive only the
// sub-struct they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"tofood-notifications"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Runtime selects how the worker binary consumes the queue: "poll" runs
	// the long-poll loop, "lambda" serves SQS event batches.
	Runtime string `envconfig:"RUNTIME" default:"poll" validate:"oneof=poll lambda"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Worker        WorkerConfig
	Broker        BrokerConfig
	Throttle      ThrottleConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// IsLocal reports whether the process runs against local stand-ins: stub
// brokers, no CloudWatch, no SSM.
func (c *Config) IsLocal() bool {
	return c.Environment == localEnv
}

// ServerConfig holds the status/intake HTTP API settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`

	// APITokenHash is the bcrypt hash of the bearer token collaborators
	// present on /v1 routes. Empty disables authentication (local only).
	APITokenHash SecretString `envconfig:"API_TOKEN_HASH"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"1" validate:"min=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	NotificationQueue string `envconfig:"SQS_NOTIFICATIONS" validate:"required,url"`
	DlqURL            string `envconfig:"SQS_DLQ" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// WorkerConfig tunes the queue consumer and the stale-claim reaper.
type WorkerConfig struct {
	Concurrency int   `envconfig:"WORKER_CONCURRENCY" default:"1" validate:"min=1,max=64"`
	BatchSize   int32 `envconfig:"WORKER_BATCH_SIZE" default:"5" validate:"min=1,max=10"`
	WaitSeconds int32 `envconfig:"WORKER_WAIT_SECONDS" default:"10" validate:"min=0,max=20"`

	ReceiveBackoff    time.Duration `envconfig:"WORKER_RECEIVE_BACKOFF" default:"1s"`
	MaxReceiveBackoff time.Duration `envconfig:"WORKER_MAX_RECEIVE_BACKOFF" default:"30s"`
	DispatchTimeout   time.Duration `envconfig:"WORKER_DISPATCH_TIMEOUT" default:"60s"`

	// ClaimLease bounds how long a row may sit in Processing before the
	// reaper hands it back to the queue. Keep it above DispatchTimeout.
	ClaimLease     time.Duration `envconfig:"WORKER_CLAIM_LEASE" default:"10m"`
	ReaperInterval time.Duration `envconfig:"WORKER_REAPER_INTERVAL" default:"1m"`
	ReaperBatch    int           `envconfig:"WORKER_REAPER_BATCH" default:"100" validate:"min=1"`
	EnableReaper   bool          `envconfig:"WORKER_ENABLE_REAPER" default:"true"`
}

// BrokerConfig holds transport defaults shared by every broker service.
type BrokerConfig struct {
	SMTPDefaultHost string        `envconfig:"SMTP_DEFAULT_HOST" default:"smtp.gmail.com"`
	SMTPDefaultPort int           `envconfig:"SMTP_DEFAULT_PORT" default:"587" validate:"min=1,max=65535"`
	SendTimeout     time.Duration `envconfig:"BROKER_SEND_TIMEOUT" default:"30s"`
	HTTPTimeout     time.Duration `envconfig:"BROKER_HTTP_TIMEOUT" default:"10s"`

	// SESConfigurationSet tags SES sends for event tracking. Optional.
	SESConfigurationSet string `envconfig:"SES_CONFIGURATION_SET"`
}

// ThrottleConfig selects the shared gate applied before each broker send,
// on top of the per-service post-send interval.
type ThrottleConfig struct {
	Mode          string       `envconfig:"THROTTLE_MODE" default:"none" validate:"oneof=none process redis"`
	RedisAddr     string       `envconfig:"REDIS_ADDR" validate:"required_if=Mode redis"`
	RedisPassword SecretString `envconfig:"REDIS_PASSWORD"`
	RedisDB       int          `envconfig:"REDIS_DB" default:"0"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"ToFood/Notifications"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
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
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

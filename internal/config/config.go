// Package config defines the process configuration for the AI Growth billing
// service. Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format aborts startup.
package config

import (
	"time"

	"aigrowth/internal/types"
)

// SecretString is an alias for types.SecretString so callers of this package
// do not need to import types just to unmask a credential.
type SecretString = types.SecretString

// Config is the top-level configuration struct.
// Sub-components receive only the section they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"aigrowth-billing"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server    ServerConfig
	Database  DatabaseConfig
	Yampi     YampiConfig
	RateLimit RateLimitConfig
	AWS       AWSConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"5000"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
	RunMigrations     bool          `envconfig:"RUN_MIGRATIONS" default:"true"`
}

// YampiConfig holds the checkout provider credentials and webhook trust policy.
type YampiConfig struct {
	APIBaseURL string        `envconfig:"YAMPI_API_BASE" default:"https://api.yampi.com.br/v1" validate:"required,url"`
	Token      SecretString  `envconfig:"YAMPI_TOKEN" validate:"required"`
	Secret     SecretString  `envconfig:"YAMPI_SECRET" validate:"required"`
	Alias      string        `envconfig:"YAMPI_ALIAS" default:"ai-growth"`
	Timeout    time.Duration `envconfig:"YAMPI_TIMEOUT" default:"20s"`

	// RequireSignature rejects webhook deliveries that carry no signature
	// header. When false they are processed and logged as unverified.
	RequireSignature bool `envconfig:"YAMPI_REQUIRE_SIGNATURE" default:"false"`
}

// RateLimitConfig throttles the public checkout and payment endpoints.
// A zero PerSecond disables limiting.
type RateLimitConfig struct {
	PerSecond float64 `envconfig:"RATE_LIMIT_PER_SECOND" default:"5"`
	Burst     int     `envconfig:"RATE_LIMIT_BURST" default:"10"`
}

// AWSConfig is only consulted when secrets are resolved from SSM.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"sa-east-1"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

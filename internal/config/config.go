// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import "time"

// Config holds all application configuration loaded from environment variables.
// This struct uses github.com/caarlos0/env for automatic environment variable parsing.
//
// ============================================================
// DEVELOPER: Add new configuration fields here.
// ============================================================
// Use struct tags to define:
// - `env:"VAR_NAME"` - the environment variable name
// - `env:",required"` - make it required
// - `envDefault:"value"` - set a default value
//
// After adding fields here, update loader.go Validate() if custom
// validation is needed.
// ============================================================
type Config struct {
	// ============================================================
	// Server configuration
	// ============================================================
	GRPCPort    int    `env:"GRPC_PORT" envDefault:"6565"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"ExtendHyperstreakGuard"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// ============================================================
	// AccelByte configuration
	// ============================================================
	// Activation analytics are only pushed to the platform when
	// client credentials are present.
	ABNamespace    string `env:"AB_NAMESPACE" envDefault:"accelbyte"`
	ABBaseURL      string `env:"AB_BASE_URL"`
	ABClientID     string `env:"AB_CLIENT_ID"`
	ABClientSecret string `env:"AB_CLIENT_SECRET"`

	ActivationStatCode string `env:"ACTIVATION_STAT_CODE" envDefault:"hyperstreak-activations"`

	// ============================================================
	// Redis configuration
	// ============================================================
	RedisHost         string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort         string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
	RedisMaxRetries   int    `env:"REDIS_MAX_RETRIES" envDefault:"5"`
	RedisRetryDelayMs int    `env:"REDIS_RETRY_DELAY_MS" envDefault:"1000"`

	// ============================================================
	// Progression configuration
	// ============================================================
	RulesPath string `env:"RULES_PATH" envDefault:"config/hyperstreak.yaml"`

	// ============================================================
	// Validator configuration
	// ============================================================
	ValidatorMaxRetries     uint64        `env:"VALIDATOR_MAX_RETRIES" envDefault:"3"`
	ValidatorRetryInterval  time.Duration `env:"VALIDATOR_RETRY_INTERVAL" envDefault:"100ms"`
	CorrectionSweepInterval time.Duration `env:"CORRECTION_SWEEP_INTERVAL" envDefault:"30s"`

	// ============================================================
	// Audit history configuration
	// ============================================================
	// Leave AUDIT_DB_DSN empty to disable the flag history.
	AuditDBDriver string `env:"AUDIT_DB_DRIVER" envDefault:"sqlite3"`
	AuditDBDSN    string `env:"AUDIT_DB_DSN"`

	// ============================================================
	// Telemetry configuration
	// ============================================================
	OtelEnabled bool `env:"OTEL_ENABLED" envDefault:"true"`
}

// PlatformEnabled reports whether AccelByte client credentials are configured.
func (c *Config) PlatformEnabled() bool {
	return c.ABBaseURL != "" && c.ABClientID != "" && c.ABClientSecret != ""
}

// AuditEnabled reports whether the flag history database is configured.
func (c *Config) AuditEnabled() bool {
	return c.AuditDBDSN != ""
}

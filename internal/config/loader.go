// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Load reads configuration from environment variables.
// It attempts to load from .env file first (for local development),
// then parses environment variables into the Config struct.
func Load() (*Config, error) {
	// In production (Docker/K8s), environment variables are injected directly
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("no .env file found or error loading it: %v (this is normal in production)", err)
	} else {
		logrus.Infof("loaded environment variables from .env file")
	}

	return Parse()
}

// Parse parses the current environment into a validated Config.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate performs custom validation on the configuration.
func (c *Config) Validate() error {
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid GRPC_PORT: %d (must be 1-65535)", c.GRPCPort)
	}

	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid METRICS_PORT: %d (must be 1-65535)", c.MetricsPort)
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if c.PlatformEnabled() && c.ABNamespace == "" {
		return fmt.Errorf("AB_NAMESPACE is required when AccelByte credentials are set")
	}

	if c.ValidatorRetryInterval <= 0 {
		return fmt.Errorf("invalid VALIDATOR_RETRY_INTERVAL: %v (must be positive)", c.ValidatorRetryInterval)
	}

	if c.CorrectionSweepInterval < 0 {
		return fmt.Errorf("invalid CORRECTION_SWEEP_INTERVAL: %v (must not be negative)", c.CorrectionSweepInterval)
	}

	switch c.AuditDBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("invalid AUDIT_DB_DRIVER: %q (must be sqlite3 or postgres)", c.AuditDBDriver)
	}

	return nil
}

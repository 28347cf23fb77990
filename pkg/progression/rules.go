// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package progression

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// rulesFile is the on-disk layout of the rules configuration.
type rulesFile struct {
	Hyperstreak Rules `yaml:"hyperstreak"`
}

// LoadRules loads hyperstreak tunables from a YAML file.
// Supports environment variable expansion in the form ${VAR_NAME} or ${VAR_NAME:default}.
// Missing values fall back to DefaultRules.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	return ParseRules(data)
}

// ParseRules parses hyperstreak tunables from YAML bytes.
func ParseRules(data []byte) (Rules, error) {
	expanded := expandEnvVars(string(data))

	file := rulesFile{Hyperstreak: DefaultRules()}
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return Rules{}, fmt.Errorf("failed to parse YAML rules: %w", err)
	}

	if err := file.Hyperstreak.Validate(); err != nil {
		return Rules{}, fmt.Errorf("invalid rules: %w", err)
	}

	return file.Hyperstreak, nil
}

// Validate checks the tunables are usable by the state machine.
func (r Rules) Validate() error {
	if r.BarMax < 1 {
		return fmt.Errorf("bar_max must be at least 1, got %d", r.BarMax)
	}
	if r.Duration < 1 {
		return fmt.Errorf("duration must be at least 1, got %d", r.Duration)
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		parts := strings.SplitN(key, ":", 2)
		varName := parts[0]
		defaultValue := ""
		if len(parts) == 2 {
			defaultValue = parts[1]
		}

		value := os.Getenv(varName)
		if value == "" {
			return defaultValue
		}
		return value
	})
}

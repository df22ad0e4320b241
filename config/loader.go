package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "botevent.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Environment, "BOTEVENT_ENV")
	setString(&cfg.Fallback.Mode, "BOTEVENT_FALLBACK_MODE")
	setString(&cfg.Fallback.Priority, "BOTEVENT_FALLBACK_PRIORITY")
	setInt(&cfg.Quorum, "BOTEVENT_QUORUM")
	setDuration(&cfg.Usage.TTL, "BOTEVENT_USAGE_TTL")
}

// validate checks modes, priorities and limits.
func validate(cfg *Config) error {
	if cfg.Quorum < 0 {
		return errors.New("quorum must be >= 0")
	}
	if cfg.Usage.TTL < 0 {
		return errors.New("usage.ttl must be >= 0")
	}
	if _, err := cfg.Fallback.Behavior(); err != nil {
		return fmt.Errorf("fallback: %w", err)
	}
	for eventType, ec := range cfg.Events {
		if eventType == "" {
			return errors.New("events: empty event type")
		}
		if _, err := ec.Behavior(); err != nil {
			return fmt.Errorf("events.%s: %w", eventType, err)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

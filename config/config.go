// Package config loads publisher settings from YAML and the environment.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rbaliyan/botevent"
	"github.com/rbaliyan/botevent/transport/local"
	"github.com/rbaliyan/botevent/usage"
)

// Environments that enable development-mode usage tracking.
var developmentEnvironments = []string{"development", "dev", "test"}

// Config holds the settings for a publisher and its behavior registry.
type Config struct {
	Environment string                 `yaml:"environment"`
	Fallback    EventConfig            `yaml:"fallback"`
	Quorum      int                    `yaml:"quorum"`
	Usage       UsageConfig            `yaml:"usage"`
	Events      map[string]EventConfig `yaml:"events"`
}

// EventConfig describes one event type or "<namespace>/*" pattern.
type EventConfig struct {
	Mode          string `yaml:"mode"`
	Interceptable bool   `yaml:"interceptable"`
	Priority      string `yaml:"priority"`
}

// UsageConfig controls development-mode usage tracking.
type UsageConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Environment: "production",
		Fallback:    EventConfig{Mode: string(botevent.ModePassive)},
		Usage:       UsageConfig{TTL: 10 * time.Minute},
		Events:      map[string]EventConfig{},
	}
}

// Development reports whether the environment enables usage tracking.
func (c *Config) Development() bool {
	return slices.Contains(developmentEnvironments, strings.ToLower(strings.TrimSpace(c.Environment)))
}

// Behavior converts an event entry into a botevent.Behavior.
func (e EventConfig) Behavior() (botevent.Behavior, error) {
	mode, err := botevent.ParseMode(e.Mode)
	if err != nil {
		return botevent.Behavior{}, err
	}
	b := botevent.Behavior{Mode: mode, Interceptable: e.Interceptable}
	if e.Priority != "" {
		p, err := botevent.ParsePriority(e.Priority)
		if err != nil {
			return botevent.Behavior{}, err
		}
		b.DefaultPriority = p
	}
	return b, nil
}

// Registry builds a behavior registry from the configured events.
func (c *Config) Registry() (*botevent.Registry, error) {
	reg := botevent.NewRegistry()

	fallback, err := c.Fallback.Behavior()
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	reg.SetFallback(fallback)

	for eventType, ec := range c.Events {
		b, err := ec.Behavior()
		if err != nil {
			return nil, fmt.Errorf("events.%s: %w", eventType, err)
		}
		if err := reg.Set(eventType, b); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// PublisherOptions returns the publisher options implied by the config.
// Emissions are tracked into v, usually the result of UsageValidator. A nil
// v leaves the publisher default, which records nothing.
//
//	v := cfg.UsageValidator()
//	pub, err := botevent.NewPublisher(bus, cfg.PublisherOptions(reg, v)...)
func (c *Config) PublisherOptions(reg botevent.BehaviorRegistry, v usage.Validator) []botevent.Option {
	opts := []botevent.Option{
		botevent.WithRegistry(reg),
		botevent.WithDevelopment(c.Development()),
	}
	if v != nil {
		opts = append(opts, botevent.WithUsageValidator(v))
	}
	return opts
}

// LocalBusOptions returns the in-process bus options implied by the config.
// The same registry must back the publisher and the bus.
func (c *Config) LocalBusOptions(reg botevent.BehaviorRegistry) []local.Option {
	return []local.Option{
		local.WithRegistry(reg),
		local.WithQuorum(c.Quorum),
	}
}

// UsageValidator returns a memory validator in development and a no-op
// validator otherwise. The caller closes a returned *usage.MemoryValidator.
func (c *Config) UsageValidator() usage.Validator {
	if !c.Development() {
		return usage.Nop{}
	}
	return usage.NewMemoryValidator(c.Usage.TTL)
}

package config

import (
	"time"

	"github.com/skycms/skycms/internal/retry"
)

// StorageConfig holds artifact storage settings.
type StorageConfig struct {
	Root  string      `yaml:"root"` // root directory of the published site trees
	Retry RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig holds retry tuning for transient artifact write failures.
// Durations are strings ("500ms", "8s") so they can live in YAML directly.
type RetryConfig struct {
	Backoff      retry.BackoffMode `yaml:"backoff,omitempty"`
	InitialDelay string            `yaml:"initial_delay,omitempty"`
	MaxDelay     string            `yaml:"max_delay,omitempty"`
	MaxRetries   int               `yaml:"max_retries,omitempty"`
}

// Policy materializes the retry policy; unparsable fields fall back to the
// artifact-write defaults.
func (rc RetryConfig) Policy() retry.Policy {
	initial, _ := time.ParseDuration(rc.InitialDelay)
	maxDelay, _ := time.ParseDuration(rc.MaxDelay)
	return retry.NewPolicy(rc.Backoff, initial, maxDelay, rc.MaxRetries)
}

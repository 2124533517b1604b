package scheduler

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all configuration for the scheduler.
type Config struct {
	// How often the dispatcher looks for work
	WorkerInterval time.Duration `mapstructure:"worker_interval" yaml:"worker_interval" validate:"gte=1ms,lte=1m"`
	// How often terminal tasks past Retention are swept
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval" validate:"gte=1s,lte=24h"`
	// Retry ceiling for tasks created without WithMaxRetries
	DefaultMaxRetries int `mapstructure:"default_max_retries" yaml:"default_max_retries" validate:"gte=1,lte=100"`
	// How long terminal tasks stay queryable
	Retention time.Duration `mapstructure:"retention" yaml:"retention" validate:"gte=1m"`
	// Base of the exponential retry delay
	BackoffBase time.Duration `mapstructure:"backoff_base" yaml:"backoff_base" validate:"gte=1ms"`
	// Zero disables the handler deadline
	HandlerTimeout time.Duration `mapstructure:"handler_timeout" yaml:"handler_timeout" validate:"gte=0"`
	// Hold retrying tasks in their queue until NextRetryAt has passed
	EnforceBackoff bool `mapstructure:"enforce_backoff" yaml:"enforce_backoff"`
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		WorkerInterval:    100 * time.Millisecond,
		CleanupInterval:   time.Hour,
		DefaultMaxRetries: 3,
		Retention:         14 * 24 * time.Hour,
		BackoffBase:       time.Second,
	}
}

// DefaultValues returns the defaults as a config tree for the config providers
func DefaultValues() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"worker_interval":     d.WorkerInterval.String(),
		"cleanup_interval":    d.CleanupInterval.String(),
		"default_max_retries": d.DefaultMaxRetries,
		"retention":           d.Retention.String(),
		"backoff_base":        d.BackoffBase.String(),
		"handler_timeout":     d.HandlerTimeout.String(),
		"enforce_backoff":     d.EnforceBackoff,
	}
}

// Validate validates the scheduler configuration.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid scheduler config: %w", err)
	}
	return nil
}

package engine

import (
	"fmt"
	"time"

	"github.com/kbukum/execkit/coalesce"
	"github.com/kbukum/execkit/resilience"
	"github.com/kbukum/execkit/timeout"
	"github.com/kbukum/execkit/validation"
)

// Config configures an Engine.
//
//	engine:
//	  max_concurrent: 100
//	  breaker:
//	    failure_threshold: 5
//	    recovery_timeout: 60s
//	  breakers:
//	    fetch:
//	      failure_threshold: 3
//	      recovery_timeout: 1s
//	  coalescing:
//	    ttl: 5s
//	  health:
//	    interval: 15s
type Config struct {
	// Name tags logs and metrics.
	Name string `yaml:"name" mapstructure:"name"`
	// MaxConcurrent bounds the number of operations running at once.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"gt=0"`
	// AcquireTimeout bounds how long a call waits for a slot. 0 waits until
	// the call's context ends.
	AcquireTimeout time.Duration `yaml:"acquire_timeout" mapstructure:"acquire_timeout" validate:"gte=0"`
	// ShutdownTimeout bounds the drain phase of Shutdown when the context
	// passed to it has no deadline.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"gte=0"`

	Breaker    resilience.CircuitBreakerConfig            `yaml:"breaker" mapstructure:"breaker"`
	Breakers   map[string]resilience.CircuitBreakerConfig `yaml:"breakers" mapstructure:"breakers"`
	Coalescing coalesce.Config                            `yaml:"coalescing" mapstructure:"coalescing"`
	Timeouts   timeout.Config                             `yaml:"timeouts" mapstructure:"timeouts"`
	Retry      resilience.RetryConfig                     `yaml:"retry" mapstructure:"retry"`
	Admission  resilience.RateLimiterConfig               `yaml:"admission" mapstructure:"admission"`
	Health     HealthConfig                               `yaml:"health" mapstructure:"health"`
	BatchSizes map[TaskType]int                           `yaml:"batch_sizes" mapstructure:"batch_sizes"`
}

// HealthConfig configures the health monitor and its janitor.
type HealthConfig struct {
	// Interval between evaluations.
	Interval time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
	// IdleTTL is how long an operation may stay inactive before its
	// breaker and latency history are dropped.
	IdleTTL time.Duration `yaml:"idle_ttl" mapstructure:"idle_ttl" validate:"gte=0"`
	// LowSlots marks the engine degraded when fewer slots are free. It is
	// capped at MaxConcurrent.
	LowSlots int `yaml:"low_slots" mapstructure:"low_slots" validate:"gte=0"`
	// FailingErrorRate and DegradedErrorRate are windowed error rate
	// thresholds in [0, 1].
	FailingErrorRate  float64 `yaml:"failing_error_rate" mapstructure:"failing_error_rate" validate:"gte=0,lte=1"`
	DegradedErrorRate float64 `yaml:"degraded_error_rate" mapstructure:"degraded_error_rate" validate:"gte=0,lte=1"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults sets default values for zero-valued fields. Negative
// values are left alone so Validate can reject them.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "execkit"
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 100
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}

	def := resilience.DefaultCircuitBreakerConfig("")
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = def.FailureThreshold
	}
	if c.Breaker.RecoveryTimeout == 0 {
		c.Breaker.RecoveryTimeout = def.RecoveryTimeout
	}

	c.Coalescing.ApplyDefaults()
	c.Timeouts.ApplyDefaults()

	retry := resilience.DefaultRetryConfig()
	if c.Retry.InitialBackoff <= 0 {
		c.Retry.InitialBackoff = retry.InitialBackoff
	}
	if c.Retry.MaxBackoff <= 0 {
		c.Retry.MaxBackoff = retry.MaxBackoff
	}
	if c.Retry.BackoffFactor <= 0 {
		c.Retry.BackoffFactor = retry.BackoffFactor
	}
	if c.Retry.Jitter == 0 {
		c.Retry.Jitter = retry.Jitter
	}

	if c.Health.Interval == 0 {
		c.Health.Interval = 15 * time.Second
	}
	if c.Health.IdleTTL == 0 {
		c.Health.IdleTTL = 10 * time.Minute
	}
	if c.Health.LowSlots == 0 {
		c.Health.LowSlots = 5
	}
	if c.Health.FailingErrorRate == 0 {
		c.Health.FailingErrorRate = 0.5
	}
	if c.Health.DegradedErrorRate == 0 {
		c.Health.DegradedErrorRate = 0.25
	}

	sizes := DefaultBatchSizes()
	for t, n := range c.BatchSizes {
		if n > 0 {
			sizes[t] = n
		}
	}
	c.BatchSizes = sizes
}

// Validate checks the configuration. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	v := validation.New()
	v.Min("breaker.failure_threshold", c.Breaker.FailureThreshold, 1)
	for name, b := range c.Breakers {
		v.Min("breakers."+name+".failure_threshold", b.FailureThreshold, 0)
	}
	v.Custom(c.Health.DegradedErrorRate <= c.Health.FailingErrorRate,
		"health.degraded_error_rate", "must not exceed health.failing_error_rate")
	v.Custom(c.Admission.Rate >= 0, "admission.rate", "must not be negative")
	for t := range c.BatchSizes {
		v.OneOf("batch_sizes", string(t), taskTypeNames())
	}
	if appErr := v.Validate(); appErr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, appErr)
	}
	return nil
}

// Package validation validates configuration with struct tags (through
// go-playground/validator) and with programmatic checks that collect every
// failure before reporting.
//
// # Struct Tag Validation
//
//	type Config struct {
//	    MaxConcurrent int `yaml:"max_concurrent" validate:"gt=0"`
//	}
//	err := validation.Validate(cfg) // "max_concurrent: must be greater than 0"
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Min("breaker.failure_threshold", cfg.Breaker.FailureThreshold, 1)
//	v.Custom(degraded <= failing, "health.degraded_error_rate", "must not exceed health.failing_error_rate")
//	if appErr := v.Validate(); appErr != nil {
//	    return appErr
//	}
package validation

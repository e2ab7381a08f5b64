package model

import "time"

// RetryConfig defines how destination writes are retried on transient errors
type RetryConfig struct {
	MaxAttempts   int           `json:"max_attempts" mapstructure:"max_attempts"`
	InitialDelay  time.Duration `json:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay" mapstructure:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor" mapstructure:"multiplier"`
}

// DefaultRetryConfig is used when no retry settings are configured.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:   3,
	InitialDelay:  200 * time.Millisecond,
	MaxDelay:      5 * time.Second,
	BackoffFactor: 2.0,
}

package resilience

import (
	"time"
)

// BreakerConfig configures every circuit breaker created by a Breakers registry.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit. Default: 5
	FailureThreshold uint32

	// CoolDown is how long an open circuit rejects calls before letting a
	// probe through. Default: 60s
	CoolDown time.Duration

	// MaxRequests is the number of probes allowed while half-open. Default: 1
	MaxRequests uint32
}

// DefaultBreakerConfig returns 5 consecutive failures, 60s cool-down, 1 probe.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		CoolDown:         60 * time.Second,
		MaxRequests:      1,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultBreakerConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.CoolDown <= 0 {
		c.CoolDown = d.CoolDown
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = d.MaxRequests
	}
	return c
}

// Counts holds the numbers of requests and their successes/failures.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// ResilientConfig configures resilience features for a cache layer.
type ResilientConfig struct {
	// Timeout for each cache operation. 0 disables the per-call deadline.
	Timeout time.Duration
}

// DefaultResilientConfig returns a 1s per-operation timeout.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{Timeout: time.Second}
}

package chain

import (
	"math"
	"time"
)

// TTLStrategy picks the TTL a layer receives for a write with the given base TTL.
type TTLStrategy interface {
	TTL(layerIndex, layerCount int, base time.Duration) time.Duration
}

// UniformTTLStrategy gives every layer the base TTL.
type UniformTTLStrategy struct{}

func (UniformTTLStrategy) TTL(layerIndex, layerCount int, base time.Duration) time.Duration {
	return base
}

// DecayingTTLStrategy shortens the TTL of faster layers so that a process-local
// copy goes stale sooner than the shared one. The last layer gets the base TTL
// and each layer above it gets Factor times the layer below.
type DecayingTTLStrategy struct {
	Factor float64
}

func (s DecayingTTLStrategy) TTL(layerIndex, layerCount int, base time.Duration) time.Duration {
	if s.Factor <= 0 || s.Factor >= 1 || layerIndex >= layerCount-1 {
		return base
	}
	exp := float64(layerCount - 1 - layerIndex)
	return time.Duration(float64(base) * math.Pow(s.Factor, exp))
}

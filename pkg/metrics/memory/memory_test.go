package memory

import (
	"testing"
	"time"

	"fund-transfer/pkg/metrics"
)

func TestMemoryCollector_Transfers(t *testing.T) {
	mc := NewMemoryCollector()

	mc.RecordTransfer(metrics.OutcomeCompleted, "", time.Millisecond)
	mc.RecordTransfer(metrics.OutcomeFailed, "business_rule", time.Millisecond)
	mc.RecordTransfer(metrics.OutcomeFailed, "business_rule", time.Millisecond)
	mc.RecordRetry("transfer", 1)

	if mc.Transfers(metrics.OutcomeCompleted) != 1 {
		t.Errorf("Expected 1 completed, got %d", mc.Transfers(metrics.OutcomeCompleted))
	}
	if mc.Transfers(metrics.OutcomeFailed) != 2 {
		t.Errorf("Expected 2 failed, got %d", mc.Transfers(metrics.OutcomeFailed))
	}
	if mc.FailureReasons("business_rule") != 2 {
		t.Errorf("Expected 2 business_rule failures, got %d", mc.FailureReasons("business_rule"))
	}
	if mc.Retries("transfer") != 1 {
		t.Errorf("Expected 1 retry, got %d", mc.Retries("transfer"))
	}
}

func TestMemoryCollector_Layers(t *testing.T) {
	mc := NewMemoryCollector()

	mc.RecordGet("L1", true, time.Millisecond)
	mc.RecordGet("L1", false, time.Millisecond)
	mc.RecordDelete("L1", false, time.Millisecond)

	lm := mc.Layer("L1")
	if lm == nil {
		t.Fatal("Expected metrics for L1")
	}
	if lm.Hits != 1 || lm.Misses != 1 || lm.Deletes != 1 || lm.Errors != 1 {
		t.Errorf("Unexpected layer metrics: %+v", lm)
	}
	if mc.Layer("L2") != nil {
		t.Error("Expected nil for unknown layer")
	}
}

func TestMemoryCollector_CircuitOpens(t *testing.T) {
	mc := NewMemoryCollector()

	mc.RecordCircuitState("database", metrics.CircuitOpen)
	mc.RecordCircuitState("database", metrics.CircuitOpen)
	mc.RecordCircuitState("database", metrics.CircuitHalfOpen)
	mc.RecordCircuitState("database", metrics.CircuitOpen)

	if mc.CircuitOpens("database") != 2 {
		t.Errorf("Expected 2 opens, got %d", mc.CircuitOpens("database"))
	}
	if mc.CircuitState("database") != metrics.CircuitOpen {
		t.Errorf("Expected open, got %v", mc.CircuitState("database"))
	}

	mc.Reset()
	if mc.CircuitOpens("database") != 0 {
		t.Error("Expected Reset to clear counters")
	}
}

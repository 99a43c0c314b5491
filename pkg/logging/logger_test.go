package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	for _, cfg := range []Config{DefaultConfig(), DevelopmentConfig(), {Level: "bogus", Format: "xml"}} {
		l, err := NewLogger(cfg)
		if err != nil {
			t.Fatalf("NewLogger(%+v) failed: %v", cfg, err)
		}
		if l == nil {
			t.Fatal("NewLogger returned nil")
		}
	}
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	request := &Logger{zap.New(core)}
	request = request.With(zap.String("correlation_id", "abc"))

	fallback := NewNoOpLogger().Named("transfer")

	ctx := WithContext(context.Background(), request)
	FromContext(ctx, fallback).Info("transfer completed")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "transfer" {
		t.Errorf("Expected logger name 'transfer', got %q", entries[0].LoggerName)
	}
	if entries[0].ContextMap()["correlation_id"] != "abc" {
		t.Errorf("Expected correlation_id field, got %v", entries[0].ContextMap())
	}

	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Error("Expected fallback when context carries no logger")
	}
}

func TestGlobal(t *testing.T) {
	original := Global()
	defer SetGlobal(original)

	l := NewNoOpLogger()
	SetGlobal(l)
	if Global() != l {
		t.Error("SetGlobal did not replace the global logger")
	}
}

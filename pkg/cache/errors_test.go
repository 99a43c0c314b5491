package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"sentinel", ErrKeyNotFound, true},
		{"wrapped by layer", WrapError(ErrKeyNotFound, "memory", "get"), true},
		{"other error", ErrInvalidKey, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.expected {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestLayerError(t *testing.T) {
	err := WrapError(ErrTimeout, "redis", "set")
	if err.Error() != "cache layer redis set: cache: operation timeout" {
		t.Errorf("Unexpected message: %q", err.Error())
	}
	if !IsTimeout(err) {
		t.Error("Wrapped error should still match its sentinel")
	}

	var le *LayerError
	if !errors.As(err, &le) || le.Layer != "redis" || le.Op != "set" {
		t.Errorf("Expected *LayerError for redis set, got %#v", err)
	}
	if WrapError(nil, "redis", "set") != nil {
		t.Error("WrapError(nil) should return nil")
	}
}

func TestClassifyError(t *testing.T) {
	var syntaxErr error = &json.SyntaxError{Offset: 1}
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	tests := []struct {
		err      error
		expected string
	}{
		{nil, "none"},
		{ErrTimeout, "timeout"},
		{fmt.Errorf("get: %w", context.DeadlineExceeded), "timeout"},
		{WrapError(ErrKeyNotFound, "memory", "get"), "key_not_found"},
		{ErrLayerUnavailable, "unavailable"},
		{fmt.Errorf("decode: %w", syntaxErr), "serialization"},
		{fmt.Errorf("%w: bad balance", ErrInvalidValue), "serialization"},
		{WrapError(dialErr, "redis", "get"), "connection"},
		{errors.New("something else"), "other"},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expected {
			t.Errorf("ClassifyError(%v) = %q, want %q", tt.err, got, tt.expected)
		}
	}
}

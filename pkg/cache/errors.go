package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net"
)

var (
	// ErrKeyNotFound is a miss. It is the only error a healthy layer returns from Get.
	ErrKeyNotFound = errors.New("cache: key not found")

	ErrInvalidKey = errors.New("cache: invalid key")

	// ErrInvalidValue means a value could not be encoded or decoded.
	ErrInvalidValue = errors.New("cache: invalid value")

	// ErrLayerUnavailable means the layer is closed or unreachable.
	ErrLayerUnavailable = errors.New("cache: layer unavailable")

	ErrTimeout = errors.New("cache: operation timeout")
)

func IsNotFound(err error) bool    { return errors.Is(err, ErrKeyNotFound) }
func IsTimeout(err error) bool     { return errors.Is(err, ErrTimeout) }
func IsUnavailable(err error) bool { return errors.Is(err, ErrLayerUnavailable) }

// LayerError records which layer and operation failed.
type LayerError struct {
	Layer string
	Op    string
	Err   error
}

func (e *LayerError) Error() string {
	return "cache layer " + e.Layer + " " + e.Op + ": " + e.Err.Error()
}

func (e *LayerError) Unwrap() error { return e.Err }

// WrapError returns err as a *LayerError, or nil if err is nil.
func WrapError(err error, layer, op string) error {
	if err == nil {
		return nil
	}
	return &LayerError{Layer: layer, Op: op, Err: err}
}

// ClassifyError returns a short label for err, used as a log field.
func ClassifyError(err error) string {
	var (
		netErr    net.Error
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrKeyNotFound):
		return "key_not_found"
	case errors.Is(err, ErrLayerUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidKey):
		return "invalid_key"
	case errors.Is(err, ErrInvalidValue), errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return "serialization"
	case errors.As(err, &netErr):
		return "connection"
	default:
		return "other"
	}
}

package ledger

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the ledger and the transfer service
// matches exactly one of these with errors.Is.
var (
	// ErrValidation is returned for malformed requests. Never retried.
	ErrValidation = errors.New("ledger: validation failed")

	// ErrBusinessRule is returned when a transfer violates a business rule
	// (self-transfer, bad amount, inactive account, currency mismatch, insufficient funds).
	ErrBusinessRule = errors.New("ledger: business rule violation")

	// ErrNotFound is returned for unknown accounts or transaction references.
	ErrNotFound = errors.New("ledger: not found")

	// ErrLockContention is returned when an exclusive account lock cannot be
	// acquired in time or the store detects a conflicting concurrent write.
	ErrLockContention = errors.New("ledger: lock contention")

	// ErrRetryExhausted wraps the last contention failure after the retry budget is spent.
	ErrRetryExhausted = errors.New("ledger: retry exhausted")

	// ErrCircuitOpen is returned when a protected dependency is unavailable.
	ErrCircuitOpen = errors.New("ledger: dependency unavailable")

	// ErrOperational is returned for unexpected internal failures.
	ErrOperational = errors.New("ledger: operational failure")

	// ErrInvalidStateTransition is returned when a transaction record is moved
	// out of a terminal state.
	ErrInvalidStateTransition = errors.New("ledger: invalid state transition")
)

// Error is a classified error with a message that is safe to show to callers.
// The underlying cause, if any, is reachable through errors.Is/As but is not
// part of Error().
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError builds a classified error.
func NewError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// BusinessRule returns an ErrBusinessRule error with the given message.
func BusinessRule(message string) error {
	return &Error{Kind: ErrBusinessRule, Message: message}
}

// Validation returns an ErrValidation error with the given message.
func Validation(message string) error {
	return &Error{Kind: ErrValidation, Message: message}
}

// AccountNotFound returns the NotFound error for an account number.
func AccountNotFound(accountNumber string) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("Account not found: %s", accountNumber)}
}

// TransactionNotFound returns the NotFound error for a reference number.
func TransactionNotFound(referenceNumber string) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("Transaction not found: %s", referenceNumber)}
}

// LockContention wraps a store-level cause as a retryable contention error.
func LockContention(cause error) error {
	return &Error{Kind: ErrLockContention, Message: "account lock could not be acquired", Err: cause}
}

func IsValidation(err error) bool     { return errors.Is(err, ErrValidation) }
func IsBusinessRule(err error) bool   { return errors.Is(err, ErrBusinessRule) }
func IsNotFound(err error) bool       { return errors.Is(err, ErrNotFound) }
func IsLockContention(err error) bool { return errors.Is(err, ErrLockContention) }

// Classify returns a short label for metrics and logs.
func Classify(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrBusinessRule):
		return "business_rule"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRetryExhausted):
		return "retry_exhausted"
	case errors.Is(err, ErrLockContention):
		return "lock_contention"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	default:
		return "operational"
	}
}

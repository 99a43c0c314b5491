package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAccount_DebitCredit(t *testing.T) {
	a := NewAccount("ACC0000000001", "Alice", decimal.RequireFromString("1000.00"), "")
	b := NewAccount("ACC0000000002", "Bob", decimal.RequireFromString("1000.00"), "USD")

	if a.Currency != "USD" {
		t.Errorf("Expected default currency USD, got %s", a.Currency)
	}

	amount := decimal.RequireFromString("250.00")
	before := a.UpdatedAt
	time.Sleep(time.Millisecond)

	if err := a.Debit(amount); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if err := b.Credit(amount); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	if got := FormatAmount(a.Balance); got != "750.00" {
		t.Errorf("Expected source balance 750.00, got %s", got)
	}
	if got := FormatAmount(b.Balance); got != "1250.00" {
		t.Errorf("Expected destination balance 1250.00, got %s", got)
	}
	if !a.UpdatedAt.After(before) {
		t.Error("Expected debit to refresh UpdatedAt")
	}
}

func TestAccount_DebitInsufficientFunds(t *testing.T) {
	a := NewAccount("ACC0000000001", "Alice", decimal.RequireFromString("100.00"), "USD")

	err := a.Debit(decimal.RequireFromString("100.01"))
	if !IsBusinessRule(err) {
		t.Fatalf("Expected business rule violation, got %v", err)
	}
	if err.Error() != "Insufficient funds" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	if FormatAmount(a.Balance) != "100.00" {
		t.Errorf("Balance changed after failed debit: %s", FormatAmount(a.Balance))
	}

	// Draining to exactly zero is allowed.
	if err := a.Debit(decimal.RequireFromString("100.00")); err != nil {
		t.Fatalf("Debit to zero failed: %v", err)
	}
	if !a.Balance.IsZero() {
		t.Errorf("Expected zero balance, got %s", a.Balance)
	}
}

func TestAccount_InactiveRejectsMutation(t *testing.T) {
	for _, status := range []AccountStatus{AccountSuspended, AccountClosed} {
		a := NewAccount("ACC0000000001", "Alice", decimal.RequireFromString("100.00"), "USD")
		a.Status = status

		if err := a.Debit(decimal.RequireFromString("1.00")); !IsBusinessRule(err) {
			t.Errorf("%s: expected debit to fail, got %v", status, err)
		}
		if err := a.Credit(decimal.RequireFromString("1.00")); !IsBusinessRule(err) {
			t.Errorf("%s: expected credit to fail, got %v", status, err)
		}
		if FormatAmount(a.Balance) != "100.00" {
			t.Errorf("%s: balance changed: %s", status, FormatAmount(a.Balance))
		}
	}
}

func TestAccount_NoRoundingDrift(t *testing.T) {
	a := NewAccount("ACC0000000001", "Alice", decimal.RequireFromString("1000.00"), "USD")
	b := NewAccount("ACC0000000002", "Bob", decimal.RequireFromString("0.00"), "USD")

	step := decimal.RequireFromString("0.10")
	for i := 0; i < 1000; i++ {
		if err := a.Debit(step); err != nil {
			t.Fatalf("Debit %d failed: %v", i, err)
		}
		if err := b.Credit(step); err != nil {
			t.Fatalf("Credit %d failed: %v", i, err)
		}
	}

	if FormatAmount(a.Balance) != "900.00" {
		t.Errorf("Expected 900.00, got %s", FormatAmount(a.Balance))
	}
	if FormatAmount(b.Balance) != "100.00" {
		t.Errorf("Expected 100.00, got %s", FormatAmount(b.Balance))
	}
	if !a.Balance.Add(b.Balance).Equal(decimal.RequireFromString("1000.00")) {
		t.Errorf("Sum of balances drifted: %s", a.Balance.Add(b.Balance))
	}
}

func TestErrorClassification(t *testing.T) {
	cause := errors.New("driver: lock_not_available")
	tests := []struct {
		err   error
		label string
	}{
		{nil, "none"},
		{Validation("bad"), "validation"},
		{BusinessRule("Insufficient funds"), "business_rule"},
		{AccountNotFound("X"), "not_found"},
		{LockContention(cause), "lock_contention"},
		{NewError(ErrRetryExhausted, "exhausted", LockContention(cause)), "retry_exhausted"},
		{NewError(ErrCircuitOpen, "unavailable", nil), "circuit_open"},
		{errors.New("boom"), "operational"},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.label {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.label)
		}
	}

	wrapped := NewError(ErrOperational, "An unexpected error occurred", cause)
	if wrapped.Error() != "An unexpected error occurred" {
		t.Errorf("Expected safe message, got %q", wrapped.Error())
	}
	if !errors.Is(wrapped, cause) {
		t.Error("Expected cause to be reachable with errors.Is")
	}
	if !errors.Is(wrapped, ErrOperational) {
		t.Error("Expected kind to be reachable with errors.Is")
	}
}

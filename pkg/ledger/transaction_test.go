package ledger

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewReferenceNumber_Format(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	ref := NewReferenceNumber(now)

	if !strings.HasPrefix(ref, "TXN20240309140507") {
		t.Errorf("Unexpected prefix: %s", ref)
	}
	if len(ref) != 33 {
		t.Errorf("Expected length 33, got %d (%s)", len(ref), ref)
	}
	for _, r := range ref[17:] {
		if !strings.ContainsRune("0123456789ABCDEF", r) {
			t.Fatalf("Suffix contains non-hex character %q: %s", r, ref)
		}
	}
}

func TestNewReferenceNumber_ConcurrentUniqueness(t *testing.T) {
	const goroutines = 16
	const perGoroutine = 500

	now := time.Now()
	refs := make(chan string, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				refs <- NewReferenceNumber(now)
			}
		}()
	}
	wg.Wait()
	close(refs)

	seen := make(map[string]struct{}, goroutines*perGoroutine)
	for ref := range refs {
		if _, dup := seen[ref]; dup {
			t.Fatalf("Duplicate reference number: %s", ref)
		}
		seen[ref] = struct{}{}
	}
	if len(seen) != goroutines*perGoroutine {
		t.Errorf("Expected %d references, got %d", goroutines*perGoroutine, len(seen))
	}
}

func TestTransaction_StateMachine(t *testing.T) {
	tx := NewTransaction("ACC0000000001", "ACC0000000002", decimal.RequireFromString("10.00"), "rent")
	if tx.Status != TransactionPending {
		t.Fatalf("Expected pending, got %s", tx.Status)
	}
	if tx.Persisted() {
		t.Error("New record must not be persisted")
	}

	if err := tx.MarkCompleted(); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	if tx.CompletedAt == nil {
		t.Error("Expected CompletedAt to be set")
	}

	if err := tx.MarkFailed("late"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("Expected invalid transition from completed, got %v", err)
	}
	if err := tx.MarkCompleted(); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("Expected invalid transition completed -> completed, got %v", err)
	}

	failed := NewTransaction("ACC0000000001", "ACC0000000002", decimal.RequireFromString("10.00"), "")
	if err := failed.MarkFailed("Insufficient funds in source account"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if failed.FailureReason != "Insufficient funds in source account" {
		t.Errorf("Unexpected failure reason: %s", failed.FailureReason)
	}
	if err := failed.MarkCompleted(); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("Expected invalid transition from failed, got %v", err)
	}
}

func TestTransaction_AttachTakesSourceCurrency(t *testing.T) {
	src := NewAccount("ACC0000000001", "Alice", decimal.RequireFromString("10.00"), "EUR")
	src.ID = 7
	dst := NewAccount("ACC0000000002", "Bob", decimal.RequireFromString("10.00"), "EUR")
	dst.ID = 9

	tx := NewTransaction(src.AccountNumber, dst.AccountNumber, decimal.RequireFromString("1.00"), "")
	tx.Attach(src, dst)

	if tx.Currency != "EUR" || tx.SourceAccountID != 7 || tx.DestinationAccountID != 9 {
		t.Errorf("Unexpected attachment: %+v", tx)
	}
}

func TestParseAmount(t *testing.T) {
	valid := map[string]string{
		"250":     "250.00",
		"250.5":   "250.50",
		"0.01":    "0.01",
		"1000000": "1000000.00",
	}
	for in, want := range valid {
		d, err := ParseAmount(in)
		if err != nil {
			t.Errorf("ParseAmount(%q) failed: %v", in, err)
			continue
		}
		if got := FormatAmount(d); got != want {
			t.Errorf("ParseAmount(%q) = %s, want %s", in, got, want)
		}
	}

	for _, in := range []string{"", "-1", "1.234", "1e3", "abc", " 1"} {
		if _, err := ParseAmount(in); !IsValidation(err) {
			t.Errorf("ParseAmount(%q): expected validation error, got %v", in, err)
		}
	}
}

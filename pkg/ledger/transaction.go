package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the state of a transfer record.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionCompleted || s == TransactionFailed
}

// Transaction records one transfer attempt between two accounts.
//
// A record starts pending, is persisted before any balance changes and ends
// either completed (in the same database transaction as the balance change)
// or failed (persisted after rollback). ID is zero until the record has been
// written to a store.
type Transaction struct {
	ID                       int64
	ReferenceNumber          string
	SourceAccountID          int64
	DestinationAccountID     int64
	SourceAccountNumber      string
	DestinationAccountNumber string
	Amount                   decimal.Decimal
	Currency                 string
	Status                   TransactionStatus
	Description              string
	FailureReason            string
	CreatedAt                time.Time
	CompletedAt              *time.Time
	Metadata                 map[string]string
}

// NewTransaction creates a pending record with a fresh reference number.
func NewTransaction(sourceAccount, destinationAccount string, amount decimal.Decimal, description string) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		ReferenceNumber:          NewReferenceNumber(now),
		SourceAccountNumber:      sourceAccount,
		DestinationAccountNumber: destinationAccount,
		Amount:                   amount.Round(Scale),
		Status:                   TransactionPending,
		Description:              description,
		CreatedAt:                now,
		Metadata:                 map[string]string{},
	}
}

// NewReferenceNumber returns TXN + UTC timestamp + 16 random hex characters.
// The suffix comes from a random UUID so concurrent calls within the same
// second stay unique.
func NewReferenceNumber(now time.Time) string {
	id := uuid.New()
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:16]
	return fmt.Sprintf("TXN%s%s", now.UTC().Format("20060102150405"), suffix)
}

// Attach binds the record to the locked accounts and takes the currency from
// the source account.
func (t *Transaction) Attach(source, destination *Account) {
	t.SourceAccountID = source.ID
	t.DestinationAccountID = destination.ID
	t.SourceAccountNumber = source.AccountNumber
	t.DestinationAccountNumber = destination.AccountNumber
	t.Currency = source.Currency
}

// Persisted reports whether the record has been written to a store at least once.
func (t *Transaction) Persisted() bool {
	return t.ID != 0
}

// MarkCompleted moves a pending record to completed.
func (t *Transaction) MarkCompleted() error {
	if t.Status != TransactionPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, t.Status, TransactionCompleted)
	}
	now := time.Now().UTC()
	t.Status = TransactionCompleted
	t.CompletedAt = &now
	return nil
}

// MarkFailed moves a pending record to failed with the given reason.
func (t *Transaction) MarkFailed(reason string) error {
	if t.Status != TransactionPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, t.Status, TransactionFailed)
	}
	now := time.Now().UTC()
	t.Status = TransactionFailed
	t.FailureReason = reason
	t.CompletedAt = &now
	return nil
}

// Clone returns a deep copy of the record.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of an account. Closing an account is a
// status change; accounts are never deleted.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountClosed    AccountStatus = "closed"
)

// DefaultCurrency is used when an account is created without one.
const DefaultCurrency = "USD"

// Account is a ledger entry holding a balance. Balance is never negative and
// only changes through Debit and Credit.
type Account struct {
	ID            int64
	AccountNumber string
	HolderName    string
	Balance       decimal.Decimal
	Currency      string
	Status        AccountStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
}

// NewAccount creates an active account with the given opening balance.
func NewAccount(accountNumber, holderName string, balance decimal.Decimal, currency string) *Account {
	if currency == "" {
		currency = DefaultCurrency
	}
	now := time.Now().UTC()
	return &Account{
		AccountNumber: accountNumber,
		HolderName:    holderName,
		Balance:       balance.Round(Scale),
		Currency:      currency,
		Status:        AccountActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsActive reports whether the account may take part in transfers.
func (a *Account) IsActive() bool {
	return a.Status == AccountActive
}

// Debit removes amount from the balance.
func (a *Account) Debit(amount decimal.Decimal) error {
	if !a.IsActive() {
		return BusinessRule("Cannot debit inactive account")
	}
	next := a.Balance.Sub(amount)
	if next.IsNegative() {
		return BusinessRule("Insufficient funds")
	}
	a.Balance = next.Round(Scale)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Credit adds amount to the balance.
func (a *Account) Credit(amount decimal.Decimal) error {
	if !a.IsActive() {
		return BusinessRule("Cannot credit inactive account")
	}
	a.Balance = a.Balance.Add(amount).Round(Scale)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Clone returns a copy that can be mutated independently.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}

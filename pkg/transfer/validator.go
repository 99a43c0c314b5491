package transfer

import (
	"fund-transfer/pkg/ledger"

	"github.com/shopspring/decimal"
)

// DefaultMaxAmount is the largest amount accepted in a single transfer.
var DefaultMaxAmount = decimal.RequireFromString("1000000.00")

// Validator holds the business rules of a transfer. It performs no I/O.
type Validator struct {
	MaxAmount decimal.Decimal
}

func NewValidator(maxAmount decimal.Decimal) Validator {
	if !maxAmount.IsPositive() {
		maxAmount = DefaultMaxAmount
	}
	return Validator{MaxAmount: maxAmount}
}

// ValidateTransferRequest checks the request before any account is touched.
func (v Validator) ValidateTransferRequest(source, destination string, amount decimal.Decimal) error {
	if source == destination {
		return ledger.BusinessRule("Source and destination accounts cannot be the same")
	}
	if !amount.IsPositive() {
		return ledger.BusinessRule("Transfer amount must be positive")
	}
	if amount.GreaterThan(v.MaxAmount) {
		return ledger.BusinessRule("Transfer amount exceeds maximum limit")
	}
	if !ledger.HasValidScale(amount) {
		return ledger.BusinessRule("Transfer amount must have at most 2 decimal places")
	}
	return nil
}

// ValidateAccounts checks the locked accounts against the amount.
func (v Validator) ValidateAccounts(source, destination *ledger.Account, amount decimal.Decimal) error {
	if !source.IsActive() {
		return ledger.BusinessRule("Source account is not active")
	}
	if !destination.IsActive() {
		return ledger.BusinessRule("Destination account is not active")
	}
	if source.Currency != destination.Currency {
		return ledger.BusinessRule("Currency mismatch between accounts")
	}
	if source.Balance.LessThan(amount) {
		return ledger.BusinessRule("Insufficient funds in source account")
	}
	return nil
}

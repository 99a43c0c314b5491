package transfer

import (
	"context"

	"fund-transfer/pkg/ledger"
)

// AccountLocker acquires the two accounts of a transfer inside a transaction.
// Locks are always taken in ascending account-number order, so two transfers
// over the same pair in opposite directions cannot deadlock.
type AccountLocker struct{}

// LockPair returns source and destination locked for update, in argument order.
func (AccountLocker) LockPair(ctx context.Context, tx ledger.Tx, source, destination string) (*ledger.Account, *ledger.Account, error) {
	if source == destination {
		return nil, nil, ledger.BusinessRule("Source and destination accounts cannot be the same")
	}

	first, second := source, destination
	if second < first {
		first, second = second, first
	}

	a, err := tx.FindAccountForUpdate(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := tx.FindAccountForUpdate(ctx, second)
	if err != nil {
		return nil, nil, err
	}

	if first == source {
		return a, b, nil
	}
	return b, a, nil
}

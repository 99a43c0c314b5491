package transfer

import (
	"context"
	"testing"

	"fund-transfer/pkg/ledger"

	"github.com/shopspring/decimal"
)

type recordingTx struct {
	ledger.Tx
	locked []string
}

func (r *recordingTx) FindAccountForUpdate(ctx context.Context, n string) (*ledger.Account, error) {
	r.locked = append(r.locked, n)
	if n == "MISSING0001" {
		return nil, ledger.AccountNotFound(n)
	}
	return ledger.NewAccount(n, "Holder", decimal.NewFromInt(100), ""), nil
}

func TestAccountLocker_CanonicalOrder(t *testing.T) {
	for _, pair := range [][2]string{{"ACC0000001", "ACC0000002"}, {"ACC0000002", "ACC0000001"}} {
		tx := &recordingTx{}
		src, dst, err := AccountLocker{}.LockPair(context.Background(), tx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("LockPair failed: %v", err)
		}
		if tx.locked[0] != "ACC0000001" || tx.locked[1] != "ACC0000002" {
			t.Errorf("Expected ascending lock order, got %v", tx.locked)
		}
		if src.AccountNumber != pair[0] || dst.AccountNumber != pair[1] {
			t.Errorf("Accounts returned out of argument order: %s, %s", src.AccountNumber, dst.AccountNumber)
		}
	}
}

func TestAccountLocker_NotFound(t *testing.T) {
	_, _, err := AccountLocker{}.LockPair(context.Background(), &recordingTx{}, "ACC0000001", "MISSING0001")
	if !ledger.IsNotFound(err) || err.Error() != "Account not found: MISSING0001" {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestAccountLocker_SameAccount(t *testing.T) {
	tx := &recordingTx{}
	_, _, err := AccountLocker{}.LockPair(context.Background(), tx, "ACC0000001", "ACC0000001")
	if !ledger.IsBusinessRule(err) {
		t.Errorf("Expected business rule error, got %v", err)
	}
	if len(tx.locked) != 0 {
		t.Errorf("No lock should be requested, got %v", tx.locked)
	}
}

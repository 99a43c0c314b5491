package main

import (
	"context"

	"fund-transfer/pkg/ledger"
	"fund-transfer/pkg/ledger/postgres"
	"fund-transfer/pkg/logging"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func demoAccounts() []*ledger.Account {
	seed := []struct {
		number, holder, balance string
	}{
		{"ACC1000000001", "Alice Johnson", "5000.00"},
		{"ACC1000000002", "Bob Smith", "3000.00"},
		{"ACC1000000003", "Charlie Brown", "10000.00"},
		{"ACC1000000004", "Diana Prince", "2500.00"},
		{"ACC1000000005", "Eve Anderson", "7500.00"},
	}
	out := make([]*ledger.Account, 0, len(seed))
	for _, s := range seed {
		out = append(out, ledger.NewAccount(s.number, s.holder, decimal.RequireFromString(s.balance), ledger.DefaultCurrency))
	}
	return out
}

// seedPostgres creates the demo accounts that do not exist yet.
func seedPostgres(ctx context.Context, s *postgres.Store, logger *logging.Logger) error {
	created := 0
	for _, a := range demoAccounts() {
		_, err := s.FindAccount(ctx, a.AccountNumber)
		if err == nil {
			continue
		}
		if !ledger.IsNotFound(err) {
			return err
		}
		if err := s.CreateAccount(ctx, a); err != nil {
			return err
		}
		created++
	}
	logger.Info("demo accounts seeded", zap.Int("created", created))
	return nil
}

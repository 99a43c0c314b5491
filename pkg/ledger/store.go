package ledger

import "context"

// Store is the persistence boundary of the transfer engine.
type Store interface {
	// Begin opens a transaction scope. Locks acquired through the returned Tx
	// are held until Commit or Rollback.
	Begin(ctx context.Context) (Tx, error)

	// FindAccount reads an account without locking it.
	FindAccount(ctx context.Context, accountNumber string) (*Account, error)

	// ListActiveAccounts returns all active accounts ordered by account number.
	ListActiveAccounts(ctx context.Context) ([]*Account, error)

	// FindTransaction returns the record with the given reference number or an
	// ErrNotFound error.
	FindTransaction(ctx context.Context, referenceNumber string) (*Transaction, error)

	// ListTransactions returns up to limit records where the account is source
	// or destination, newest first.
	ListTransactions(ctx context.Context, accountID int64, limit int) ([]*Transaction, error)

	// SaveTransaction upserts a record by reference number outside of any
	// transaction scope. Used to make failures durable after a rollback.
	SaveTransaction(ctx context.Context, t *Transaction) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// Tx is a single transaction scope.
type Tx interface {
	// FindAccountForUpdate locks the account for exclusive write access.
	// Returns ErrNotFound when the account does not exist and
	// ErrLockContention when the lock cannot be acquired in time.
	FindAccountForUpdate(ctx context.Context, accountNumber string) (*Account, error)

	// SaveAccount writes a locked account back.
	SaveAccount(ctx context.Context, a *Account) error

	// SaveTransaction inserts the record (assigning its ID) or updates it.
	SaveTransaction(ctx context.Context, t *Transaction) error

	Commit() error

	// Rollback discards all changes. It is a no-op after Commit.
	Rollback() error
}

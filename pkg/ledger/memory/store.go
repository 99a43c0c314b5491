package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fund-transfer/pkg/ledger"
)

// Store is an in-process ledger store with row-lock semantics.
//
// Each account has a one-slot semaphore standing in for a database row lock.
// A transaction holds the semaphores of every account it locked until Commit
// or Rollback; waiting longer than LockTimeout fails with ErrLockContention.
// Writes made inside a transaction are staged and only become visible on Commit.
type Store struct {
	mu           sync.Mutex
	accounts     map[string]*ledger.Account
	locks        map[string]chan struct{}
	transactions map[string]*ledger.Transaction
	nextAccount  int64
	nextTx       int64
	config       Config
}

// Config holds configuration for the memory store.
type Config struct {
	// LockTimeout bounds how long FindAccountForUpdate waits for a lock.
	LockTimeout time.Duration
}

// DefaultConfig returns the default memory store configuration.
func DefaultConfig() Config {
	return Config{LockTimeout: 5 * time.Second}
}

var errTxDone = errors.New("memory: transaction already closed")

// New creates an empty store.
func New(config Config) *Store {
	if config.LockTimeout <= 0 {
		config.LockTimeout = DefaultConfig().LockTimeout
	}
	return &Store{
		accounts:     make(map[string]*ledger.Account),
		locks:        make(map[string]chan struct{}),
		transactions: make(map[string]*ledger.Transaction),
		config:       config,
	}
}

// AddAccount seeds an account, assigning its ID. Returns a copy of the stored row.
func (s *Store) AddAccount(a *ledger.Account) *ledger.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := a.Clone()
	if existing, ok := s.accounts[a.AccountNumber]; ok {
		stored.ID = existing.ID
	} else {
		s.nextAccount++
		stored.ID = s.nextAccount
		s.locks[a.AccountNumber] = make(chan struct{}, 1)
	}
	s.accounts[a.AccountNumber] = stored
	return stored.Clone()
}

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tx{
		store:        s,
		accounts:     make(map[string]*ledger.Account),
		transactions: make(map[string]*ledger.Transaction),
	}, nil
}

func (s *Store) FindAccount(ctx context.Context, accountNumber string) (*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountNumber]
	if !ok {
		return nil, ledger.AccountNotFound(accountNumber)
	}
	return a.Clone(), nil
}

func (s *Store) ListActiveAccounts(ctx context.Context) ([]*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*ledger.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if a.IsActive() {
			result = append(result, a.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AccountNumber < result[j].AccountNumber
	})
	return result, nil
}

func (s *Store) FindTransaction(ctx context.Context, referenceNumber string) (*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[referenceNumber]
	if !ok {
		return nil, ledger.TransactionNotFound(referenceNumber)
	}
	return t.Clone(), nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID int64, limit int) ([]*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*ledger.Transaction
	for _, t := range s.transactions {
		if t.SourceAccountID == accountID || t.DestinationAccountID == accountID {
			result = append(result, t.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) SaveTransaction(ctx context.Context, t *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignID(t)
	s.transactions[t.ReferenceNumber] = t.Clone()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// assignID gives an unsaved record an ID. Like a database sequence, IDs are
// not reused after a rollback. Caller must hold s.mu.
func (s *Store) assignID(t *ledger.Transaction) {
	if t.ID != 0 {
		return
	}
	if existing, ok := s.transactions[t.ReferenceNumber]; ok {
		t.ID = existing.ID
		return
	}
	s.nextTx++
	t.ID = s.nextTx
}

func (s *Store) lockFor(accountNumber string) (chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[accountNumber]
	return l, ok
}

type tx struct {
	store        *Store
	held         []string
	accounts     map[string]*ledger.Account
	transactions map[string]*ledger.Transaction
	done         bool
}

func (t *tx) FindAccountForUpdate(ctx context.Context, accountNumber string) (*ledger.Account, error) {
	if t.done {
		return nil, errTxDone
	}
	if a, ok := t.accounts[accountNumber]; ok {
		return a.Clone(), nil
	}

	lock, ok := t.store.lockFor(accountNumber)
	if !ok {
		return nil, ledger.AccountNotFound(accountNumber)
	}

	timer := time.NewTimer(t.store.config.LockTimeout)
	defer timer.Stop()

	select {
	case lock <- struct{}{}:
	case <-timer.C:
		return nil, ledger.LockContention(fmt.Errorf("memory: lock wait timeout on account %s", accountNumber))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	t.held = append(t.held, accountNumber)

	a, err := t.store.FindAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	t.accounts[accountNumber] = a
	return a.Clone(), nil
}

func (t *tx) SaveAccount(ctx context.Context, a *ledger.Account) error {
	if t.done {
		return errTxDone
	}
	staged, ok := t.accounts[a.AccountNumber]
	if !ok {
		return fmt.Errorf("memory: account %s is not locked by this transaction", a.AccountNumber)
	}
	if staged.Version != a.Version {
		return ledger.LockContention(fmt.Errorf("memory: stale version for account %s", a.AccountNumber))
	}
	a.Version++
	t.accounts[a.AccountNumber] = a.Clone()
	return nil
}

func (t *tx) SaveTransaction(ctx context.Context, rec *ledger.Transaction) error {
	if t.done {
		return errTxDone
	}
	t.store.mu.Lock()
	t.store.assignID(rec)
	t.store.mu.Unlock()

	t.transactions[rec.ReferenceNumber] = rec.Clone()
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}

	s := t.store
	s.mu.Lock()
	for number, a := range t.accounts {
		s.accounts[number] = a.Clone()
	}
	for ref, rec := range t.transactions {
		s.transactions[ref] = rec.Clone()
	}
	s.mu.Unlock()

	t.release()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func (t *tx) release() {
	t.done = true
	for _, number := range t.held {
		if lock, ok := t.store.lockFor(number); ok {
			<-lock
		}
	}
	t.held = nil
}

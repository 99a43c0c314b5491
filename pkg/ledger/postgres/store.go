package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fund-transfer/pkg/ledger"
	"fund-transfer/pkg/logging"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// SQLSTATE codes treated as lock contention.
const (
	codeLockNotAvailable     pq.ErrorCode = "55P03"
	codeDeadlockDetected     pq.ErrorCode = "40P01"
	codeSerializationFailure pq.ErrorCode = "40001"
)

// Store implements ledger.Store on PostgreSQL.
//
// Account rows are locked with SELECT ... FOR UPDATE inside a transaction
// whose lock_timeout is set with SET LOCAL, so a blocked lock surfaces as
// SQLSTATE 55P03 and is reported as ledger.ErrLockContention.
type Store struct {
	db     *sql.DB
	config Config
	logger *logging.Logger
}

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// LockTimeout bounds the wait for an account row lock.
	LockTimeout time.Duration
}

// DefaultConfig returns default PostgreSQL configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Password:        "postgres",
		Database:        "fund_transfer",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		LockTimeout:     5 * time.Second,
	}
}

// DSN returns the lib/pq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Open connects, verifies connectivity and ensures the schema exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := NewStore(db, cfg)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init tables: %w", err)
	}

	s.logger.Info("ledger store ready",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.Duration("lock_timeout", s.config.LockTimeout),
	)

	return s, nil
}

// NewStore wraps an existing connection pool.
func NewStore(db *sql.DB, cfg Config) *Store {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultConfig().LockTimeout
	}
	return &Store{
		db:     db,
		config: cfg,
		logger: logging.Global().Named("ledger.postgres"),
	}
}

// EnsureSchema creates the ledger tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id BIGSERIAL PRIMARY KEY,
			account_number VARCHAR(20) NOT NULL UNIQUE,
			holder_name VARCHAR(255) NOT NULL,
			balance NUMERIC(15,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			currency CHAR(3) NOT NULL DEFAULT 'USD',
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
			version BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			reference_number VARCHAR(50) NOT NULL UNIQUE,
			source_account_id BIGINT NOT NULL REFERENCES accounts(id),
			destination_account_id BIGINT NOT NULL REFERENCES accounts(id),
			amount NUMERIC(15,2) NOT NULL CHECK (amount > 0),
			currency CHAR(3) NOT NULL,
			status VARCHAR(20) NOT NULL,
			description VARCHAR(500),
			failure_reason TEXT,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			completed_at TIMESTAMP WITH TIME ZONE,
			metadata JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_source ON transactions(source_account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_destination ON transactions(destination_account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// CreateAccount inserts a new account and sets its ID. Used for seeding.
func (s *Store) CreateAccount(ctx context.Context, a *ledger.Account) error {
	query := `
		INSERT INTO accounts (account_number, holder_name, balance, currency, status, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		a.AccountNumber, a.HolderName, a.Balance, a.Currency, string(a.Status), a.CreatedAt, a.UpdatedAt, a.Version,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	setTimeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.config.LockTimeout.Milliseconds())
	if _, err := sqlTx.ExecContext(ctx, setTimeout); err != nil {
		_ = sqlTx.Rollback()
		return nil, fmt.Errorf("set lock timeout: %w", err)
	}

	return &tx{tx: sqlTx}, nil
}

const accountColumns = `id, account_number, holder_name, balance, currency, status, created_at, updated_at, version`

func (s *Store) FindAccount(ctx context.Context, accountNumber string) (*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	a, err := scanAccount(s.db.QueryRowContext(ctx, query, accountNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.AccountNotFound(accountNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	return a, nil
}

func (s *Store) ListActiveAccounts(ctx context.Context) ([]*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE status = $1 ORDER BY account_number`
	rows, err := s.db.QueryContext(ctx, query, string(ledger.AccountActive))
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

const transactionSelect = `
	SELECT t.id, t.reference_number, t.source_account_id, t.destination_account_id,
		src.account_number, dst.account_number, t.amount, t.currency, t.status,
		COALESCE(t.description, ''), COALESCE(t.failure_reason, ''),
		t.created_at, t.completed_at, t.metadata
	FROM transactions t
	JOIN accounts src ON src.id = t.source_account_id
	JOIN accounts dst ON dst.id = t.destination_account_id
`

func (s *Store) FindTransaction(ctx context.Context, referenceNumber string) (*ledger.Transaction, error) {
	query := transactionSelect + ` WHERE t.reference_number = $1`
	t, err := scanTransaction(s.db.QueryRowContext(ctx, query, referenceNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.TransactionNotFound(referenceNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	return t, nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID int64, limit int) ([]*ledger.Transaction, error) {
	query := transactionSelect + `
		WHERE t.source_account_id = $1 OR t.destination_account_id = $1
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func (s *Store) SaveTransaction(ctx context.Context, t *ledger.Transaction) error {
	return upsertTransaction(ctx, s.db, t)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) FindAccountForUpdate(ctx context.Context, accountNumber string) (*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1 FOR UPDATE`
	a, err := scanAccount(t.tx.QueryRowContext(ctx, query, accountNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.AccountNotFound(accountNumber)
	}
	if err != nil {
		return nil, classify(fmt.Errorf("lock account %s: %w", accountNumber, err))
	}
	return a, nil
}

func (t *tx) SaveAccount(ctx context.Context, a *ledger.Account) error {
	query := `
		UPDATE accounts
		SET balance = $1, status = $2, updated_at = $3, version = version + 1
		WHERE id = $4 AND version = $5
	`
	res, err := t.tx.ExecContext(ctx, query, a.Balance, string(a.Status), a.UpdatedAt, a.ID, a.Version)
	if err != nil {
		return classify(fmt.Errorf("update account %s: %w", a.AccountNumber, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account %s: %w", a.AccountNumber, err)
	}
	if n == 0 {
		return ledger.LockContention(fmt.Errorf("stale version %d for account %s", a.Version, a.AccountNumber))
	}
	a.Version++
	return nil
}

func (t *tx) SaveTransaction(ctx context.Context, rec *ledger.Transaction) error {
	return upsertTransaction(ctx, t.tx, rec)
}

func (t *tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (t *tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// upsertTransaction writes the record keyed by reference number. A record
// whose earlier insert was rolled back is inserted again and gets a new ID.
func upsertTransaction(ctx context.Context, q queryer, t *ledger.Transaction) error {
	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO transactions (
			reference_number, source_account_id, destination_account_id, amount, currency,
			status, description, failure_reason, created_at, completed_at, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (reference_number) DO UPDATE SET
			status = EXCLUDED.status,
			failure_reason = EXCLUDED.failure_reason,
			completed_at = EXCLUDED.completed_at,
			metadata = EXCLUDED.metadata
		RETURNING id
	`
	err = q.QueryRowContext(ctx, query,
		t.ReferenceNumber, t.SourceAccountID, t.DestinationAccountID, t.Amount, t.Currency,
		string(t.Status), nullString(t.Description), nullString(t.FailureReason),
		t.CreatedAt, t.CompletedAt, string(metadata),
	).Scan(&t.ID)
	if err != nil {
		return classify(fmt.Errorf("save transaction %s: %w", t.ReferenceNumber, err))
	}
	return nil
}

// classify maps lock and serialization failures to ledger.ErrLockContention.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure:
			return ledger.LockContention(err)
		}
	}
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row scanner) (*ledger.Account, error) {
	var a ledger.Account
	var status string
	if err := row.Scan(
		&a.ID, &a.AccountNumber, &a.HolderName, &a.Balance, &a.Currency,
		&status, &a.CreatedAt, &a.UpdatedAt, &a.Version,
	); err != nil {
		return nil, err
	}
	a.Status = ledger.AccountStatus(status)
	return &a, nil
}

func scanTransaction(row scanner) (*ledger.Transaction, error) {
	var t ledger.Transaction
	var status string
	var completedAt sql.NullTime
	var metadata []byte
	if err := row.Scan(
		&t.ID, &t.ReferenceNumber, &t.SourceAccountID, &t.DestinationAccountID,
		&t.SourceAccountNumber, &t.DestinationAccountNumber, &t.Amount, &t.Currency, &status,
		&t.Description, &t.FailureReason, &t.CreatedAt, &completedAt, &metadata,
	); err != nil {
		return nil, err
	}
	t.Status = ledger.TransactionStatus(status)
	if completedAt.Valid {
		at := completedAt.Time
		t.CompletedAt = &at
	}
	t.Metadata = map[string]string{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

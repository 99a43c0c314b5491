// Package transfer moves funds between two ledger accounts.
package transfer

import (
	"context"
	"errors"
	"time"

	"fund-transfer/pkg/events"
	"fund-transfer/pkg/ledger"
	"fund-transfer/pkg/logging"
	"fund-transfer/pkg/metrics"
	"fund-transfer/pkg/resilience"
	"fund-transfer/pkg/retry"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DatabaseService is the circuit breaker name guarding the store.
const DatabaseService = "database"

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

const (
	msgRetryExhausted = "Transfer failed after maximum retry attempts due to lock timeout"
	msgUnavailable    = "Service temporarily unavailable"
	msgUnexpected     = "An unexpected error occurred during fund transfer"
)

// failedRecordTimeout bounds the write of a failed record after rollback.
const failedRecordTimeout = 5 * time.Second

// postCommitTimeout bounds each post-commit action. The actions run detached
// from the caller's cancellation: the transfer has already committed.
const postCommitTimeout = 5 * time.Second

// Request is a single transfer instruction.
type Request struct {
	SourceAccount      string
	DestinationAccount string
	Amount             decimal.Decimal
	Description        string
}

// Invalidator drops cached reads of accounts.
type Invalidator interface {
	Invalidate(ctx context.Context, accountNumbers ...string) error
}

// Config wires the service's collaborators. Only the store is required.
type Config struct {
	MaxAmount decimal.Decimal
	Retry     retry.Policy
	Breakers  *resilience.Breakers
	Publisher events.Publisher
	Cache     Invalidator
	Metrics   metrics.MetricsCollector
}

// postCommitAction runs after a transfer has committed. Failures are logged
// and never reach the caller.
type postCommitAction struct {
	name string
	run  func(ctx context.Context, t *ledger.Transaction) error
}

// Service orchestrates transfers.
type Service struct {
	store      ledger.Store
	validator  Validator
	locker     AccountLocker
	retry      retry.Policy
	breakers   *resilience.Breakers
	metrics    metrics.MetricsCollector
	postCommit []postCommitAction
	logger     *logging.Logger
}

func NewService(store ledger.Store, config Config) *Service {
	if config.Metrics == nil {
		config.Metrics = metrics.NoOpCollector{}
	}

	s := &Service{
		store:     store,
		validator: NewValidator(config.MaxAmount),
		breakers:  config.Breakers,
		metrics:   config.Metrics,
		logger:    logging.Global().Named("transfer"),
	}

	policy := config.Retry
	if policy.MaxAttempts == 0 && policy.BaseDelay == 0 {
		policy = retry.DefaultPolicy(nil)
		policy.Sleep = config.Retry.Sleep
	}
	if policy.Retryable == nil {
		policy.Retryable = ledger.IsLockContention
	}
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.metrics.RecordRetry("transfer", attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}
	s.retry = policy

	if config.Publisher != nil {
		publisher := config.Publisher
		s.postCommit = append(s.postCommit, postCommitAction{
			name: "publish_event",
			run: func(ctx context.Context, t *ledger.Transaction) error {
				return publisher.Publish(ctx, events.NewTransferCompleted(t))
			},
		})
	}
	if config.Cache != nil {
		c := config.Cache
		s.postCommit = append(s.postCommit, postCommitAction{
			name: "invalidate_cache",
			run: func(ctx context.Context, t *ledger.Transaction) error {
				return c.Invalidate(ctx, t.SourceAccountNumber, t.DestinationAccountNumber)
			},
		})
	}

	return s
}

// Transfer moves req.Amount from the source to the destination account. On
// success the completed record is returned. On failure the returned error is
// a *ledger.Error whose message is safe to show to callers.
func (s *Service) Transfer(ctx context.Context, req Request) (*ledger.Transaction, error) {
	start := time.Now()
	log := logging.FromContext(ctx, s.logger).With(
		zap.String("source_account", req.SourceAccount),
		zap.String("destination_account", req.DestinationAccount),
		zap.String("amount", ledger.FormatAmount(req.Amount)),
	)

	if err := s.validator.ValidateTransferRequest(req.SourceAccount, req.DestinationAccount, req.Amount); err != nil {
		log.Info("transfer rejected", zap.Error(err))
		s.metrics.RecordTransfer(metrics.OutcomeRejected, ledger.Classify(err), time.Since(start))
		return nil, err
	}

	record := ledger.NewTransaction(req.SourceAccount, req.DestinationAccount, req.Amount, req.Description)
	log = log.With(zap.String("reference_number", record.ReferenceNumber))

	err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.attempt(ctx, log, record)
	}, zap.String("reference_number", record.ReferenceNumber))
	if err != nil {
		return nil, s.fail(ctx, log, record, err, start)
	}

	s.afterCommit(ctx, log, record)

	s.metrics.RecordTransfer(metrics.OutcomeCompleted, "", time.Since(start))
	log.Info("transfer completed", zap.Duration("duration", time.Since(start)))

	return record.Clone(), nil
}

// attempt is one unit of work. It owns its transaction and always closes it
// before returning, so the retry wait never holds a lock.
func (s *Service) attempt(ctx context.Context, log *logging.Logger, record *ledger.Transaction) (err error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	source, destination, err := s.locker.LockPair(ctx, tx, record.SourceAccountNumber, record.DestinationAccountNumber)
	if err != nil {
		return err
	}
	if err := s.validator.ValidateAccounts(source, destination, record.Amount); err != nil {
		return err
	}

	record.Attach(source, destination)
	if err := tx.SaveTransaction(ctx, record); err != nil {
		return err
	}

	if err := source.Debit(record.Amount); err != nil {
		return err
	}
	if err := destination.Credit(record.Amount); err != nil {
		return err
	}
	if err := tx.SaveAccount(ctx, source); err != nil {
		return err
	}
	if err := tx.SaveAccount(ctx, destination); err != nil {
		return err
	}

	completed := record.Clone()
	if err := completed.MarkCompleted(); err != nil {
		return err
	}
	if err := tx.SaveTransaction(ctx, completed); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	*record = *completed
	return nil
}

func (s *Service) afterCommit(ctx context.Context, log *logging.Logger, record *ledger.Transaction) {
	detached := context.WithoutCancel(ctx)
	for _, action := range s.postCommit {
		actionCtx, cancel := context.WithTimeout(detached, postCommitTimeout)
		err := action.run(actionCtx, record)
		cancel()
		if err != nil {
			log.Warn("post-commit action failed",
				zap.String("action", action.name),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) begin(ctx context.Context) (ledger.Tx, error) {
	if s.breakers == nil {
		return s.store.Begin(ctx)
	}
	v, err := s.breakers.Execute(ctx, DatabaseService, func(ctx context.Context) (interface{}, error) {
		return s.store.Begin(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(ledger.Tx), nil
}

// fail classifies cause, records the failure on the transfer record and
// returns the error the caller sees. The record is written only if an
// attempt persisted it.
func (s *Service) fail(ctx context.Context, log *logging.Logger, record *ledger.Transaction, cause error, start time.Time) error {
	result := classify(cause)

	reason := result.Error()
	if errors.Is(result, ledger.ErrOperational) {
		reason = cause.Error()
	}
	if err := record.MarkFailed(reason); err != nil {
		log.Error("cannot mark transfer record failed", zap.Error(err))
	}

	if record.Persisted() {
		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failedRecordTimeout)
		defer cancel()
		if err := s.store.SaveTransaction(persistCtx, record); err != nil {
			log.Error("failed to persist failed transfer record", zap.Error(err))
		}
	}

	outcome := metrics.OutcomeFailed
	if ledger.IsBusinessRule(result) || ledger.IsNotFound(result) || ledger.IsValidation(result) {
		outcome = metrics.OutcomeRejected
	}
	s.metrics.RecordTransfer(outcome, ledger.Classify(result), time.Since(start))

	fields := []zap.Field{
		zap.String("error_type", ledger.Classify(result)),
		zap.Bool("record_persisted", record.Persisted()),
		zap.Error(cause),
	}
	if outcome == metrics.OutcomeRejected {
		log.Info("transfer rejected", fields...)
	} else {
		log.Error("transfer failed", fields...)
	}

	return result
}

// classify maps an internal failure to the error returned to callers.
func classify(err error) error {
	var le *ledger.Error
	switch {
	case errors.Is(err, retry.ErrExhausted):
		return ledger.NewError(ledger.ErrRetryExhausted, msgRetryExhausted, err)
	case resilience.IsCircuitOpen(err):
		return ledger.NewError(ledger.ErrCircuitOpen, msgUnavailable, err)
	case errors.As(err, &le) && (ledger.IsBusinessRule(err) || ledger.IsNotFound(err) || ledger.IsValidation(err)):
		return le
	default:
		return ledger.NewError(ledger.ErrOperational, msgUnexpected, err)
	}
}

// GetTransaction returns the record with the given reference, or nil if none exists.
func (s *Service) GetTransaction(ctx context.Context, referenceNumber string) (*ledger.Transaction, error) {
	t, err := s.store.FindTransaction(ctx, referenceNumber)
	if ledger.IsNotFound(err) {
		return nil, nil
	}
	return t, err
}

// GetAccountTransactions returns the newest records touching the account.
// A limit of 0 means DefaultHistoryLimit; others are clamped to [1, MaxHistoryLimit].
func (s *Service) GetAccountTransactions(ctx context.Context, accountNumber string, limit int) ([]*ledger.Transaction, error) {
	a, err := s.store.FindAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, a.ID, clampLimit(limit))
}

func clampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultHistoryLimit
	case limit < 1:
		return 1
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

// ListActiveAccounts returns every active account.
func (s *Service) ListActiveAccounts(ctx context.Context) ([]*ledger.Account, error) {
	return s.store.ListActiveAccounts(ctx)
}

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fund-transfer/pkg/logging"

	"go.uber.org/zap"
)

// ErrExhausted is matched by the error returned when every attempt failed
// with a retryable error.
var ErrExhausted = errors.New("retry: attempts exhausted")

// ExhaustedError carries the last cause after the retry budget is spent.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Err}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy retries an operation on retryable errors with exponential backoff.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first. Default: 3
	MaxAttempts int

	// BaseDelay is the wait before the second attempt. It doubles for each
	// following attempt. Default: 100ms
	BaseDelay time.Duration

	// MaxDelay caps a single wait. 0 means no cap.
	MaxDelay time.Duration

	// Retryable decides whether an error is worth another attempt. If nil,
	// nothing is retried.
	Retryable func(error) bool

	// Sleep performs the wait between attempts. Defaults to SleepWithContext.
	Sleep SleepFunc

	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, delay time.Duration, err error)

	Logger *logging.Logger
}

// DefaultPolicy returns three attempts with a 100ms base delay.
func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		Retryable:   retryable,
	}
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Non-retryable errors are returned unchanged. The
// wait between attempts happens after op returns, so op must release any
// locks or transactions it holds before returning.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, fields ...zap.Field) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepWithContext
	}
	logger := p.Logger
	if logger == nil {
		logger = logging.Global().Named("retry")
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry",
					append(fields, zap.Int("attempt", attempt))...)
			}
			return nil
		}

		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		delay := p.delay(attempt)
		logger.Warn("retryable failure, backing off",
			append(fields,
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.Duration("delay", delay),
				zap.Error(err),
			)...)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	logger.Error("retry attempts exhausted",
		append(fields, zap.Int("attempts", maxAttempts), zap.Error(lastErr))...)

	return &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

// delay returns the wait after the given failed attempt (1-based).
func (p Policy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := Exponential(base, attempt-1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Exponential returns base * 2^exp, saturating instead of overflowing.
func Exponential(base time.Duration, exp int) time.Duration {
	if exp <= 0 {
		return base
	}
	if exp >= 62 {
		return time.Duration(1<<63 - 1)
	}
	d := base << uint(exp)
	if d < base || d>>uint(exp) != base {
		return time.Duration(1<<63 - 1)
	}
	return d
}

// SleepWithContext waits for d or returns ctx.Err() if the context ends first.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

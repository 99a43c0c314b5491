package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errContention = errors.New("lock wait timeout")

func isContention(err error) bool { return errors.Is(err, errContention) }

// fakeClock records requested waits without sleeping.
type fakeClock struct {
	waits []time.Duration
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.waits = append(c.waits, d)
	return ctx.Err()
}

func TestPolicy_SucceedsFirstTry(t *testing.T) {
	clock := &fakeClock{}
	p := DefaultPolicy(isContention)
	p.Sleep = clock.Sleep

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 1 || len(clock.waits) != 0 {
		t.Errorf("Expected 1 call and no waits, got %d calls and %v", calls, clock.waits)
	}
}

func TestPolicy_RetriesContentionThenSucceeds(t *testing.T) {
	clock := &fakeClock{}
	p := DefaultPolicy(isContention)
	p.Sleep = clock.Sleep

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errContention
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(clock.waits) != len(want) {
		t.Fatalf("Expected waits %v, got %v", want, clock.waits)
	}
	for i := range want {
		if clock.waits[i] != want[i] {
			t.Errorf("Wait %d: expected %v, got %v", i, want[i], clock.waits[i])
		}
	}
}

func TestPolicy_Exhausted(t *testing.T) {
	clock := &fakeClock{}
	p := DefaultPolicy(isContention)
	p.Sleep = clock.Sleep

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errContention
	})

	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Expected ErrExhausted, got %v", err)
	}
	if !errors.Is(err, errContention) {
		t.Error("Expected last cause to be wrapped")
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 3 {
		t.Errorf("Expected ExhaustedError with 3 attempts, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	// No wait after the final attempt.
	if len(clock.waits) != 2 {
		t.Errorf("Expected 2 waits, got %v", clock.waits)
	}
}

func TestPolicy_NonRetryablePropagatesImmediately(t *testing.T) {
	clock := &fakeClock{}
	p := DefaultPolicy(isContention)
	p.Sleep = clock.Sleep

	business := errors.New("insufficient funds")
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return business
	})

	if err != business {
		t.Fatalf("Expected the original error, got %v", err)
	}
	if calls != 1 || len(clock.waits) != 0 {
		t.Errorf("Expected no retry, got %d calls and waits %v", calls, clock.waits)
	}
}

func TestPolicy_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := DefaultPolicy(isContention)
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return SleepWithContext(ctx, d)
	}

	calls := 0
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return errContention
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestPolicy_OnRetryAndMaxDelay(t *testing.T) {
	clock := &fakeClock{}
	p := Policy{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    250 * time.Millisecond,
		Retryable:   isContention,
		Sleep:       clock.Sleep,
	}

	var attempts []int
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		attempts = append(attempts, attempt)
	}

	_ = p.Do(context.Background(), func(ctx context.Context) error { return errContention })

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond, 250 * time.Millisecond}
	for i := range want {
		if clock.waits[i] != want[i] {
			t.Errorf("Wait %d: expected %v, got %v", i, want[i], clock.waits[i])
		}
	}
	if len(attempts) != 4 || attempts[0] != 1 || attempts[3] != 4 {
		t.Errorf("Unexpected OnRetry attempts: %v", attempts)
	}
}

func TestExponential(t *testing.T) {
	base := 100 * time.Millisecond
	if Exponential(base, 0) != base {
		t.Error("Exponent 0 should return base")
	}
	if Exponential(base, 2) != 400*time.Millisecond {
		t.Errorf("Expected 400ms, got %v", Exponential(base, 2))
	}
	if Exponential(base, 80) <= 0 {
		t.Error("Expected saturation, not overflow")
	}
}

func TestSleepWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := SleepWithContext(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("SleepWithContext did not return promptly on cancelled context")
	}
}

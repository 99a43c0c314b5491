package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"fund-transfer/pkg/logging"

	"go.uber.org/zap"
)

// Handler processes one event.
type Handler func(ctx context.Context, e Event) error

type subscription struct {
	priority int
	handler  Handler
}

// Dispatcher fans events out to subscribers in priority order, highest first.
// Subscribers with equal priority run in registration order. A failing or
// panicking subscriber does not stop the others.
type Dispatcher struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	logger *logging.Logger
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subs:   make(map[string][]subscription),
		logger: logging.Global().Named("events"),
	}
}

// Subscribe registers handler for events named eventName.
func (d *Dispatcher) Subscribe(eventName string, priority int, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Publish may still hold the old slice.
	subs := append([]subscription(nil), d.subs[eventName]...)
	subs = append(subs, subscription{priority: priority, handler: handler})
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].priority > subs[j].priority
	})
	d.subs[eventName] = subs
}

// Publish runs every subscriber for e and returns their errors joined.
func (d *Dispatcher) Publish(ctx context.Context, e Event) error {
	d.mu.RLock()
	subs := d.subs[e.Name()]
	d.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := d.run(ctx, s, e); err != nil {
			d.logger.Warn("event subscriber failed",
				zap.String("event", e.Name()),
				zap.String("key", e.Key()),
				zap.Int("priority", s.priority),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) run(ctx context.Context, s subscription, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("events: subscriber panicked: %v", r)
		}
	}()
	return s.handler(ctx, e)
}

// Subscribers returns the number of subscribers for eventName.
func (d *Dispatcher) Subscribers(eventName string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[eventName])
}

// AuditLogger returns a handler that logs every event it receives.
func AuditLogger(logger *logging.Logger) Handler {
	return func(ctx context.Context, e Event) error {
		l := logging.FromContext(ctx, logger)
		if tc, ok := e.(TransferCompleted); ok {
			l.Info("transfer completed",
				zap.String("reference_number", tc.ReferenceNumber),
				zap.String("source_account", tc.SourceAccount),
				zap.String("destination_account", tc.DestinationAccount),
				zap.String("amount", tc.Amount.StringFixed(2)),
				zap.String("currency", tc.Currency),
			)
			return nil
		}
		l.Info("event", zap.String("event", e.Name()), zap.String("key", e.Key()))
		return nil
	}
}

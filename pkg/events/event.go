// Package events carries domain events from the transfer engine to
// subscribers and external sinks.
package events

import (
	"context"
	"time"

	"fund-transfer/pkg/ledger"

	"github.com/shopspring/decimal"
)

// TransferCompletedName is the name of the event emitted after a transfer commits.
const TransferCompletedName = "transfer.completed"

// Event is anything that can be dispatched.
type Event interface {
	Name() string
	// Key identifies the event instance, e.g. for broker message IDs.
	Key() string
}

// TransferCompleted is emitted once per committed transfer.
type TransferCompleted struct {
	ReferenceNumber    string          `json:"reference_number"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	CompletedAt        time.Time       `json:"completed_at"`
}

func (TransferCompleted) Name() string { return TransferCompletedName }

func (e TransferCompleted) Key() string { return e.ReferenceNumber }

// NewTransferCompleted builds the event from a completed transaction record.
func NewTransferCompleted(t *ledger.Transaction) TransferCompleted {
	e := TransferCompleted{
		ReferenceNumber:    t.ReferenceNumber,
		SourceAccount:      t.SourceAccountNumber,
		DestinationAccount: t.DestinationAccountNumber,
		Amount:             t.Amount,
		Currency:           t.Currency,
	}
	if t.CompletedAt != nil {
		e.CompletedAt = *t.CompletedAt
	}
	return e
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Sink is an external destination with a name used in metrics.
type Sink interface {
	Publisher
	Name() string
	Close() error
}

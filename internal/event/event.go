// Package event turns state transitions into outbound notifications.
//
// Translate is pure. Delivery belongs to a Sink; the Emitter logs sink
// failures and never reports them to the caller, because the state change has
// already been committed by the time events are published.
package event

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/comanda-pos/api/internal/money"
	"github.com/google/uuid"
)

// Kind names the entity a transition belongs to.
type Kind string

const (
	KindTable   Kind = "table"
	KindTab     Kind = "tab"
	KindOrder   Kind = "order"
	KindItem    Kind = "item"
	KindPayment Kind = "payment"
	KindCredit  Kind = "credit"
)

// Event types.
const (
	TypeTableOpened       = "table.opened"
	TypeTableClosed       = "table.closed"
	TypeTableUpdated      = "table.updated"
	TypeTabOpened         = "tab.opened"
	TypeTabUpdated        = "tab.updated"
	TypeTabSettled        = "tab.settled"
	TypeTabCancelled      = "tab.cancelled"
	TypeTabOverpaid       = "tab.overpaid"
	TypeOrderCreated      = "order.created"
	TypeOrderUpdated      = "order.updated"
	TypeOrderCancelled    = "order.cancelled"
	TypeItemAdded         = "item.added"
	TypeItemUpdated       = "item.updated"
	TypeItemCancelled     = "item.cancelled"
	TypePaymentRegistered = "payment.registered"
	TypePaymentReversed   = "payment.reversed"
	TypeCreditCreated     = "credit.created"
	TypeCreditUpdated     = "credit.updated"
	TypeCreditSettled     = "credit.settled"
)

// Deltas are the signed changes applied to a tab's running totals.
type Deltas struct {
	Total    money.Money `json:"total"`
	Paid     money.Money `json:"paid"`
	Credited money.Money `json:"credited"`
}

// Transition records one entity moving from OldStatus to NewStatus.
// An empty OldStatus means the entity was just created.
type Transition struct {
	Kind      Kind
	ID        uuid.UUID
	TabID     uuid.UUID
	TableID   uuid.UUID
	OldStatus string
	NewStatus string
	Amount    money.Money
	Deltas    Deltas
	Overpaid  bool
	At        time.Time
}

// Event is the serializable notification handed to sinks.
type Event struct {
	Type    string          `json:"type"`
	TabID   uuid.UUID       `json:"tab_id"`
	TableID uuid.UUID       `json:"table_id"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

type payload struct {
	Kind      Kind        `json:"kind"`
	ID        uuid.UUID   `json:"id"`
	OldStatus string      `json:"old_status,omitempty"`
	NewStatus string      `json:"new_status"`
	Amount    money.Money `json:"amount"`
	Deltas    Deltas      `json:"deltas"`
	Overpaid  bool        `json:"overpaid,omitempty"`
}

// Translate builds the event for a transition.
func Translate(t Transition) (Event, error) {
	body, err := json.Marshal(payload{
		Kind:      t.Kind,
		ID:        t.ID,
		OldStatus: t.OldStatus,
		NewStatus: t.NewStatus,
		Amount:    t.Amount,
		Deltas:    t.Deltas,
		Overpaid:  t.Overpaid,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:    typeFor(t),
		TabID:   t.TabID,
		TableID: t.TableID,
		At:      t.At,
		Payload: body,
	}, nil
}

func typeFor(t Transition) string {
	created := t.OldStatus == ""
	switch t.Kind {
	case KindTable:
		switch {
		case t.NewStatus == "OCCUPIED":
			return TypeTableOpened
		case t.OldStatus == "OCCUPIED" && t.NewStatus == "AVAILABLE":
			return TypeTableClosed
		}
		return TypeTableUpdated
	case KindTab:
		switch {
		case t.Overpaid:
			return TypeTabOverpaid
		case created:
			return TypeTabOpened
		case t.NewStatus == "FULLY_PAID":
			return TypeTabSettled
		case t.NewStatus == "CANCELLED":
			return TypeTabCancelled
		}
		return TypeTabUpdated
	case KindOrder:
		switch {
		case created:
			return TypeOrderCreated
		case t.NewStatus == "CANCELLED":
			return TypeOrderCancelled
		}
		return TypeOrderUpdated
	case KindItem:
		switch {
		case created:
			return TypeItemAdded
		case t.NewStatus == "CANCELLED":
			return TypeItemCancelled
		}
		return TypeItemUpdated
	case KindPayment:
		if t.NewStatus == "REVERSED" {
			return TypePaymentReversed
		}
		return TypePaymentRegistered
	case KindCredit:
		switch {
		case created:
			return TypeCreditCreated
		case t.NewStatus == "FULLY_PAID":
			return TypeCreditSettled
		}
		return TypeCreditUpdated
	}
	return string(t.Kind) + ".updated"
}

// Sink delivers events somewhere.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })

// Emitter translates transitions and hands them to a sink.
type Emitter struct {
	sink   Sink
	logger *slog.Logger
}

// NewEmitter creates an Emitter. A nil sink discards events.
func NewEmitter(sink Sink, logger *slog.Logger) *Emitter {
	if sink == nil {
		sink = Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{sink: sink, logger: logger}
}

// Emit publishes transitions in order. Failures are logged, not returned.
func (e *Emitter) Emit(ctx context.Context, ts ...Transition) {
	for _, t := range ts {
		ev, err := Translate(t)
		if err != nil {
			e.logger.Error("translate event", "kind", t.Kind, "id", t.ID, "error", err)
			continue
		}
		if err := e.sink.Publish(ctx, ev); err != nil {
			e.logger.Warn("publish event", "type", ev.Type, "tab_id", ev.TabID, "error", err)
		}
	}
}

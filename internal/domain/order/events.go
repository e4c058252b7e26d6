package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Event types emitted after an order reaches a terminal state.
const (
	EventOrderPaid     = "order.paid"
	EventOrderCanceled = "order.canceled"
)

// Event describes an order state change for downstream consumers.
type Event struct {
	Type         string
	OrderID      string
	Owner        string
	FinalPrice   decimal.Decimal
	DiscountCode string
	OccurredAt   time.Time
}

// Publisher delivers order events. Delivery is best effort: a failed publish
// never rolls back the state change that produced the event.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

func newEvent(typ string, s Snapshot, now time.Time) Event {
	return Event{
		Type:         typ,
		OrderID:      s.ID,
		Owner:        s.Owner,
		FinalPrice:   s.FinalPrice,
		DiscountCode: s.DiscountCode,
		OccurredAt:   now.UTC(),
	}
}

package coordinator

import (
	"context"
	"time"

	"syntra-floor/internal/ledger"
)

type EventType string

const (
	EventOrderStarted    EventType = "order.started"
	EventOrderAssigned   EventType = "order.assigned"
	EventItemsChanged    EventType = "order.items_changed"
	EventItemStatus      EventType = "order.item_status"
	EventPaymentRecorded EventType = "order.payment_recorded"
	EventCheckClosed     EventType = "check.closed"
	EventCheckReopened   EventType = "check.reopened"
	EventOrderVoided     EventType = "order.voided"
	EventTableCleared    EventType = "table.cleared"
	EventTableCleaned    EventType = "table.cleaned"
	EventTablesMerged    EventType = "tables.merged"
	EventTablesUnmerged  EventType = "tables.unmerged"
)

// Event is the user-visible confirmation of a completed transition.
type Event struct {
	ID       string        `json:"id"`
	Type     EventType     `json:"type"`
	OrderID  string        `json:"order_id,omitempty"`
	TableIDs []string      `json:"table_ids,omitempty"`
	Message  string        `json:"message"`
	Order    *ledger.Order `json:"order,omitempty"`
	At       time.Time     `json:"at"`
}

// Notifier delivers events. Delivery failures never undo a transition.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event) error

func (f NotifierFunc) Notify(ctx context.Context, e Event) error { return f(ctx, e) }

func (c *Coordinator) emit(ctx context.Context, typ EventType, msg string, o *ledger.Order, tableIDs ...string) {
	ids := tableIDs[:0:0]
	for _, id := range tableIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	e := Event{
		ID:       c.newID(),
		Type:     typ,
		TableIDs: ids,
		Message:  msg,
		Order:    o,
		At:       c.now(),
	}
	if o != nil {
		e.OrderID = o.ID
	}
	if err := c.notifier.Notify(ctx, e); err != nil {
		c.log.Warn("NOTIFY", "event delivery failed", "type", string(typ), "error", err)
	}
}

package coordinator

import (
	"context"
	"sort"
	"time"

	"syntra-floor/internal/ledger"
)

type ActionKind string

const (
	ConfirmUnreadyPayment ActionKind = "confirm-unready-payment"
	ConfirmVoid           ActionKind = "confirm-void"
)

// PendingAction is the first half of a guarded transition. Nothing has
// changed yet; Confirm performs the transition and Cancel drops it.
type PendingAction struct {
	ID        string     `json:"id"`
	Kind      ActionKind `json:"kind"`
	OrderID   string     `json:"order_id"`
	TableID   string     `json:"table_id,omitempty"`
	Prompt    string     `json:"prompt"`
	CreatedAt time.Time  `json:"created_at"`
}

// propose stores a pending action, replacing an earlier one of the same kind
// for the same check.
func (c *Coordinator) propose(kind ActionKind, orderID, tableID, prompt string) *PendingAction {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for id, p := range c.pending {
		if p.OrderID == orderID && p.Kind == kind {
			delete(c.pending, id)
		}
	}
	p := PendingAction{
		ID:        c.newID(),
		Kind:      kind,
		OrderID:   orderID,
		TableID:   tableID,
		Prompt:    prompt,
		CreatedAt: c.now(),
	}
	c.pending[p.ID] = p
	return &p
}

func (c *Coordinator) take(actionID string) (PendingAction, bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	p, ok := c.pending[actionID]
	if ok {
		delete(c.pending, actionID)
	}
	return p, ok
}

// PendingFor lists the unanswered confirmations for a check, oldest first.
func (c *Coordinator) PendingFor(orderID string) []PendingAction {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	var out []PendingAction
	for _, p := range c.pending {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Confirm accepts a pending action. An unready-items confirmation opens the
// payment selector; a void confirmation voids the check.
func (c *Coordinator) Confirm(ctx context.Context, actionID string) (Result, error) {
	p, ok := c.take(actionID)
	if !ok {
		return Result{}, ErrActionNotFound
	}
	switch p.Kind {
	case ConfirmUnreadyPayment:
		unlock, err := c.lockScope(ctx, c.orderScope(p.OrderID))
		if err != nil {
			return Result{}, err
		}
		defer unlock()

		o, ok := c.orders.Get(p.OrderID)
		if !ok {
			return Result{}, ErrOrderNotFound
		}
		// The check may have been settled since the question was asked.
		if o.Status.Retired() || o.CheckStatus == ledger.CheckClosed {
			return Result{Order: orderPtr(o)}, ledger.ErrCheckClosed
		}
		return Result{Order: orderPtr(o), OpenPayment: true}, nil
	case ConfirmVoid:
		return c.void(ctx, p.OrderID)
	}
	return Result{}, ErrActionNotFound
}

// Cancel declines a pending action. No state changes.
func (c *Coordinator) Cancel(actionID string) (Result, error) {
	p, ok := c.take(actionID)
	if !ok {
		return Result{}, ErrActionNotFound
	}
	res := Result{}
	if o, ok := c.orders.Get(p.OrderID); ok {
		res.Order = orderPtr(o)
	}
	return res, nil
}

// CancelPendingFor drops every confirmation still open for a check.
func (c *Coordinator) CancelPendingFor(orderID string) int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	n := 0
	for id, p := range c.pending {
		if p.OrderID == orderID {
			delete(c.pending, id)
			n++
		}
	}
	return n
}

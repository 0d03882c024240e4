package coordinator

import (
	"context"
	"fmt"

	"syntra-floor/internal/ledger"
)

// AddItem appends a cart line. A closed check refuses with
// ledger.ErrCheckClosed, which the screen turns into the reopen modal.
func (c *Coordinator) AddItem(ctx context.Context, orderID string, item ledger.CartItem) (Result, error) {
	return c.itemChange(ctx, orderID, fmt.Sprintf("%s added", item.Name), func() (ledger.Order, error) {
		return c.orders.AddItem(orderID, item)
	})
}

func (c *Coordinator) UpdateItem(ctx context.Context, orderID string, item ledger.CartItem) (Result, error) {
	return c.itemChange(ctx, orderID, fmt.Sprintf("%s updated", item.Name), func() (ledger.Order, error) {
		return c.orders.UpdateItem(orderID, item)
	})
}

func (c *Coordinator) RemoveItem(ctx context.Context, orderID, itemID string) (Result, error) {
	return c.itemChange(ctx, orderID, "Item removed", func() (ledger.Order, error) {
		return c.orders.RemoveItem(orderID, itemID)
	})
}

// itemChange runs a cart edit and re-derives the order status from item
// readiness.
func (c *Coordinator) itemChange(ctx context.Context, orderID, msg string, edit func() (ledger.Order, error)) (Result, error) {
	unlock, err := c.lockScope(ctx, c.orderScope(orderID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	before, ok := c.orders.Get(orderID)
	if !ok {
		return Result{}, ErrOrderNotFound
	}
	tx := c.begin()
	defer tx.Rollback()
	tx.saveOrder(before)

	if _, err := edit(); err != nil {
		return Result{Order: orderPtr(before)}, err
	}
	o, err := c.orders.SyncOrderStatus(orderID)
	if err != nil {
		return Result{}, err
	}
	tx.Commit()

	c.log.Debug("COORDINATOR", msg, "order_id", orderID, "items", len(o.Items))
	c.emit(ctx, EventItemsChanged, msg, orderPtr(o), o.ServiceLocationID)
	return Result{Order: orderPtr(o)}, nil
}

// SetItemStatus toggles kitchen readiness of one line, then syncs the order
// status in the same transition.
func (c *Coordinator) SetItemStatus(ctx context.Context, orderID, itemID string, status ledger.ItemStatus) (Result, error) {
	unlock, err := c.lockScope(ctx, c.orderScope(orderID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	before, ok := c.orders.Get(orderID)
	if !ok {
		return Result{}, ErrOrderNotFound
	}
	tx := c.begin()
	defer tx.Rollback()
	tx.saveOrder(before)

	if _, err := c.orders.UpdateItemStatus(orderID, itemID, status); err != nil {
		return Result{Order: orderPtr(before)}, err
	}
	o, err := c.orders.SyncOrderStatus(orderID)
	if err != nil {
		return Result{}, err
	}
	tx.Commit()

	msg := fmt.Sprintf("Item marked %s", status)
	if o.Status == ledger.OrderReady && before.Status != ledger.OrderReady {
		msg = "All items ready"
	}
	c.emit(ctx, EventItemStatus, msg, orderPtr(o), o.ServiceLocationID)
	return Result{Order: orderPtr(o), Message: msg}, nil
}

// UpdateDetails applies a shallow patch (order type, guests, notes).
func (c *Coordinator) UpdateDetails(ctx context.Context, orderID string, p ledger.Patch) (Result, error) {
	unlock, err := c.lockScope(ctx, c.orderScope(orderID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	o, err := c.orders.UpdateDetails(orderID, p)
	if err != nil {
		return Result{}, err
	}
	return Result{Order: orderPtr(o)}, nil
}

// DiscardDraft drops an unassigned draft that never received items or
// payments. Anything else is kept.
func (c *Coordinator) DiscardDraft(ctx context.Context, orderID string) (bool, error) {
	unlock, err := c.lockScope(ctx, c.orderScope(orderID))
	if err != nil {
		return false, err
	}
	defer unlock()

	o, ok := c.orders.Get(orderID)
	if !ok || o.Status != ledger.OrderBuilding || o.Assigned() || o.HasItems() || o.HasPayments() {
		return false, nil
	}
	c.CancelPendingFor(orderID)
	if err := c.orders.Discard(orderID); err != nil {
		return false, err
	}
	c.log.Debug("COORDINATOR", "draft check discarded", "order_id", orderID)
	return true, nil
}

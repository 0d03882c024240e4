package coordinator

import (
	"context"
	"fmt"

	"syntra-floor/internal/floor"
	"syntra-floor/internal/ledger"
)

// OpenTable resolves the check for a table screen. A table with a live binding
// returns that check; a free table gets a new unassigned draft that only
// becomes bound through TakeOrder.
func (c *Coordinator) OpenTable(ctx context.Context, tableID string) (Result, error) {
	unlock, err := c.lockScope(ctx, c.tableScope(tableID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	t, ok := c.tables.Table(tableID)
	if !ok {
		return Result{}, ErrTableNotFound
	}
	if t.Shape.IsStatic() {
		return Result{}, ErrNotOrderable
	}
	primary, _ := c.tables.Primary(tableID)
	if t.Status == floor.StatusNeedsCleaning || primary.Status == floor.StatusNeedsCleaning {
		return Result{Table: tablePtr(t), Navigation: NavTables}, ErrTableNeedsCleaning
	}

	if primary.OrderID != "" {
		if o, ok := c.orders.Get(primary.OrderID); ok {
			return Result{Order: orderPtr(o), Table: tablePtr(primary)}, nil
		}
		c.log.Warn("COORDINATOR", "table bound to a missing check", "table_id", primary.ID, "order_id", primary.OrderID)
	}

	o := c.orders.StartNewOrder()
	c.log.Debug("COORDINATOR", "draft check started", "table_id", primary.ID, "order_id", o.ID)
	return Result{Order: orderPtr(o), Table: tablePtr(primary)}, nil
}

// TakeOrder binds a draft check to a table: the check gets the table as its
// service location and moves to Preparing, every table of the group goes
// in_use.
func (c *Coordinator) TakeOrder(ctx context.Context, tableID, orderID string) (Result, error) {
	unlock, err := c.lockScope(ctx, func() []string {
		return append(c.tableScope(tableID)(), c.orderScope(orderID)()...)
	})
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	t, ok := c.tables.Table(tableID)
	if !ok {
		return Result{}, ErrTableNotFound
	}
	if t.Shape.IsStatic() {
		return Result{}, ErrNotOrderable
	}
	group := c.tables.Group(tableID)
	primary := group[0]
	if primary.Status == floor.StatusNeedsCleaning {
		return Result{}, ErrTableNeedsCleaning
	}

	o, ok := c.orders.Get(orderID)
	if !ok {
		return Result{}, ErrOrderNotFound
	}
	if primary.OrderID == orderID {
		return Result{Order: orderPtr(o), Table: tablePtr(primary)}, nil
	}
	if primary.OrderID != "" {
		return Result{}, ErrTableOccupied
	}
	if o.Status != ledger.OrderBuilding {
		return Result{}, fmt.Errorf("%w: check is %s", ledger.ErrNotDraft, o.Status)
	}

	tx := c.begin()
	defer tx.Rollback()
	tx.saveOrder(o)
	tx.saveTables(group...)

	if _, err := c.orders.AssignToTable(orderID, primary.ID); err != nil {
		return Result{}, err
	}
	if _, err := c.orders.UpdateOrderStatus(orderID, ledger.OrderPreparing); err != nil {
		return Result{}, err
	}
	o, err = c.orders.SyncOrderStatus(orderID)
	if err != nil {
		return Result{}, err
	}
	for _, m := range group {
		c.tables.BindOrder(m.ID, orderID)
		c.tables.UpdateTableStatus(m.ID, floor.StatusInUse)
	}
	tx.Commit()

	primary, _ = c.tables.Table(primary.ID)
	msg := fmt.Sprintf("Order taken for %s", primary.Name)
	c.log.Info("COORDINATOR", msg, "table_id", primary.ID, "order_id", orderID)
	c.emit(ctx, EventOrderAssigned, msg, orderPtr(o), tableIDs(group)...)
	return Result{Order: orderPtr(o), Table: tablePtr(primary), Message: msg}, nil
}

// RequestPayment is the Pay intent. Unready items raise a confirmation
// instead of blocking; otherwise the payment selector opens directly.
func (c *Coordinator) RequestPayment(ctx context.Context, orderID string) (Result, error) {
	unlock, err := c.lockScope(ctx, c.orderScope(orderID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	o, ok := c.orders.Get(orderID)
	if !ok {
		return Result{}, ErrOrderNotFound
	}
	if o.Status.Retired() || o.CheckStatus == ledger.CheckClosed {
		return Result{Order: orderPtr(o)}, ledger.ErrCheckClosed
	}
	if o.HasItems() && o.AllQuantitiesPaid() {
		return Result{Order: orderPtr(o)}, ErrNothingToPay
	}
	if !o.AllItemsReady() {
		p := c.propose(ConfirmUnreadyPayment, o.ID, o.ServiceLocationID,
			"Some items are not ready yet. Proceed to payment anyway?")
		return Result{Order: orderPtr(o), Pending: p}, nil
	}
	return Result{Order: orderPtr(o), OpenPayment: true}, nil
}

// RecordPayment is the payment surface callback: the collaborator has
// captured money and reports which units it settled.
func (c *Coordinator) RecordPayment(ctx context.Context, orderID string, in ledger.PaymentInput) (Result, error) {
	unlock, err := c.lockScope(ctx, c.orderScope(orderID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	o, err := c.orders.ApplyPayment(orderID, in)
	if err != nil {
		return Result{}, err
	}
	c.CancelPendingFor(orderID)

	msg := fmt.Sprintf("Payment of %s recorded", in.Amount.StringFixed(2))
	if o.PaidStatus == ledger.Paid {
		msg = "Check paid in full"
	}
	c.log.Info("COORDINATOR", msg, "order_id", orderID, "method", in.Method, "paid_status", string(o.PaidStatus))
	c.emit(ctx, EventPaymentRecorded, msg, orderPtr(o), o.ServiceLocationID)
	return Result{Order: orderPtr(o), Message: msg}, nil
}

// CloseCheck applies the close guard in order: an unpaid check with items
// asks to be voided instead; a reopened check whose units are all paid closes
// directly; anything else closes directly. Table state is not touched.
func (c *Coordinator) CloseCheck(ctx context.Context, orderID string) (Result, error) {
	unlock, err := c.lockScope(ctx, c.orderScope(orderID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	o, ok := c.orders.Get(orderID)
	if !ok {
		return Result{}, ErrOrderNotFound
	}
	if o.Status.Retired() || o.CheckStatus == ledger.CheckClosed {
		return Result{Order: orderPtr(o)}, ledger.ErrCheckClosed
	}

	if !o.HasPayments() && o.HasItems() {
		p := c.propose(ConfirmVoid, o.ID, o.ServiceLocationID,
			"No payment has been recorded. Void this check?")
		return Result{Order: orderPtr(o), Pending: p}, nil
	}

	o, err = c.orders.Close(orderID)
	if err != nil {
		return Result{}, err
	}
	c.CancelPendingFor(orderID)

	msg := "Check closed"
	c.log.Info("COORDINATOR", msg, "order_id", orderID, "paid_status", string(o.PaidStatus))
	c.emit(ctx, EventCheckClosed, msg, orderPtr(o), o.ServiceLocationID)
	return Result{Order: orderPtr(o), Message: msg}, nil
}

// RequestVoid is the explicit Void intent. A check with payments is a hard
// block; otherwise a confirmation is raised.
func (c *Coordinator) RequestVoid(ctx context.Context, orderID string) (Result, error) {
	unlock, err := c.lockScope(ctx, c.orderScope(orderID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	o, ok := c.orders.Get(orderID)
	if !ok {
		return Result{}, ErrOrderNotFound
	}
	if o.HasPayments() {
		return Result{Order: orderPtr(o)}, ErrVoidWithPayments
	}
	if o.Status == ledger.OrderVoided || o.Status == ledger.OrderCancelled {
		return Result{Order: orderPtr(o)}, ledger.ErrOrderRetired
	}
	p := c.propose(ConfirmVoid, o.ID, o.ServiceLocationID, "Void this check? This cannot be undone.")
	return Result{Order: orderPtr(o), Pending: p}, nil
}

// void voids the check and hands its tables straight back as available,
// skipping cleaning. The payment check is repeated under the lock.
func (c *Coordinator) void(ctx context.Context, orderID string) (Result, error) {
	unlock, err := c.lockScope(ctx, c.orderScope(orderID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	o, ok := c.orders.Get(orderID)
	if !ok {
		return Result{}, ErrOrderNotFound
	}
	if o.HasPayments() {
		return Result{Order: orderPtr(o)}, ErrVoidWithPayments
	}
	group := c.boundTables(o)

	tx := c.begin()
	defer tx.Rollback()
	tx.saveOrder(o)
	tx.saveTables(group...)

	o, err = c.orders.Void(orderID)
	if err != nil {
		return Result{}, err
	}
	if len(group) > 1 {
		c.tables.UnmergeTables(group[0].ID, floor.DissolveGroup)
	}
	for _, t := range group {
		c.tables.ReleaseOrder(t.ID)
		c.tables.UpdateTableStatus(t.ID, floor.StatusAvailable)
	}
	tx.Commit()
	c.CancelPendingFor(orderID)

	msg := "Check voided"
	if len(group) > 0 {
		msg = fmt.Sprintf("Check voided, %s available", group[0].Name)
	}
	c.log.Info("COORDINATOR", msg, "order_id", orderID, "tables", tableNames(group))
	c.archive(ctx, o, group)
	c.emit(ctx, EventOrderVoided, msg, orderPtr(o), tableIDs(group)...)

	res := Result{Order: orderPtr(o), Navigation: NavBack, Message: msg}
	if len(group) > 0 {
		t, _ := c.tables.Table(group[0].ID)
		res.Table = tablePtr(t)
	}
	return res, nil
}

// ReopenCheck makes a closed check accept items again. The check must still
// hold its table; once the table is cleared the party is gone.
func (c *Coordinator) ReopenCheck(ctx context.Context, orderID string) (Result, error) {
	unlock, err := c.lockScope(ctx, c.orderScope(orderID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	o, ok := c.orders.Get(orderID)
	if !ok {
		return Result{}, ErrOrderNotFound
	}
	if o.CheckStatus != ledger.CheckClosed || o.Status != ledger.OrderClosed {
		return Result{Order: orderPtr(o)}, ledger.ErrCheckNotClosed
	}
	if o.Assigned() && c.boundTables(o) == nil {
		return Result{Order: orderPtr(o)}, ErrCheckNotBound
	}

	o, err = c.orders.Reopen(orderID)
	if err != nil {
		return Result{}, err
	}
	msg := "Check reopened"
	c.log.Info("COORDINATOR", msg, "order_id", orderID, "order_status", string(o.Status))
	c.emit(ctx, EventCheckReopened, msg, orderPtr(o), o.ServiceLocationID)
	return Result{Order: orderPtr(o), Message: msg}, nil
}

// settled reports whether a check may leave its table through Clear Table.
func settled(o ledger.Order) bool {
	return o.Status == ledger.OrderClosed ||
		o.PaidStatus == ledger.Paid ||
		!o.HasItems() ||
		o.AllQuantitiesPaid()
}

// ClearTable sends the table (and every member of its group) to cleaning and
// closes the bound check if it is still open. It is the only path that frees
// occupancy after a check is paid or closed.
func (c *Coordinator) ClearTable(ctx context.Context, tableID string) (Result, error) {
	unlock, err := c.lockScope(ctx, c.tableScope(tableID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	if _, ok := c.tables.Table(tableID); !ok {
		return Result{}, ErrTableNotFound
	}
	group := c.tables.Group(tableID)
	primary := group[0]

	var (
		o     ledger.Order
		bound bool
	)
	if primary.OrderID != "" {
		o, bound = c.orders.Get(primary.OrderID)
	}
	if bound && !settled(o) {
		return Result{Order: orderPtr(o), Table: tablePtr(primary)}, ErrCheckNotSettled
	}

	tx := c.begin()
	defer tx.Rollback()
	tx.saveTables(group...)
	if bound {
		tx.saveOrder(o)
		if o.Status != ledger.OrderClosed {
			if o, err = c.orders.Close(o.ID); err != nil {
				return Result{}, err
			}
		}
	}
	if len(group) > 1 {
		c.tables.UnmergeTables(primary.ID, floor.DissolveGroup)
	}
	for _, t := range group {
		c.tables.ReleaseOrder(t.ID)
		c.tables.UpdateTableStatus(t.ID, floor.StatusNeedsCleaning)
	}
	tx.Commit()

	msg := fmt.Sprintf("%s cleared and marked for cleaning", primary.Name)
	c.log.Info("COORDINATOR", msg, "table_id", primary.ID, "tables", tableNames(group))
	res := Result{Navigation: NavTables, Message: msg}
	if bound {
		c.CancelPendingFor(o.ID)
		c.archive(ctx, o, group)
		res.Order = orderPtr(o)
		c.emit(ctx, EventTableCleared, msg, orderPtr(o), tableIDs(group)...)
	} else {
		c.emit(ctx, EventTableCleared, msg, nil, tableIDs(group)...)
	}
	t, _ := c.tables.Table(primary.ID)
	res.Table = tablePtr(t)
	return res, nil
}

// MarkCleaned returns a bussed table to service.
func (c *Coordinator) MarkCleaned(ctx context.Context, tableID string) (Result, error) {
	unlock, err := c.lockScope(ctx, c.tableScope(tableID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	t, ok := c.tables.Table(tableID)
	if !ok {
		return Result{}, ErrTableNotFound
	}
	if t.Status != floor.StatusNeedsCleaning {
		return Result{Table: tablePtr(t)}, ErrNotCleaning
	}
	t, _ = c.tables.UpdateTableStatus(tableID, floor.StatusAvailable)

	msg := fmt.Sprintf("%s is ready for guests", t.Name)
	c.log.Info("COORDINATOR", msg, "table_id", tableID)
	c.emit(ctx, EventTableCleaned, msg, nil, tableID)
	return Result{Table: tablePtr(t), Message: msg}, nil
}

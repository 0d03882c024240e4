package coordinator

import (
	"context"
	"fmt"
	"strings"

	"syntra-floor/internal/floor"
	"syntra-floor/internal/ledger"
)

// MergeTables joins tables under ids[0]. The checks already open on them are
// consolidated into one new check first, and only then is the group formed
// and bound to it. A failure in either step leaves both aggregates as they
// were.
func (c *Coordinator) MergeTables(ctx context.Context, ids []string) (Result, error) {
	if err := c.tables.CanMerge(ids); err != nil {
		return Result{}, err
	}
	unlock, err := c.lockScope(ctx, c.tableScope(ids...))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	if err := c.tables.CanMerge(ids); err != nil {
		return Result{}, err
	}

	tables := make([]floor.Table, 0, len(ids))
	var sources []string
	for _, id := range ids {
		t, _ := c.tables.Table(id)
		tables = append(tables, t)
		if t.OrderID == "" {
			continue
		}
		o, ok := c.orders.Get(t.OrderID)
		if !ok {
			continue
		}
		if o.CheckStatus == ledger.CheckClosed || o.Status.Retired() {
			return Result{}, fmt.Errorf("%w: %s", ErrMergeClosedCheck, t.Name)
		}
		sources = append(sources, o.ID)
	}
	primary := tables[0]
	note := "Merged: " + strings.Join(tableNames(tables), " + ")

	tx := c.begin()
	defer tx.Rollback()
	tx.saveTables(tables...)

	merged, snapshots, err := c.orders.Consolidate(sources, primary.ID, note)
	if err != nil {
		return Result{}, fmt.Errorf("consolidate checks: %w", err)
	}
	tx.onRollback(func() { c.orders.RevertConsolidation(merged.ID, snapshots) })

	if err := c.tables.MergeTables(ids, merged.ID); err != nil {
		return Result{}, err
	}
	tx.Commit()

	for _, id := range sources {
		c.CancelPendingFor(id)
	}
	primary, _ = c.tables.Table(primary.ID)
	msg := fmt.Sprintf("Tables merged: %s", strings.Join(tableNames(tables), " + "))
	c.log.Info("COORDINATOR", msg, "primary_id", primary.ID, "order_id", merged.ID, "sources", sources)
	c.emit(ctx, EventTablesMerged, msg, orderPtr(merged), ids...)
	return Result{Order: orderPtr(merged), Table: tablePtr(primary), Message: msg}, nil
}

// UnmergeTables splits the group containing tableID according to the
// configured policy. The check stays with the group primary; released tables
// lose the binding and become available. When the primary itself is detached
// the check follows the promoted table.
func (c *Coordinator) UnmergeTables(ctx context.Context, tableID string) (Result, error) {
	unlock, err := c.lockScope(ctx, c.tableScope(tableID))
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	t, ok := c.tables.Table(tableID)
	if !ok {
		return Result{}, ErrTableNotFound
	}
	if !t.IsMerged() {
		return Result{Table: tablePtr(t)}, nil
	}
	group := c.tables.Group(tableID)

	tx := c.begin()
	defer tx.Rollback()
	tx.saveTables(group...)

	var (
		o     ledger.Order
		bound bool
	)
	if group[0].OrderID != "" {
		o, bound = c.orders.Get(group[0].OrderID)
	}
	if bound {
		tx.saveOrder(o)
	}

	res, ok := c.tables.UnmergeTables(tableID, c.policy)
	if !ok {
		return Result{Table: tablePtr(t)}, nil
	}
	for _, id := range res.Released {
		c.tables.UpdateTableStatus(id, floor.StatusAvailable)
	}
	if bound && res.PrimaryChanged {
		if o, err = c.orders.AssignToTable(o.ID, res.PrimaryID); err != nil {
			return Result{}, err
		}
	}
	tx.Commit()

	primary, _ := c.tables.Table(res.PrimaryID)
	msg := fmt.Sprintf("Tables unmerged, %s keeps the check", primary.Name)
	if res.Dissolved {
		msg = fmt.Sprintf("Group dissolved, %s keeps the check", primary.Name)
	}
	c.log.Info("COORDINATOR", msg, "policy", string(c.policy), "released", res.Released)

	out := Result{Table: tablePtr(primary), Message: msg}
	if bound {
		out.Order = orderPtr(o)
	}
	c.emit(ctx, EventTablesUnmerged, msg, out.Order, tableIDs(group)...)
	return out, nil
}

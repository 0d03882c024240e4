package coordinator

import (
	"syntra-floor/internal/floor"
	"syntra-floor/internal/ledger"
)

// txn records how to undo the steps of a multi-aggregate transition. Callers
// snapshot what they are about to touch, then either Commit or let the
// deferred Rollback restore the snapshots in reverse order.
type txn struct {
	c         *Coordinator
	undo      []func()
	committed bool
}

func (c *Coordinator) begin() *txn {
	return &txn{c: c}
}

func (tx *txn) saveTables(tables ...floor.Table) {
	snap := append([]floor.Table(nil), tables...)
	tx.undo = append(tx.undo, func() { tx.c.tables.Restore(snap...) })
}

func (tx *txn) saveOrder(o ledger.Order) {
	snap := o.Clone()
	tx.undo = append(tx.undo, func() { tx.c.orders.Restore(snap) })
}

func (tx *txn) onRollback(fn func()) {
	tx.undo = append(tx.undo, fn)
}

func (tx *txn) Rollback() {
	if tx.committed {
		return
	}
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.committed = true
}

func (tx *txn) Commit() {
	tx.committed = true
	tx.undo = nil
}

package coordinator

import (
	"fmt"

	"syntra-floor/internal/floor"
	"syntra-floor/internal/ledger"
)

// CheckInvariants audits the pairing between tables and checks and returns a
// description of every violation found. It is meant for tests and the health
// endpoint; it does not lock.
func (c *Coordinator) CheckInvariants() []string {
	var out []string
	orders := make(map[string]ledger.Order)
	for _, o := range c.orders.List(nil) {
		orders[o.ID] = o
	}

	for _, t := range c.tables.AllTables() {
		out = append(out, c.checkTable(t, orders)...)
	}

	for _, o := range orders {
		reopened := o.CheckStatus == ledger.CheckOpened && o.ReopenedAt != nil
		derived := ledger.DerivePaidStatus(o.Items, o.Payments)
		if o.PaidStatus != derived && !(reopened && o.PaidStatus == ledger.Pending) {
			out = append(out, fmt.Sprintf("order %s: paid status %s, items say %s", o.ID, o.PaidStatus, derived))
		}
		if o.Status == ledger.OrderVoided && o.HasPayments() {
			out = append(out, fmt.Sprintf("order %s: voided with payments", o.ID))
		}
		if o.Status == ledger.OrderBuilding && o.Assigned() {
			out = append(out, fmt.Sprintf("order %s: draft bound to %s", o.ID, o.ServiceLocationID))
		}
		if !o.Status.Retired() && o.Assigned() {
			p, ok := c.tables.Primary(o.ServiceLocationID)
			switch {
			case !ok:
				out = append(out, fmt.Sprintf("order %s: service location %s missing", o.ID, o.ServiceLocationID))
			case p.ID != o.ServiceLocationID:
				out = append(out, fmt.Sprintf("order %s: bound to member %s instead of primary %s", o.ID, o.ServiceLocationID, p.ID))
			case p.OrderID != o.ID:
				out = append(out, fmt.Sprintf("order %s: table %s does not hold it", o.ID, p.Name))
			}
		}
	}
	return out
}

func (c *Coordinator) checkTable(t floor.Table, orders map[string]ledger.Order) []string {
	var out []string
	if t.Shape.IsStatic() {
		if t.OrderID != "" || t.Status == floor.StatusInUse {
			out = append(out, fmt.Sprintf("table %s: fixture is in use", t.Name))
		}
		return out
	}

	p, _ := c.tables.Primary(t.ID)
	if t.OrderID != p.OrderID {
		out = append(out, fmt.Sprintf("table %s: binding %q differs from primary %q", t.Name, t.OrderID, p.OrderID))
	}
	if !t.IsPrimary && t.PrimaryID != "" {
		found := false
		for _, id := range p.MergedWith {
			found = found || id == t.ID
		}
		if !found {
			out = append(out, fmt.Sprintf("table %s: primary %s does not list it", t.Name, t.PrimaryID))
		}
	}

	o, bound := orders[p.OrderID]
	occupied := bound && live(o)
	if p.OrderID != "" && !bound {
		out = append(out, fmt.Sprintf("table %s: bound to missing order %s", t.Name, p.OrderID))
	}
	if bound && o.ServiceLocationID != p.ID {
		out = append(out, fmt.Sprintf("table %s: order %s points at %s", t.Name, o.ID, o.ServiceLocationID))
	}
	if occupied != (t.Status == floor.StatusInUse) {
		out = append(out, fmt.Sprintf("table %s: status %s with occupied=%t", t.Name, t.Status, occupied))
	}
	return out
}

// live reports whether a bound check still occupies its table. A closed check
// keeps the table until it is cleared.
func live(o ledger.Order) bool {
	return o.Status != ledger.OrderVoided && o.Status != ledger.OrderCancelled
}

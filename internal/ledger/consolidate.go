package ledger

import "fmt"

// Consolidate folds the in-progress checks of merged tables into one new order
// bound to locationID. Source checks are cancelled and point at the new order.
// With no sources the result is an empty check for the group. The returned
// snapshots hold the sources as they were, for RevertConsolidation.
func (l *Ledger) Consolidate(sourceIDs []string, locationID, note string) (Order, []Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sources := make([]*Order, 0, len(sourceIDs))
	seen := make(map[string]struct{}, len(sourceIDs))
	for _, id := range sourceIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		o, ok := l.orders[id]
		if !ok {
			return Order{}, nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		if err := editable(o); err != nil {
			return Order{}, nil, fmt.Errorf("order %s: %w", id, err)
		}
		sources = append(sources, o)
	}

	now := l.now()
	merged := &Order{
		ID:                l.newID(),
		ServiceLocationID: locationID,
		OrderType:         DineIn,
		Notes:             note,
		Status:            OrderPreparing,
		CheckStatus:       CheckOpened,
		Items:             []CartItem{},
		Payments:          []Payment{},
		OpenedAt:          now,
	}

	snapshots := make([]Order, 0, len(sources))
	lineIDs := make(map[string]struct{})
	for _, src := range sources {
		snapshots = append(snapshots, src.Clone())
		c := src.Clone()
		for _, it := range c.Items {
			// Line ids are only unique within one check.
			if _, taken := lineIDs[it.ID]; taken {
				it.ID = l.newID()
			}
			lineIDs[it.ID] = struct{}{}
			merged.Items = append(merged.Items, it)
		}
		merged.Payments = append(merged.Payments, c.Payments...)
		merged.Guests += c.Guests
		merged.MergedFrom = append(merged.MergedFrom, c.ID)
		if c.OpenedAt.Before(merged.OpenedAt) {
			merged.OpenedAt = c.OpenedAt
		}
	}
	merged.Status = DeriveOrderStatus(merged.Status, merged.Items)
	merged.PaidStatus = DerivePaidStatus(merged.Items, merged.Payments)

	for _, src := range sources {
		src.Status = OrderCancelled
		src.CheckStatus = CheckClosed
		src.ClosedAt = &now
		src.MergedInto = merged.ID
	}
	l.orders[merged.ID] = merged
	return merged.Clone(), snapshots, nil
}

// RevertConsolidation removes a consolidated order and puts its sources back
// exactly as they were.
func (l *Ledger) RevertConsolidation(mergedID string, snapshots []Order) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.orders, mergedID)
	l.restoreLocked(snapshots)
}

// Restore writes order snapshots back verbatim. It is the rollback path for
// multi-step transitions.
func (l *Ledger) Restore(snapshots ...Order) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.restoreLocked(snapshots)
}

// Forget drops an order created inside a transition that was rolled back.
func (l *Ledger) Forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.orders, id)
}

func (l *Ledger) restoreLocked(snapshots []Order) {
	for _, s := range snapshots {
		c := s.Clone()
		l.orders[c.ID] = &c
	}
}

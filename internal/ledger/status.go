package ledger

// DeriveOrderStatus is the single derivation rule from item readiness to order
// status. Unassigned, open-tab and retired orders keep their status.
func DeriveOrderStatus(current OrderStatus, items []CartItem) OrderStatus {
	switch current {
	case OrderBuilding, OrderOpen, OrderClosed, OrderCancelled, OrderVoided:
		return current
	}
	if len(items) == 0 {
		return OrderPreparing
	}
	for _, it := range items {
		if it.Status != ItemReady {
			return OrderPreparing
		}
	}
	return OrderReady
}

// DerivePaidStatus computes payment completeness from per-item paid
// quantities.
func DerivePaidStatus(items []CartItem, payments []Payment) PaidStatus {
	anyPaid := false
	allPaid := len(items) > 0
	for _, it := range items {
		if it.PaidQuantity > 0 {
			anyPaid = true
		}
		if !it.FullyPaid() {
			allPaid = false
		}
	}
	switch {
	case len(payments) == 0 && !anyPaid:
		return Unpaid
	case allPaid:
		return Paid
	default:
		return Pending
	}
}

package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrItemNotFound    = errors.New("item not found")
	ErrDuplicateItem   = errors.New("item id already on the check")
	ErrCheckClosed     = errors.New("check is closed, reopen the check to add items")
	ErrOrderRetired    = errors.New("order is closed, voided or cancelled")
	ErrHasPayments     = errors.New("order has payments recorded")
	ErrCheckNotClosed  = errors.New("check is not closed")
	ErrAlreadyAssigned = errors.New("order is already assigned to a table")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPrice    = errors.New("price must not be negative")
	ErrItemPaid        = errors.New("item has paid units")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPayment  = errors.New("invalid payment")
	ErrNotDraft        = errors.New("order is not an unassigned draft")
)

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// Ledger owns every check. It is addressed only by order id and knows nothing
// about tables beyond the service location id the coordinator writes.
type Ledger struct {
	mu     sync.RWMutex
	orders map[string]*Order
	now    func() time.Time
	newID  func() string
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		orders: make(map[string]*Order),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type Patch struct {
	OrderType *OrderType `json:"order_type,omitempty"`
	Guests    *int       `json:"guests,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}

type PaymentInput struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference,omitempty"`
	// Allocations maps item id to the number of units this payment settles.
	// A nil map settles every outstanding unit.
	Allocations map[string]int `json:"allocations,omitempty"`
}

func (l *Ledger) StartNewOrder() Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	o := &Order{
		ID:          l.newID(),
		OrderType:   DineIn,
		Status:      OrderBuilding,
		CheckStatus: CheckOpened,
		PaidStatus:  Unpaid,
		Items:       []CartItem{},
		Payments:    []Payment{},
		OpenedAt:    l.now(),
	}
	l.orders[o.ID] = o
	return o.Clone()
}

func (l *Ledger) Get(id string) (Order, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.orders[id]
	if !ok {
		return Order{}, false
	}
	return o.Clone(), true
}

// List returns the orders accepted by keep, oldest first. A nil keep returns
// every order.
func (l *Ledger) List(keep func(Order) bool) []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Order, 0, len(l.orders))
	for _, o := range l.orders {
		if keep == nil || keep(*o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// Discard drops an unassigned draft that never received a payment.
func (l *Ledger) Discard(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status != OrderBuilding || o.Assigned() || o.HasPayments() {
		return ErrNotDraft
	}
	delete(l.orders, id)
	return nil
}

// AssignToTable writes the service location. A closed check that still holds
// its table may be moved when its group primary changes.
func (l *Ledger) AssignToTable(id, tableID string) (Order, error) {
	return l.mutate(id, func(o *Order) error {
		if o.Status == OrderVoided || o.Status == OrderCancelled {
			return ErrOrderRetired
		}
		if o.Assigned() && o.ServiceLocationID != tableID && o.Status == OrderBuilding {
			return ErrAlreadyAssigned
		}
		o.ServiceLocationID = tableID
		return nil
	})
}

func (l *Ledger) UpdateDetails(id string, p Patch) (Order, error) {
	return l.mutate(id, func(o *Order) error {
		if o.Status.Retired() {
			return ErrOrderRetired
		}
		if p.Guests != nil && *p.Guests < 0 {
			return fmt.Errorf("%w: guests %d", ErrInvalidQuantity, *p.Guests)
		}
		if p.OrderType != nil {
			o.OrderType = *p.OrderType
		}
		if p.Guests != nil {
			o.Guests = *p.Guests
		}
		if p.Notes != nil {
			o.Notes = *p.Notes
		}
		return nil
	})
}

func (l *Ledger) AddItem(id string, item CartItem) (Order, error) {
	return l.mutate(id, func(o *Order) error {
		if err := editable(o); err != nil {
			return err
		}
		if err := validateItem(item); err != nil {
			return err
		}
		if item.ID == "" {
			item.ID = l.newID()
		}
		if _, exists := o.item(item.ID); exists {
			return fmt.Errorf("%w: %s", ErrDuplicateItem, item.ID)
		}
		if !item.Status.Valid() {
			item.Status = ItemPreparing
		}
		item.PaidQuantity = 0
		item.AddedAt = l.now()
		item.Customizations = append([]Customization(nil), item.Customizations...)
		o.Items = append(o.Items, item)
		o.PaidStatus = DerivePaidStatus(o.Items, o.Payments)
		return nil
	})
}

// UpdateItem replaces the editable fields of an existing line. Paid units and
// the time the line was added are preserved.
func (l *Ledger) UpdateItem(id string, item CartItem) (Order, error) {
	return l.mutate(id, func(o *Order) error {
		if err := editable(o); err != nil {
			return err
		}
		idx, ok := o.item(item.ID)
		if !ok {
			return ErrItemNotFound
		}
		if err := validateItem(item); err != nil {
			return err
		}
		cur := o.Items[idx]
		if item.Quantity < cur.PaidQuantity {
			return fmt.Errorf("%w: %d units already paid", ErrInvalidQuantity, cur.PaidQuantity)
		}
		cur.MenuItemID = item.MenuItemID
		cur.Name = item.Name
		cur.Quantity = item.Quantity
		cur.Price = item.Price
		cur.Notes = item.Notes
		cur.Customizations = append([]Customization(nil), item.Customizations...)
		if item.Status.Valid() {
			cur.Status = item.Status
		}
		o.Items[idx] = cur
		o.PaidStatus = DerivePaidStatus(o.Items, o.Payments)
		return nil
	})
}

func (l *Ledger) RemoveItem(id, itemID string) (Order, error) {
	return l.mutate(id, func(o *Order) error {
		if err := editable(o); err != nil {
			return err
		}
		idx, ok := o.item(itemID)
		if !ok {
			return ErrItemNotFound
		}
		if o.Items[idx].PaidQuantity > 0 {
			return ErrItemPaid
		}
		o.Items = append(o.Items[:idx], o.Items[idx+1:]...)
		o.PaidStatus = DerivePaidStatus(o.Items, o.Payments)
		return nil
	})
}

// UpdateItemStatus toggles kitchen readiness. It does not resync the order;
// callers run SyncOrderStatus afterwards.
func (l *Ledger) UpdateItemStatus(id, itemID string, status ItemStatus) (Order, error) {
	return l.mutate(id, func(o *Order) error {
		if !status.Valid() {
			return ErrInvalidStatus
		}
		if o.Status.Retired() {
			return ErrOrderRetired
		}
		idx, ok := o.item(itemID)
		if !ok {
			return ErrItemNotFound
		}
		o.Items[idx].Status = status
		return nil
	})
}

func (l *Ledger) UpdateOrderStatus(id string, status OrderStatus) (Order, error) {
	return l.mutate(id, func(o *Order) error {
		if !status.Valid() {
			return ErrInvalidStatus
		}
		o.Status = status
		return nil
	})
}

func (l *Ledger) SyncOrderStatus(id string) (Order, error) {
	return l.mutate(id, func(o *Order) error {
		o.Status = DeriveOrderStatus(o.Status, o.Items)
		return nil
	})
}

// Close finalizes the check. Table state is not touched.
func (l *Ledger) Close(id string) (Order, error) {
	return l.mutate(id, func(o *Order) error {
		if o.Status == OrderVoided || o.Status == OrderCancelled {
			return ErrOrderRetired
		}
		now := l.now()
		o.Status = OrderClosed
		o.CheckStatus = CheckClosed
		o.ClosedAt = &now
		o.PaidStatus = DerivePaidStatus(o.Items, o.Payments)
		return nil
	})
}

func (l *Ledger) Void(id string) (Order, error) {
	return l.mutate(id, func(o *Order) error {
		if o.HasPayments() {
			return ErrHasPayments
		}
		if o.Status == OrderVoided || o.Status == OrderCancelled {
			return ErrOrderRetired
		}
		now := l.now()
		o.Status = OrderVoided
		o.CheckStatus = CheckClosed
		o.ClosedAt = &now
		return nil
	})
}

// Reopen makes a closed check accept items again. Items and paid quantities
// are kept.
func (l *Ledger) Reopen(id string) (Order, error) {
	return l.mutate(id, func(o *Order) error {
		if o.CheckStatus != CheckClosed || o.Status != OrderClosed {
			return ErrCheckNotClosed
		}
		now := l.now()
		o.PaidStatus = Pending
		o.CheckStatus = CheckOpened
		o.Status = OrderPreparing
		o.ClosedAt = nil
		o.ReopenedAt = &now
		o.Status = DeriveOrderStatus(o.Status, o.Items)
		return nil
	})
}

func (l *Ledger) ApplyPayment(id string, in PaymentInput) (Order, error) {
	return l.mutate(id, func(o *Order) error {
		if err := editable(o); err != nil {
			return err
		}
		if !in.Amount.IsPositive() || in.Method == "" {
			return fmt.Errorf("%w: amount and method are required", ErrInvalidPayment)
		}

		alloc := in.Allocations
		if alloc == nil {
			alloc = make(map[string]int, len(o.Items))
			for _, it := range o.Items {
				alloc[it.ID] = it.Quantity - it.PaidQuantity
			}
		}
		for itemID, n := range alloc {
			idx, ok := o.item(itemID)
			if !ok {
				return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
			}
			if n < 0 || n > o.Items[idx].Quantity-o.Items[idx].PaidQuantity {
				return fmt.Errorf("%w: allocation %d for %s", ErrInvalidQuantity, n, itemID)
			}
		}
		for itemID, n := range alloc {
			idx, _ := o.item(itemID)
			o.Items[idx].PaidQuantity += n
		}

		o.Payments = append(o.Payments, Payment{
			ID:        l.newID(),
			Amount:    in.Amount,
			Method:    in.Method,
			Reference: in.Reference,
			At:        l.now(),
		})
		o.PaidStatus = DerivePaidStatus(o.Items, o.Payments)
		return nil
	})
}

func (l *Ledger) mutate(id string, fn func(o *Order) error) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	work := o.Clone()
	if err := fn(&work); err != nil {
		return o.Clone(), err
	}
	*o = work
	return work.Clone(), nil
}

func editable(o *Order) error {
	if o.Status == OrderVoided || o.Status == OrderCancelled {
		return ErrOrderRetired
	}
	if o.CheckStatus == CheckClosed || o.Status == OrderClosed {
		return ErrCheckClosed
	}
	return nil
}

func validateItem(item CartItem) error {
	if item.Quantity < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, item.Quantity)
	}
	if item.Price.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderBuilding  OrderStatus = "building"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderClosed    OrderStatus = "closed"
	OrderCancelled OrderStatus = "cancelled"
	OrderVoided    OrderStatus = "voided"
	OrderOpen      OrderStatus = "open"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderBuilding, OrderPreparing, OrderReady, OrderClosed, OrderCancelled, OrderVoided, OrderOpen:
		return true
	}
	return false
}

// Retired orders no longer hold a service location.
func (s OrderStatus) Retired() bool {
	return s == OrderClosed || s == OrderVoided || s == OrderCancelled
}

type CheckStatus string

const (
	CheckOpened CheckStatus = "opened"
	CheckClosed CheckStatus = "closed"
)

type PaidStatus string

const (
	Paid    PaidStatus = "paid"
	Pending PaidStatus = "pending"
	Unpaid  PaidStatus = "unpaid"
)

type ItemStatus string

const (
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
)

func (s ItemStatus) Valid() bool {
	return s == ItemPreparing || s == ItemReady
}

type OrderType string

const (
	DineIn   OrderType = "dine_in"
	Takeout  OrderType = "takeout"
	Delivery OrderType = "delivery"
)

type Customization struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type CartItem struct {
	ID             string          `json:"id"`
	MenuItemID     string          `json:"menu_item_id"`
	Name           string          `json:"name"`
	Quantity       int             `json:"quantity"`
	PaidQuantity   int             `json:"paid_quantity"`
	Status         ItemStatus      `json:"item_status"`
	Price          decimal.Decimal `json:"price"`
	Customizations []Customization `json:"customizations,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	AddedAt        time.Time       `json:"added_at"`
}

func (i CartItem) UnitPrice() decimal.Decimal {
	p := i.Price
	for _, c := range i.Customizations {
		p = p.Add(c.Price)
	}
	return p
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i CartItem) FullyPaid() bool {
	return i.PaidQuantity == i.Quantity
}

type Payment struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference,omitempty"`
	At        time.Time       `json:"at"`
}

// Order is the check for one dining party.
type Order struct {
	ID                string      `json:"id"`
	ServiceLocationID string      `json:"service_location_id,omitempty"`
	OrderType         OrderType   `json:"order_type"`
	Guests            int         `json:"guests"`
	Notes             string      `json:"notes,omitempty"`
	Status            OrderStatus `json:"order_status"`
	CheckStatus       CheckStatus `json:"check_status"`
	PaidStatus        PaidStatus  `json:"paid_status"`
	Items             []CartItem  `json:"items"`
	Payments          []Payment   `json:"payments"`
	OpenedAt          time.Time   `json:"opened_at"`
	ClosedAt          *time.Time  `json:"closed_at,omitempty"`
	ReopenedAt        *time.Time  `json:"reopened_at,omitempty"`
	MergedFrom        []string    `json:"merged_from,omitempty"`
	MergedInto        string      `json:"merged_into,omitempty"`
}

func (o Order) Assigned() bool {
	return o.ServiceLocationID != ""
}

func (o Order) HasItems() bool {
	return len(o.Items) > 0
}

func (o Order) HasPayments() bool {
	return len(o.Payments) > 0
}

func (o Order) AllItemsReady() bool {
	for _, it := range o.Items {
		if it.Status != ItemReady {
			return false
		}
	}
	return true
}

// AllQuantitiesPaid reports whether paid quantities cover every ordered unit.
// It stays true on a reopened check that has not received new items.
func (o Order) AllQuantitiesPaid() bool {
	var qty, paid int
	for _, it := range o.Items {
		qty += it.Quantity
		paid += it.PaidQuantity
	}
	return qty == paid
}

func (o Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (o Order) PaidAmount() decimal.Decimal {
	total := decimal.Zero
	for _, p := range o.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

func (o Order) Balance() decimal.Decimal {
	b := o.Subtotal().Sub(o.PaidAmount())
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

func (o Order) item(id string) (int, bool) {
	for i, it := range o.Items {
		if it.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (o Order) Clone() Order {
	c := o
	c.Items = make([]CartItem, len(o.Items))
	for i, it := range o.Items {
		it.Customizations = append([]Customization(nil), it.Customizations...)
		c.Items[i] = it
	}
	c.Payments = append([]Payment{}, o.Payments...)
	c.MergedFrom = append([]string(nil), o.MergedFrom...)
	if o.ClosedAt != nil {
		t := *o.ClosedAt
		c.ClosedAt = &t
	}
	if o.ReopenedAt != nil {
		t := *o.ReopenedAt
		c.ReopenedAt = &t
	}
	return c
}

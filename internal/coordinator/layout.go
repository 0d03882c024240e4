package coordinator

import (
	"context"

	"github.com/shopspring/decimal"

	"syntra-floor/internal/floor"
	"syntra-floor/internal/ledger"
)

// OrderSummary is the slice of a check the floor plan shows on a table.
type OrderSummary struct {
	ID          string             `json:"id"`
	Status      ledger.OrderStatus `json:"order_status"`
	CheckStatus ledger.CheckStatus `json:"check_status"`
	PaidStatus  ledger.PaidStatus  `json:"paid_status"`
	Guests      int                `json:"guests"`
	Items       int                `json:"items"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
	Balance     decimal.Decimal    `json:"balance"`
}

type TableView struct {
	floor.Table
	Order *OrderSummary `json:"order,omitempty"`
}

func summarize(o ledger.Order) *OrderSummary {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return &OrderSummary{
		ID:          o.ID,
		Status:      o.Status,
		CheckStatus: o.CheckStatus,
		PaidStatus:  o.PaidStatus,
		Guests:      o.Guests,
		Items:       n,
		Subtotal:    o.Subtotal(),
		Balance:     o.Balance(),
	}
}

// FloorPlan renders a layout with the check each table is serving.
func (c *Coordinator) FloorPlan(layoutID string) ([]TableView, error) {
	if _, ok := c.tables.Layout(layoutID); !ok {
		return nil, floor.ErrLayoutNotFound
	}
	tables := c.tables.Tables(layoutID)
	views := make([]TableView, 0, len(tables))
	for _, t := range tables {
		v := TableView{Table: t}
		if t.OrderID != "" {
			if o, ok := c.orders.Get(t.OrderID); ok {
				v.Order = summarize(o)
			}
		}
		views = append(views, v)
	}
	return views, nil
}

func (c *Coordinator) CreateLayout(name string) floor.Layout {
	l := c.tables.CreateLayout(name)
	c.log.Info("LAYOUT", "layout created", "layout_id", l.ID, "name", name)
	return l
}

func (c *Coordinator) Layouts() []floor.Layout {
	return c.tables.Layouts()
}

func (c *Coordinator) AddTable(layoutID string, shape floor.Shape) (floor.Table, error) {
	return c.tables.AddTable(layoutID, shape)
}

func (c *Coordinator) AddMultipleTables(layoutID string, specs []floor.TableSpec) ([]floor.Table, error) {
	tables, err := c.tables.AddMultipleTables(layoutID, specs)
	if err != nil {
		return nil, err
	}
	c.log.Info("LAYOUT", "tables added", "layout_id", layoutID, "count", len(tables))
	return tables, nil
}

// CanMerge reports whether the selection could be merged right now. The layout
// editor uses it to disable the merge action.
func (c *Coordinator) CanMerge(ids []string) error {
	return c.tables.CanMerge(ids)
}

func (c *Coordinator) MoveTable(id string, x, y float64) (floor.Table, bool) {
	return c.tables.MoveTable(id, x, y)
}

func (c *Coordinator) RenameTable(id, name string) (floor.Table, bool) {
	return c.tables.RenameTable(id, name)
}

// RemoveTable refuses tables that are serving, merged or waiting for
// cleaning. Unknown ids are a no-op.
func (c *Coordinator) RemoveTable(ctx context.Context, id string) (bool, error) {
	unlock, err := c.lockScope(ctx, c.tableScope(id))
	if err != nil {
		return false, err
	}
	defer unlock()

	t, ok := c.tables.Table(id)
	if !ok {
		return false, nil
	}
	if t.OrderID != "" || t.IsMerged() || t.Status != floor.StatusAvailable {
		return false, ErrTableBusy
	}
	return c.tables.RemoveTable(id), nil
}

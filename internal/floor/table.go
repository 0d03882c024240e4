package floor

import "errors"

type TableStatus string

const (
	StatusAvailable     TableStatus = "available"
	StatusInUse         TableStatus = "in_use"
	StatusNeedsCleaning TableStatus = "needs_cleaning"
)

func (s TableStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusNeedsCleaning:
		return true
	}
	return false
}

type Shape string

const (
	ShapeRound        Shape = "round"
	ShapeSquare       Shape = "square"
	ShapeRectangle    Shape = "rectangle"
	ShapeBooth        Shape = "booth"
	ShapeBar          Shape = "bar"
	ShapeStaticObject Shape = "static-object"
)

func (s Shape) Valid() bool {
	switch s {
	case ShapeRound, ShapeSquare, ShapeRectangle, ShapeBooth, ShapeBar, ShapeStaticObject:
		return true
	}
	return false
}

// Static objects are fixtures drawn on the plan (pillars, host stands). They
// cannot be merged and never carry an order.
func (s Shape) IsStatic() bool {
	return s == ShapeStaticObject
}

func (s Shape) defaultCapacity() int {
	switch s {
	case ShapeRectangle:
		return 6
	case ShapeBar:
		return 2
	case ShapeStaticObject:
		return 0
	default:
		return 4
	}
}

var (
	ErrLayoutNotFound  = errors.New("layout not found")
	ErrTableNotFound   = errors.New("table not found")
	ErrInvalidShape    = errors.New("invalid table shape")
	ErrTooFewTables    = errors.New("at least two tables are required to merge")
	ErrStaticObject    = errors.New("static objects cannot be merged")
	ErrDuplicateTable  = errors.New("table selected more than once")
	ErrAlreadyMerged   = errors.New("table already belongs to a merge group")
	ErrLayoutMismatch  = errors.New("tables belong to different layouts")
	ErrTableNotCleaned = errors.New("table needs cleaning")
)

type Table struct {
	ID         string      `json:"id"`
	LayoutID   string      `json:"layout_id"`
	Name       string      `json:"name"`
	Shape      Shape       `json:"shape"`
	Capacity   int         `json:"capacity"`
	X          float64     `json:"x"`
	Y          float64     `json:"y"`
	Status     TableStatus `json:"status"`
	IsPrimary  bool        `json:"is_primary"`
	MergedWith []string    `json:"merged_with"`
	PrimaryID  string      `json:"primary_id,omitempty"`
	OrderID    string      `json:"order_id,omitempty"`
}

func (t Table) IsMerged() bool {
	return t.IsPrimary || t.PrimaryID != ""
}

// GroupPrimaryID returns the id of the table that carries the group's binding.
// An unmerged table is its own primary.
func (t Table) GroupPrimaryID() string {
	if t.PrimaryID != "" {
		return t.PrimaryID
	}
	return t.ID
}

func (t Table) clone() Table {
	c := t
	c.MergedWith = append([]string{}, t.MergedWith...)
	return c
}

type Layout struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	TableIDs []string `json:"table_ids"`
}

func (l Layout) clone() Layout {
	c := l
	c.TableIDs = append([]string{}, l.TableIDs...)
	return c
}

type TableSpec struct {
	Shape    Shape `json:"shape"`
	Quantity int   `json:"quantity"`
}

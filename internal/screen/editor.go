package screen

import (
	"context"
	"errors"
	"sync"

	"syntra-floor/internal/coordinator"
	"syntra-floor/internal/floor"
)

var ErrSelectOne = errors.New("select exactly one table to unmerge")

// Layout is what the layout editor needs from the coordinator.
type Layout interface {
	CanMerge(ids []string) error
	MergeTables(ctx context.Context, ids []string) (coordinator.Result, error)
	UnmergeTables(ctx context.Context, tableID string) (coordinator.Result, error)
	AddMultipleTables(layoutID string, specs []floor.TableSpec) ([]floor.Table, error)
	FloorPlan(layoutID string) ([]coordinator.TableView, error)
}

// LayoutEditor holds the transient table selection of one floor-plan editing
// session. The first selected table becomes the primary of a merge.
type LayoutEditor struct {
	mu       sync.Mutex
	layout   Layout
	layoutID string
	sel      floor.Selection
}

func NewLayoutEditor(l Layout, layoutID string) *LayoutEditor {
	return &LayoutEditor{layout: l, layoutID: layoutID}
}

func (e *LayoutEditor) Toggle(tableID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.Toggle(tableID)
}

func (e *LayoutEditor) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel.Clear()
}

func (e *LayoutEditor) Selection() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.IDs()
}

// CanMerge is nil when the merge action should be enabled.
func (e *LayoutEditor) CanMerge() error {
	return e.layout.CanMerge(e.Selection())
}

func (e *LayoutEditor) Merge(ctx context.Context) (coordinator.Result, error) {
	res, err := e.layout.MergeTables(ctx, e.Selection())
	if err != nil {
		return res, err
	}
	e.Clear()
	return res, nil
}

func (e *LayoutEditor) Unmerge(ctx context.Context) (coordinator.Result, error) {
	ids := e.Selection()
	if len(ids) != 1 {
		return coordinator.Result{}, ErrSelectOne
	}
	res, err := e.layout.UnmergeTables(ctx, ids[0])
	if err != nil {
		return res, err
	}
	e.Clear()
	return res, nil
}

func (e *LayoutEditor) AddTables(specs ...floor.TableSpec) ([]floor.Table, error) {
	return e.layout.AddMultipleTables(e.layoutID, specs)
}

func (e *LayoutEditor) Plan() ([]coordinator.TableView, error) {
	return e.layout.FloorPlan(e.layoutID)
}

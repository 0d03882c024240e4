package floor

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const gridColumns = 6
const gridSpacing = 120.0

type UnmergePolicy string

const (
	// DissolveGroup restores every member of the group to an independent table.
	DissolveGroup UnmergePolicy = "dissolve"
	// DetachMember only removes the selected table from its group.
	DetachMember UnmergePolicy = "detach"
)

func ParseUnmergePolicy(s string) (UnmergePolicy, error) {
	switch UnmergePolicy(s) {
	case "", DissolveGroup:
		return DissolveGroup, nil
	case DetachMember:
		return DetachMember, nil
	}
	return "", fmt.Errorf("unknown unmerge policy %q", s)
}

type UnmergeResult struct {
	// PrimaryID is the primary of whatever group remains, or of the dissolved
	// group's former primary.
	PrimaryID string
	// PrimaryChanged is set when the former primary was detached and another
	// member took over the binding.
	PrimaryChanged bool
	Released       []string
	Dissolved      bool
}

// Registry owns layouts and tables. It stores the order binding written by the
// coordinator but never derives it.
type Registry struct {
	mu      sync.RWMutex
	layouts map[string]*Layout
	order   []string
	tables  map[string]*Table
	newID   func() string
}

func NewRegistry(newID func() string) *Registry {
	if newID == nil {
		newID = uuid.NewString
	}
	return &Registry{
		layouts: make(map[string]*Layout),
		tables:  make(map[string]*Table),
		newID:   newID,
	}
}

func (r *Registry) CreateLayout(name string) Layout {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := &Layout{ID: r.newID(), Name: name}
	r.layouts[l.ID] = l
	r.order = append(r.order, l.ID)
	return l.clone()
}

func (r *Registry) Layouts() []Layout {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Layout, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.layouts[id].clone())
	}
	return out
}

func (r *Registry) Layout(id string) (Layout, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.layouts[id]
	if !ok {
		return Layout{}, false
	}
	return l.clone(), true
}

func (r *Registry) AddTable(layoutID string, shape Shape) (Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.layouts[layoutID]
	if !ok {
		return Table{}, ErrLayoutNotFound
	}
	if !shape.Valid() {
		return Table{}, ErrInvalidShape
	}
	return r.addTableLocked(l, shape).clone(), nil
}

func (r *Registry) AddMultipleTables(layoutID string, specs []TableSpec) ([]Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.layouts[layoutID]
	if !ok {
		return nil, ErrLayoutNotFound
	}
	for _, s := range specs {
		if !s.Shape.Valid() {
			return nil, ErrInvalidShape
		}
	}

	var out []Table
	for _, s := range specs {
		for i := 0; i < s.Quantity; i++ {
			out = append(out, r.addTableLocked(l, s.Shape).clone())
		}
	}
	return out, nil
}

func (r *Registry) addTableLocked(l *Layout, shape Shape) *Table {
	pos := len(l.TableIDs)
	name := fmt.Sprintf("T%d", r.countOrderableLocked(l)+1)
	if shape.IsStatic() {
		name = fmt.Sprintf("Fixture %d", pos+1)
	}

	t := &Table{
		ID:         r.newID(),
		LayoutID:   l.ID,
		Name:       name,
		Shape:      shape,
		Capacity:   shape.defaultCapacity(),
		X:          float64(pos%gridColumns) * gridSpacing,
		Y:          float64(pos/gridColumns) * gridSpacing,
		Status:     StatusAvailable,
		MergedWith: []string{},
	}
	r.tables[t.ID] = t
	l.TableIDs = append(l.TableIDs, t.ID)
	return t
}

func (r *Registry) countOrderableLocked(l *Layout) int {
	n := 0
	for _, id := range l.TableIDs {
		if !r.tables[id].Shape.IsStatic() {
			n++
		}
	}
	return n
}

// RemoveTable deletes a table from its layout. Busy tables are the caller's
// concern.
func (r *Registry) RemoveTable(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tables[id]
	if !ok {
		return false
	}
	if l, ok := r.layouts[t.LayoutID]; ok {
		l.TableIDs = removeID(l.TableIDs, id)
	}
	delete(r.tables, id)
	return true
}

func (r *Registry) MoveTable(id string, x, y float64) (Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tables[id]
	if !ok {
		return Table{}, false
	}
	t.X, t.Y = x, y
	return t.clone(), true
}

func (r *Registry) RenameTable(id, name string) (Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tables[id]
	if !ok || name == "" {
		return Table{}, false
	}
	t.Name = name
	return t.clone(), true
}

func (r *Registry) Table(id string) (Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tables[id]
	if !ok {
		return Table{}, false
	}
	return t.clone(), true
}

func (r *Registry) Tables(layoutID string) []Table {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.layouts[layoutID]
	if !ok {
		return nil
	}
	out := make([]Table, 0, len(l.TableIDs))
	for _, id := range l.TableIDs {
		out = append(out, r.tables[id].clone())
	}
	return out
}

func (r *Registry) AllTables() []Table {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Table
	for _, lid := range r.order {
		for _, id := range r.layouts[lid].TableIDs {
			out = append(out, r.tables[id].clone())
		}
	}
	return out
}

// Primary resolves the group primary of a table. Unmerged tables resolve to
// themselves.
func (r *Registry) Primary(id string) (Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tables[id]
	if !ok {
		return Table{}, false
	}
	p, ok := r.tables[t.GroupPrimaryID()]
	if !ok {
		return t.clone(), true
	}
	return p.clone(), true
}

// Group returns the primary followed by its members, or just the table when it
// is not merged.
func (r *Registry) Group(id string) []Table {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.groupLocked(id)
}

func (r *Registry) groupLocked(id string) []Table {
	t, ok := r.tables[id]
	if !ok {
		return nil
	}
	p, ok := r.tables[t.GroupPrimaryID()]
	if !ok {
		p = t
	}
	out := []Table{p.clone()}
	for _, mid := range p.MergedWith {
		if m, ok := r.tables[mid]; ok {
			out = append(out, m.clone())
		}
	}
	return out
}

func (r *Registry) UpdateTableStatus(id string, status TableStatus) (Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tables[id]
	if !ok || !status.Valid() {
		return Table{}, false
	}
	t.Status = status
	return t.clone(), true
}

func (r *Registry) BindOrder(id, orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tables[id]
	if !ok {
		return false
	}
	t.OrderID = orderID
	return true
}

func (r *Registry) ReleaseOrder(id string) bool {
	return r.BindOrder(id, "")
}

// Restore writes back the occupancy, binding and membership of table
// snapshots. Geometry and names are left alone.
func (r *Registry) Restore(snapshots ...Table) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range snapshots {
		t, ok := r.tables[s.ID]
		if !ok {
			continue
		}
		t.Status = s.Status
		t.IsPrimary = s.IsPrimary
		t.PrimaryID = s.PrimaryID
		t.MergedWith = append([]string{}, s.MergedWith...)
		t.OrderID = s.OrderID
	}
}

func (r *Registry) CanMerge(ids []string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.canMergeLocked(ids)
}

func (r *Registry) canMergeLocked(ids []string) error {
	unique := dedupe(ids)
	if len(unique) < 2 {
		return ErrTooFewTables
	}
	if len(unique) != len(ids) {
		return ErrDuplicateTable
	}
	var layoutID string
	for i, id := range ids {
		t, ok := r.tables[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrTableNotFound, id)
		}
		if t.Shape.IsStatic() {
			return fmt.Errorf("%w: %s", ErrStaticObject, t.Name)
		}
		if t.IsMerged() {
			return fmt.Errorf("%w: %s", ErrAlreadyMerged, t.Name)
		}
		if t.Status == StatusNeedsCleaning {
			return fmt.Errorf("%w: %s", ErrTableNotCleaned, t.Name)
		}
		if i == 0 {
			layoutID = t.LayoutID
		} else if t.LayoutID != layoutID {
			return ErrLayoutMismatch
		}
	}
	return nil
}

// MergeTables makes ids[0] the primary of a new group and binds every member
// to orderID.
func (r *Registry) MergeTables(ids []string, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.canMergeLocked(ids); err != nil {
		return err
	}

	primary := r.tables[ids[0]]
	primary.IsPrimary = true
	primary.PrimaryID = ""
	primary.MergedWith = append([]string{}, ids[1:]...)

	for _, id := range ids {
		t := r.tables[id]
		if id != primary.ID {
			t.PrimaryID = primary.ID
			t.IsPrimary = false
			t.MergedWith = []string{}
		}
		t.OrderID = orderID
		t.Status = StatusInUse
	}
	return nil
}

// UnmergeTables reverses grouping for the group containing id. Released tables
// lose their binding; status is left to the caller.
func (r *Registry) UnmergeTables(id string, policy UnmergePolicy) (UnmergeResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tables[id]
	if !ok || !t.IsMerged() {
		return UnmergeResult{}, false
	}
	primary, ok := r.tables[t.GroupPrimaryID()]
	if !ok {
		return UnmergeResult{}, false
	}

	if policy != DetachMember || len(primary.MergedWith) < 2 {
		return r.dissolveLocked(primary), true
	}

	if t.ID != primary.ID {
		primary.MergedWith = removeID(primary.MergedWith, t.ID)
		resetMembership(t)
		t.OrderID = ""
		return UnmergeResult{PrimaryID: primary.ID, Released: []string{t.ID}}, true
	}

	// The primary leaves: the first remaining member takes over the group and
	// its binding.
	next := r.tables[primary.MergedWith[0]]
	rest := append([]string{}, primary.MergedWith[1:]...)
	next.IsPrimary = true
	next.PrimaryID = ""
	next.MergedWith = rest
	for _, mid := range rest {
		if m, ok := r.tables[mid]; ok {
			m.PrimaryID = next.ID
		}
	}
	resetMembership(primary)
	primary.OrderID = ""
	return UnmergeResult{PrimaryID: next.ID, PrimaryChanged: true, Released: []string{primary.ID}}, true
}

func (r *Registry) dissolveLocked(primary *Table) UnmergeResult {
	res := UnmergeResult{PrimaryID: primary.ID, Dissolved: true}
	for _, mid := range primary.MergedWith {
		m, ok := r.tables[mid]
		if !ok {
			continue
		}
		resetMembership(m)
		m.OrderID = ""
		res.Released = append(res.Released, m.ID)
	}
	resetMembership(primary)
	return res
}

func resetMembership(t *Table) {
	t.IsPrimary = false
	t.PrimaryID = ""
	t.MergedWith = []string{}
}

func removeID(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

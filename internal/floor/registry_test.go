package floor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestLayout(t *testing.T, specs ...TableSpec) (*Registry, []Table) {
	t.Helper()
	r := NewRegistry(sequentialIDs())
	l := r.CreateLayout("Main hall")
	tables, err := r.AddMultipleTables(l.ID, specs)
	require.NoError(t, err)
	return r, tables
}

func TestAddMultipleTables(t *testing.T) {
	r, tables := newTestLayout(t,
		TableSpec{Shape: ShapeRound, Quantity: 2},
		TableSpec{Shape: ShapeStaticObject, Quantity: 1},
		TableSpec{Shape: ShapeRectangle, Quantity: 1},
	)

	require.Len(t, tables, 4)
	assert.Equal(t, "T1", tables[0].Name)
	assert.Equal(t, "T2", tables[1].Name)
	assert.Equal(t, "Fixture 3", tables[2].Name)
	assert.Equal(t, "T3", tables[3].Name)
	assert.Equal(t, 6, tables[3].Capacity)
	for _, tb := range tables {
		assert.Equal(t, StatusAvailable, tb.Status)
		assert.Empty(t, tb.MergedWith)
		assert.Empty(t, tb.OrderID)
	}

	layouts := r.Layouts()
	require.Len(t, layouts, 1)
	assert.Len(t, layouts[0].TableIDs, 4)
}

func TestAddTableErrors(t *testing.T) {
	r := NewRegistry(sequentialIDs())
	_, err := r.AddTable("missing", ShapeRound)
	assert.ErrorIs(t, err, ErrLayoutNotFound)

	l := r.CreateLayout("Patio")
	_, err = r.AddTable(l.ID, Shape("hexagon"))
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestInvalidIDsAreNoOps(t *testing.T) {
	r, _ := newTestLayout(t, TableSpec{Shape: ShapeRound, Quantity: 1})

	_, ok := r.UpdateTableStatus("nope", StatusInUse)
	assert.False(t, ok)
	assert.False(t, r.RemoveTable("nope"))
	assert.False(t, r.BindOrder("nope", "order"))
	_, ok = r.UnmergeTables("nope", DissolveGroup)
	assert.False(t, ok)
	_, ok = r.MoveTable("nope", 1, 1)
	assert.False(t, ok)
}

func TestMergeTables(t *testing.T) {
	r, tables := newTestLayout(t, TableSpec{Shape: ShapeSquare, Quantity: 3})
	t1, t2, t3 := tables[0], tables[1], tables[2]

	require.NoError(t, r.MergeTables([]string{t1.ID, t2.ID, t3.ID}, "order-1"))

	p, _ := r.Table(t1.ID)
	assert.True(t, p.IsPrimary)
	assert.Equal(t, []string{t2.ID, t3.ID}, p.MergedWith)
	assert.Equal(t, "order-1", p.OrderID)
	assert.Equal(t, StatusInUse, p.Status)

	m, _ := r.Table(t3.ID)
	assert.False(t, m.IsPrimary)
	assert.Equal(t, t1.ID, m.PrimaryID)
	assert.Equal(t, "order-1", m.OrderID)

	primary, ok := r.Primary(t3.ID)
	require.True(t, ok)
	assert.Equal(t, t1.ID, primary.ID)
	assert.Len(t, r.Group(t2.ID), 3)
}

func TestMergeTablesRejected(t *testing.T) {
	r, tables := newTestLayout(t,
		TableSpec{Shape: ShapeRound, Quantity: 3},
		TableSpec{Shape: ShapeStaticObject, Quantity: 1},
	)
	other := r.CreateLayout("Terrace")
	away, err := r.AddTable(other.ID, ShapeRound)
	require.NoError(t, err)

	tests := []struct {
		name string
		ids  []string
		err  error
	}{
		{"single table", []string{tables[0].ID}, ErrTooFewTables},
		{"duplicate", []string{tables[0].ID, tables[0].ID, tables[1].ID}, ErrDuplicateTable},
		{"static object", []string{tables[0].ID, tables[3].ID}, ErrStaticObject},
		{"unknown table", []string{tables[0].ID, "ghost"}, ErrTableNotFound},
		{"other layout", []string{tables[0].ID, away.ID}, ErrLayoutMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.MergeTables(tt.ids, "order"), tt.err)
			for _, tb := range tables {
				got, _ := r.Table(tb.ID)
				assert.False(t, got.IsMerged())
				assert.Empty(t, got.OrderID)
			}
		})
	}

	require.NoError(t, r.MergeTables([]string{tables[0].ID, tables[1].ID}, "order"))
	assert.ErrorIs(t, r.MergeTables([]string{tables[1].ID, tables[2].ID}, "order-2"), ErrAlreadyMerged)

	r.UpdateTableStatus(tables[2].ID, StatusNeedsCleaning)
	_, ok := r.UnmergeTables(tables[0].ID, DissolveGroup)
	require.True(t, ok)
	assert.ErrorIs(t, r.MergeTables([]string{tables[0].ID, tables[2].ID}, "order-3"), ErrTableNotCleaned)
}

func TestMergeUnmergeRoundTrip(t *testing.T) {
	r, tables := newTestLayout(t, TableSpec{Shape: ShapeRound, Quantity: 2})
	t1, t2 := tables[0], tables[1]

	require.NoError(t, r.MergeTables([]string{t1.ID, t2.ID}, "order-1"))
	res, ok := r.UnmergeTables(t2.ID, DissolveGroup)
	require.True(t, ok)
	assert.True(t, res.Dissolved)
	assert.Equal(t, t1.ID, res.PrimaryID)
	assert.Equal(t, []string{t2.ID}, res.Released)

	for _, id := range []string{t1.ID, t2.ID} {
		got, _ := r.Table(id)
		assert.Empty(t, got.MergedWith)
		assert.False(t, got.IsPrimary)
		assert.Empty(t, got.PrimaryID)
	}
	p, _ := r.Table(t1.ID)
	assert.Equal(t, "order-1", p.OrderID, "primary keeps the binding")
	s, _ := r.Table(t2.ID)
	assert.Empty(t, s.OrderID)
}

func TestUnmergeDetachMember(t *testing.T) {
	r, tables := newTestLayout(t, TableSpec{Shape: ShapeRound, Quantity: 3})
	t1, t2, t3 := tables[0], tables[1], tables[2]
	require.NoError(t, r.MergeTables([]string{t1.ID, t2.ID, t3.ID}, "order-1"))

	res, ok := r.UnmergeTables(t2.ID, DetachMember)
	require.True(t, ok)
	assert.False(t, res.Dissolved)
	assert.False(t, res.PrimaryChanged)
	assert.Equal(t, []string{t2.ID}, res.Released)

	p, _ := r.Table(t1.ID)
	assert.Equal(t, []string{t3.ID}, p.MergedWith)
	detached, _ := r.Table(t2.ID)
	assert.False(t, detached.IsMerged())

	// Two members left: detaching dissolves.
	res, ok = r.UnmergeTables(t3.ID, DetachMember)
	require.True(t, ok)
	assert.True(t, res.Dissolved)
}

func TestUnmergeDetachPrimaryPromotesNext(t *testing.T) {
	r, tables := newTestLayout(t, TableSpec{Shape: ShapeRound, Quantity: 3})
	t1, t2, t3 := tables[0], tables[1], tables[2]
	require.NoError(t, r.MergeTables([]string{t1.ID, t2.ID, t3.ID}, "order-1"))

	res, ok := r.UnmergeTables(t1.ID, DetachMember)
	require.True(t, ok)
	assert.True(t, res.PrimaryChanged)
	assert.Equal(t, t2.ID, res.PrimaryID)

	np, _ := r.Table(t2.ID)
	assert.True(t, np.IsPrimary)
	assert.Equal(t, []string{t3.ID}, np.MergedWith)
	m, _ := r.Table(t3.ID)
	assert.Equal(t, t2.ID, m.PrimaryID)
	old, _ := r.Table(t1.ID)
	assert.False(t, old.IsMerged())
	assert.Empty(t, old.OrderID)
}

func TestSelection(t *testing.T) {
	var s Selection
	assert.True(t, s.Toggle("a"))
	assert.True(t, s.Toggle("b"))
	assert.True(t, s.Toggle("c"))
	assert.False(t, s.Toggle("b"))
	assert.Equal(t, []string{"a", "c"}, s.IDs())
	assert.True(t, s.Contains("c"))
	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestParseUnmergePolicy(t *testing.T) {
	p, err := ParseUnmergePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DissolveGroup, p)
	p, err = ParseUnmergePolicy("detach")
	require.NoError(t, err)
	assert.Equal(t, DetachMember, p)
	_, err = ParseUnmergePolicy("split")
	assert.Error(t, err)
}

func TestRestore(t *testing.T) {
	r, tables := newTestLayout(t, TableSpec{Shape: ShapeRound, Quantity: 2})
	before := r.Group(tables[0].ID)
	before = append(before, r.Group(tables[1].ID)...)

	require.NoError(t, r.MergeTables([]string{tables[0].ID, tables[1].ID}, "order-1"))
	r.MoveTable(tables[1].ID, 500, 20)
	r.Restore(before...)

	for _, tb := range tables {
		got, _ := r.Table(tb.ID)
		assert.False(t, got.IsMerged())
		assert.Empty(t, got.OrderID)
		assert.Equal(t, StatusAvailable, got.Status)
	}
	moved, _ := r.Table(tables[1].ID)
	assert.Equal(t, 500.0, moved.X)
}

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syntra-floor/internal/floor"
	"syntra-floor/internal/ledger"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type archiveSpy struct {
	mu     sync.Mutex
	orders []ledger.Order
}

func (a *archiveSpy) Archive(_ context.Context, o ledger.Order, _ []floor.Table) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orders = append(a.orders, o)
	return nil
}

type fixture struct {
	c        *Coordinator
	tables   []floor.Table
	events   *recorder
	archived *archiveSpy
	ctx      context.Context
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	n := 0
	ids := func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	reg := floor.NewRegistry(ids)
	l := reg.CreateLayout("Main hall")
	tables, err := reg.AddMultipleTables(l.ID, []floor.TableSpec{
		{Shape: floor.ShapeRound, Quantity: 3},
		{Shape: floor.ShapeStaticObject, Quantity: 1},
	})
	require.NoError(t, err)

	f := &fixture{tables: tables, events: &recorder{}, archived: &archiveSpy{}, ctx: context.Background()}
	opts = append([]Option{WithNotifier(f.events), WithArchiver(f.archived)}, opts...)
	f.c = New(reg, ledger.New(), opts...)
	return f
}

func (f *fixture) assertInvariants(t *testing.T) {
	t.Helper()
	assert.Empty(t, f.c.CheckInvariants())
}

// seat opens a table, takes the order and adds the given items.
func (f *fixture) seat(t *testing.T, tableID string, items ...ledger.CartItem) ledger.Order {
	t.Helper()
	res, err := f.c.OpenTable(f.ctx, tableID)
	require.NoError(t, err)
	res, err = f.c.TakeOrder(f.ctx, tableID, res.Order.ID)
	require.NoError(t, err)
	o := *res.Order
	for _, it := range items {
		res, err = f.c.AddItem(f.ctx, o.ID, it)
		require.NoError(t, err)
		o = *res.Order
	}
	return o
}

func item(name string, price string) ledger.CartItem {
	return ledger.CartItem{MenuItemID: name, Name: name, Quantity: 1, Price: decimal.RequireFromString(price)}
}

func (f *fixture) payInFull(t *testing.T, o ledger.Order) ledger.Order {
	t.Helper()
	res, err := f.c.RecordPayment(f.ctx, o.ID, ledger.PaymentInput{Amount: o.Balance(), Method: "card"})
	require.NoError(t, err)
	return *res.Order
}

func TestOpenTableAndTakeOrder(t *testing.T) {
	f := newFixture(t)
	t1 := f.tables[0]

	res, err := f.c.OpenTable(f.ctx, t1.ID)
	require.NoError(t, err)
	draft := res.Order
	assert.Equal(t, ledger.OrderBuilding, draft.Status)
	assert.False(t, draft.Assigned())
	got, _ := f.c.Table(t1.ID)
	assert.Equal(t, floor.StatusAvailable, got.Status)
	f.assertInvariants(t)

	res, err = f.c.TakeOrder(f.ctx, t1.ID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.OrderPreparing, res.Order.Status)
	assert.Equal(t, t1.ID, res.Order.ServiceLocationID)
	assert.Equal(t, floor.StatusInUse, res.Table.Status)
	assert.Equal(t, draft.ID, res.Table.OrderID)
	f.assertInvariants(t)

	again, err := f.c.OpenTable(f.ctx, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, again.Order.ID, "bound table reopens its check")
	assert.Contains(t, f.events.types(), EventOrderAssigned)
}

func TestOpenTableGuards(t *testing.T) {
	f := newFixture(t)

	_, err := f.c.OpenTable(f.ctx, "ghost")
	assert.ErrorIs(t, err, ErrTableNotFound)

	_, err = f.c.OpenTable(f.ctx, f.tables[3].ID)
	assert.ErrorIs(t, err, ErrNotOrderable)

	f.seat(t, f.tables[0].ID)
	_, err = f.c.ClearTable(f.ctx, f.tables[0].ID)
	require.NoError(t, err)
	res, err := f.c.OpenTable(f.ctx, f.tables[0].ID)
	assert.ErrorIs(t, err, ErrTableNeedsCleaning)
	assert.Equal(t, NavTables, res.Navigation)
}

func TestTakeOrderRefusesOccupiedTable(t *testing.T) {
	f := newFixture(t)
	t1 := f.tables[0]
	first := f.seat(t, t1.ID)

	other := f.c.orders.StartNewOrder()
	_, err := f.c.TakeOrder(f.ctx, t1.ID, other.ID)
	assert.ErrorIs(t, err, ErrTableOccupied)

	res, err := f.c.TakeOrder(f.ctx, t1.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, res.Order.ID)
	f.assertInvariants(t)
}

func TestTakeOrderIsAtomicUnderContention(t *testing.T) {
	f := newFixture(t)
	t1 := f.tables[0]

	const n = 16
	drafts := make([]string, n)
	for i := range drafts {
		drafts[i] = f.c.orders.StartNewOrder().ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		won      int
		occupied int
	)
	for _, id := range drafts {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.c.TakeOrder(f.ctx, t1.ID, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, ErrTableOccupied):
				occupied++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, n-1, occupied)
	f.assertInvariants(t)
}

func TestItemStatusDrivesOrderStatus(t *testing.T) {
	f := newFixture(t)
	o := f.seat(t, f.tables[0].ID, item("soup", "6"), item("bread", "2"))

	res, err := f.c.SetItemStatus(f.ctx, o.ID, o.Items[0].ID, ledger.ItemReady)
	require.NoError(t, err)
	assert.Equal(t, ledger.OrderPreparing, res.Order.Status)

	res, err = f.c.SetItemStatus(f.ctx, o.ID, o.Items[1].ID, ledger.ItemReady)
	require.NoError(t, err)
	assert.Equal(t, ledger.OrderReady, res.Order.Status)
	assert.Equal(t, "All items ready", res.Message)

	res, err = f.c.AddItem(f.ctx, o.ID, item("tea", "3"))
	require.NoError(t, err)
	assert.Equal(t, ledger.OrderPreparing, res.Order.Status)
	f.assertInvariants(t)
}

// Order has one preparing and one ready item: Pay raises a confirmation.
func TestPayWithUnreadyItems(t *testing.T) {
	f := newFixture(t)
	o := f.seat(t, f.tables[0].ID, item("steak", "30"), item("salad", "9"))
	_, err := f.c.SetItemStatus(f.ctx, o.ID, o.Items[1].ID, ledger.ItemReady)
	require.NoError(t, err)
	before, _ := f.c.Order(o.ID)

	res, err := f.c.RequestPayment(f.ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Pending)
	assert.Equal(t, ConfirmUnreadyPayment, res.Pending.Kind)
	assert.False(t, res.OpenPayment)

	declined, err := f.c.Cancel(res.Pending.ID)
	require.NoError(t, err)
	assert.False(t, declined.OpenPayment)
	after, _ := f.c.Order(o.ID)
	assert.Equal(t, before, after)

	res, err = f.c.RequestPayment(f.ctx, o.ID)
	require.NoError(t, err)
	accepted, err := f.c.Confirm(f.ctx, res.Pending.ID)
	require.NoError(t, err)
	assert.True(t, accepted.OpenPayment)

	_, err = f.c.Confirm(f.ctx, res.Pending.ID)
	assert.ErrorIs(t, err, ErrActionNotFound)

	paid := f.payInFull(t, *accepted.Order)
	assert.Equal(t, ledger.Paid, paid.PaidStatus)
	assert.Equal(t, ledger.OrderPreparing, paid.Status, "payment allowed with unready items")
	f.assertInvariants(t)
}

// The check is settled between the question and the answer.
func TestConfirmUnreadyPaymentOnSettledCheck(t *testing.T) {
	f := newFixture(t)
	o := f.seat(t, f.tables[0].ID, item("steak", "30"))

	res, err := f.c.RequestPayment(f.ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Pending)

	_, err = f.c.orders.Close(o.ID)
	require.NoError(t, err)

	accepted, err := f.c.Confirm(f.ctx, res.Pending.ID)
	assert.ErrorIs(t, err, ledger.ErrCheckClosed)
	assert.False(t, accepted.OpenPayment)
	require.NotNil(t, accepted.Order)
	assert.Equal(t, ledger.CheckClosed, accepted.Order.CheckStatus)

	_, err = f.c.Confirm(f.ctx, res.Pending.ID)
	assert.ErrorIs(t, err, ErrActionNotFound)
}

func TestPayWhenReadyOpensSelectorDirectly(t *testing.T) {
	f := newFixture(t)
	o := f.seat(t, f.tables[0].ID, item("pie", "5"))
	_, err := f.c.SetItemStatus(f.ctx, o.ID, o.Items[0].ID, ledger.ItemReady)
	require.NoError(t, err)

	res, err := f.c.RequestPayment(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Pending)
	assert.True(t, res.OpenPayment)

	f.payInFull(t, *res.Order)
	_, err = f.c.RequestPayment(f.ctx, o.ID)
	assert.ErrorIs(t, err, ErrNothingToPay)
}

// Closing an unpaid check with items asks for a void instead.
func TestCloseUnpaidCheckOffersVoid(t *testing.T) {
	f := newFixture(t)
	t1 := f.tables[0]
	o := f.seat(t, t1.ID, item("burger", "12"))

	res, err := f.c.CloseCheck(f.ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Pending)
	assert.Equal(t, ConfirmVoid, res.Pending.Kind)
	still, _ := f.c.Order(o.ID)
	assert.Equal(t, ledger.OrderPreparing, still.Status)

	res, err = f.c.Confirm(f.ctx, res.Pending.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.OrderVoided, res.Order.Status)
	assert.Equal(t, NavBack, res.Navigation)

	tb, _ := f.c.Table(t1.ID)
	assert.Equal(t, floor.StatusAvailable, tb.Status)
	assert.Empty(t, tb.OrderID)
	assert.Len(t, f.archived.orders, 1)
	f.assertInvariants(t)
}

func TestVoidBlockedByPayments(t *testing.T) {
	f := newFixture(t)
	o := f.seat(t, f.tables[0].ID, item("wine", "40"))
	_, err := f.c.RecordPayment(f.ctx, o.ID, ledger.PaymentInput{
		Amount: decimal.NewFromInt(10), Method: "cash", Allocations: map[string]int{},
	})
	require.NoError(t, err)

	_, err = f.c.RequestVoid(f.ctx, o.ID)
	assert.ErrorIs(t, err, ErrVoidWithPayments)

	after, _ := f.c.Order(o.ID)
	assert.NotEqual(t, ledger.OrderVoided, after.Status)
	f.assertInvariants(t)
}

func TestVoidConfirmationRechecksPayments(t *testing.T) {
	f := newFixture(t)
	o := f.seat(t, f.tables[0].ID, item("wine", "40"))

	res, err := f.c.RequestVoid(f.ctx, o.ID)
	require.NoError(t, err)
	pending := res.Pending
	require.NotNil(t, pending)

	// A payment lands between the prompt and the confirmation.
	_, err = f.c.orders.ApplyPayment(o.ID, ledger.PaymentInput{Amount: decimal.NewFromInt(40), Method: "cash"})
	require.NoError(t, err)

	_, err = f.c.Confirm(f.ctx, pending.ID)
	assert.ErrorIs(t, err, ErrVoidWithPayments)
	after, _ := f.c.Order(o.ID)
	assert.Equal(t, ledger.OrderPreparing, after.Status)
}

// Paid and closed, reopened with nothing added, closes again without a prompt.
func TestReopenThenCloseDirectly(t *testing.T) {
	f := newFixture(t)
	t1 := f.tables[0]
	o := f.seat(t, t1.ID, item("cake", "7"))
	f.payInFull(t, o)

	res, err := f.c.CloseCheck(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Pending)
	assert.Equal(t, ledger.OrderClosed, res.Order.Status)
	assert.Equal(t, ledger.Paid, res.Order.PaidStatus)
	tb, _ := f.c.Table(t1.ID)
	assert.Equal(t, floor.StatusInUse, tb.Status, "closing does not free the table")
	f.assertInvariants(t)

	_, err = f.c.AddItem(f.ctx, o.ID, item("coffee", "3"))
	assert.ErrorIs(t, err, ledger.ErrCheckClosed)

	res, err = f.c.ReopenCheck(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.Pending, res.Order.PaidStatus)
	assert.Equal(t, ledger.CheckOpened, res.Order.CheckStatus)
	assert.Equal(t, ledger.OrderPreparing, res.Order.Status)
	f.assertInvariants(t)

	res, err = f.c.CloseCheck(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Pending)
	assert.Equal(t, ledger.OrderClosed, res.Order.Status)
	assert.Equal(t, ledger.Paid, res.Order.PaidStatus)
	f.assertInvariants(t)
}

func TestReopenReflectsReadyItems(t *testing.T) {
	f := newFixture(t)
	o := f.seat(t, f.tables[0].ID, item("cake", "7"))
	_, err := f.c.SetItemStatus(f.ctx, o.ID, o.Items[0].ID, ledger.ItemReady)
	require.NoError(t, err)
	f.payInFull(t, o)
	_, err = f.c.CloseCheck(f.ctx, o.ID)
	require.NoError(t, err)

	res, err := f.c.ReopenCheck(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.OrderReady, res.Order.Status)

	_, err = f.c.ReopenCheck(f.ctx, o.ID)
	assert.ErrorIs(t, err, ledger.ErrCheckNotClosed)
}

func TestClearTableAndMarkCleaned(t *testing.T) {
	f := newFixture(t)
	t1 := f.tables[0]
	o := f.seat(t, t1.ID, item("fish", "18"))

	_, err := f.c.ClearTable(f.ctx, t1.ID)
	assert.ErrorIs(t, err, ErrCheckNotSettled)

	f.payInFull(t, o)
	res, err := f.c.ClearTable(f.ctx, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, NavTables, res.Navigation)
	assert.Equal(t, ledger.OrderClosed, res.Order.Status, "clearing closes an open paid check")
	assert.Equal(t, floor.StatusNeedsCleaning, res.Table.Status)
	assert.Empty(t, res.Table.OrderID)
	f.assertInvariants(t)

	_, err = f.c.ReopenCheck(f.ctx, o.ID)
	assert.ErrorIs(t, err, ErrCheckNotBound)

	_, err = f.c.TakeOrder(f.ctx, t1.ID, f.c.orders.StartNewOrder().ID)
	assert.ErrorIs(t, err, ErrTableNeedsCleaning)

	res, err = f.c.MarkCleaned(f.ctx, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, floor.StatusAvailable, res.Table.Status)
	_, err = f.c.MarkCleaned(f.ctx, t1.ID)
	assert.ErrorIs(t, err, ErrNotCleaning)
	f.assertInvariants(t)
}

// T1 has no check, T2 has one with a single item. Merging T1 first creates a
// consolidated check for both tables.
func TestMergeConsolidatesChecks(t *testing.T) {
	f := newFixture(t)
	t1, t2 := f.tables[0], f.tables[1]
	o2 := f.seat(t, t2.ID, item("pasta", "14"))

	res, err := f.c.MergeTables(f.ctx, []string{t1.ID, t2.ID})
	require.NoError(t, err)
	o3 := res.Order
	assert.NotEqual(t, o2.ID, o3.ID)
	assert.Len(t, o3.Items, 1)
	assert.Equal(t, t1.ID, o3.ServiceLocationID)
	assert.Equal(t, "Merged: T1 + T2", o3.Notes)

	p, _ := f.c.Table(t1.ID)
	assert.True(t, p.IsPrimary)
	assert.Equal(t, []string{t2.ID}, p.MergedWith)
	for _, id := range []string{t1.ID, t2.ID} {
		tb, _ := f.c.Table(id)
		assert.Equal(t, o3.ID, tb.OrderID)
		assert.Equal(t, floor.StatusInUse, tb.Status)
	}
	old, _ := f.c.Order(o2.ID)
	assert.Equal(t, ledger.OrderCancelled, old.Status)
	assert.Equal(t, o3.ID, old.MergedInto)
	f.assertInvariants(t)

	member, err := f.c.OpenTable(f.ctx, t2.ID)
	require.NoError(t, err)
	assert.Equal(t, o3.ID, member.Order.ID, "members resolve to the group check")
}

func TestMergeHardBlocks(t *testing.T) {
	f := newFixture(t)
	t1, fixtureTable := f.tables[0], f.tables[3]

	_, err := f.c.MergeTables(f.ctx, []string{t1.ID, fixtureTable.ID})
	assert.ErrorIs(t, err, floor.ErrStaticObject)
	_, err = f.c.MergeTables(f.ctx, []string{t1.ID})
	assert.ErrorIs(t, err, floor.ErrTooFewTables)

	o := f.seat(t, f.tables[1].ID, item("tart", "6"))
	f.payInFull(t, o)
	_, err = f.c.CloseCheck(f.ctx, o.ID)
	require.NoError(t, err)
	_, err = f.c.MergeTables(f.ctx, []string{t1.ID, f.tables[1].ID})
	assert.ErrorIs(t, err, ErrMergeClosedCheck)

	assert.Len(t, f.c.Orders(false), 1, "no consolidated check left behind")
	f.assertInvariants(t)
}

func TestMergeUnmergeRoundTrip(t *testing.T) {
	f := newFixture(t)
	t1, t2 := f.tables[0], f.tables[1]

	res, err := f.c.MergeTables(f.ctx, []string{t1.ID, t2.ID})
	require.NoError(t, err)
	merged := res.Order

	res, err = f.c.UnmergeTables(f.ctx, t2.ID)
	require.NoError(t, err)
	assert.Equal(t, merged.ID, res.Order.ID)

	a, _ := f.c.Table(t1.ID)
	b, _ := f.c.Table(t2.ID)
	assert.Empty(t, a.MergedWith)
	assert.Empty(t, b.MergedWith)
	assert.False(t, a.IsPrimary)
	assert.False(t, b.IsPrimary)
	assert.Equal(t, merged.ID, a.OrderID)
	assert.Equal(t, floor.StatusInUse, a.Status)
	assert.Equal(t, floor.StatusAvailable, b.Status)
	f.assertInvariants(t)
}

func TestUnmergeDetachPolicy(t *testing.T) {
	f := newFixture(t, WithUnmergePolicy(floor.DetachMember))
	t1, t2, t3 := f.tables[0], f.tables[1], f.tables[2]

	res, err := f.c.MergeTables(f.ctx, []string{t1.ID, t2.ID, t3.ID})
	require.NoError(t, err)
	merged := res.Order

	res, err = f.c.UnmergeTables(f.ctx, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, t2.ID, res.Table.ID, "next member is promoted")
	assert.Equal(t, t2.ID, res.Order.ServiceLocationID)
	assert.Equal(t, merged.ID, res.Order.ID)

	old, _ := f.c.Table(t1.ID)
	assert.Equal(t, floor.StatusAvailable, old.Status)
	assert.False(t, old.IsMerged())
	np, _ := f.c.Table(t2.ID)
	assert.Equal(t, []string{t3.ID}, np.MergedWith)
	f.assertInvariants(t)
}

func TestClearMergedGroup(t *testing.T) {
	f := newFixture(t)
	t1, t2 := f.tables[0], f.tables[1]
	res, err := f.c.MergeTables(f.ctx, []string{t1.ID, t2.ID})
	require.NoError(t, err)

	_, err = f.c.ClearTable(f.ctx, t2.ID)
	require.NoError(t, err)
	for _, id := range []string{t1.ID, t2.ID} {
		tb, _ := f.c.Table(id)
		assert.Equal(t, floor.StatusNeedsCleaning, tb.Status)
		assert.False(t, tb.IsMerged())
	}
	closed, _ := f.c.Order(res.Order.ID)
	assert.Equal(t, ledger.OrderClosed, closed.Status)
	f.assertInvariants(t)
}

func TestRemoveTableRefusesBusyTables(t *testing.T) {
	f := newFixture(t)
	f.seat(t, f.tables[0].ID)

	_, err := f.c.RemoveTable(f.ctx, f.tables[0].ID)
	assert.ErrorIs(t, err, ErrTableBusy)
	ok, err := f.c.RemoveTable(f.ctx, f.tables[2].ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.c.RemoveTable(f.ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFloorPlan(t *testing.T) {
	f := newFixture(t)
	f.seat(t, f.tables[0].ID, item("pizza", "11"), item("pizza", "11"))

	views, err := f.c.FloorPlan(f.tables[0].LayoutID)
	require.NoError(t, err)
	require.Len(t, views, 4)
	require.NotNil(t, views[0].Order)
	assert.Equal(t, 2, views[0].Order.Items)
	assert.Equal(t, "22", views[0].Order.Subtotal.String())
	assert.Nil(t, views[1].Order)

	_, err = f.c.FloorPlan("nope")
	assert.ErrorIs(t, err, floor.ErrLayoutNotFound)
}

func TestDiscardDraft(t *testing.T) {
	f := newFixture(t)
	res, err := f.c.OpenTable(f.ctx, f.tables[0].ID)
	require.NoError(t, err)

	ok, err := f.c.DiscardDraft(f.ctx, res.Order.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	_, found := f.c.Order(res.Order.ID)
	assert.False(t, found)

	o := f.seat(t, f.tables[1].ID)
	ok, err = f.c.DiscardDraft(f.ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNotifierFailureDoesNotUndoTransition(t *testing.T) {
	failing := NotifierFunc(func(context.Context, Event) error { return errors.New("broker down") })
	f := newFixture(t, WithNotifier(failing))

	o := f.seat(t, f.tables[0].ID)
	assert.Equal(t, ledger.OrderPreparing, o.Status)
	f.assertInvariants(t)
}

func TestTxnRollbackRestoresSnapshots(t *testing.T) {
	f := newFixture(t)
	t1 := f.tables[0]
	o := f.seat(t, t1.ID, item("soup", "5"))
	tb, _ := f.c.Table(t1.ID)

	tx := f.c.begin()
	tx.saveOrder(o)
	tx.saveTables(tb)
	_, err := f.c.orders.Void(o.ID)
	require.NoError(t, err)
	f.c.tables.ReleaseOrder(t1.ID)
	f.c.tables.UpdateTableStatus(t1.ID, floor.StatusAvailable)
	tx.Rollback()

	restored, _ := f.c.Order(o.ID)
	assert.Equal(t, ledger.OrderPreparing, restored.Status)
	back, _ := f.c.Table(t1.ID)
	assert.Equal(t, o.ID, back.OrderID)
	assert.Equal(t, floor.StatusInUse, back.Status)
	f.assertInvariants(t)
}

func TestLockScopeHonoursContext(t *testing.T) {
	f := newFixture(t)
	unlock, err := f.c.locker.Lock(f.ctx, tableKey(f.tables[0].ID))
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(f.ctx, 20*time.Millisecond)
	defer cancel()
	_, err = f.c.OpenTable(ctx, f.tables[0].ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

package ledger

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger() *Ledger {
	n := 0
	clock := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
	return New(
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
	)
}

func burger(qty int) CartItem {
	return CartItem{MenuItemID: "burger", Name: "Burger", Quantity: qty, Price: decimal.RequireFromString("12.50")}
}

func assertPaidConsistent(t *testing.T, o Order) {
	t.Helper()
	allPaid := len(o.Items) > 0
	for _, it := range o.Items {
		assert.GreaterOrEqual(t, it.PaidQuantity, 0)
		assert.LessOrEqual(t, it.PaidQuantity, it.Quantity)
		if !it.FullyPaid() {
			allPaid = false
		}
	}
	if o.CheckStatus == CheckOpened && o.ReopenedAt != nil {
		return
	}
	assert.Equal(t, allPaid, o.PaidStatus == Paid, "paid status %s", o.PaidStatus)
}

func TestStartNewOrder(t *testing.T) {
	l := newTestLedger()
	o := l.StartNewOrder()

	assert.Equal(t, OrderBuilding, o.Status)
	assert.Equal(t, CheckOpened, o.CheckStatus)
	assert.Equal(t, Unpaid, o.PaidStatus)
	assert.False(t, o.Assigned())
	assert.Empty(t, o.Items)

	got, ok := l.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, o.ID, got.ID)
}

func TestDeriveOrderStatus(t *testing.T) {
	ready := CartItem{Status: ItemReady}
	preparing := CartItem{Status: ItemPreparing}

	tests := []struct {
		name    string
		current OrderStatus
		items   []CartItem
		want    OrderStatus
	}{
		{"all ready", OrderPreparing, []CartItem{ready, ready}, OrderReady},
		{"one preparing", OrderReady, []CartItem{ready, preparing}, OrderPreparing},
		{"no items", OrderReady, nil, OrderPreparing},
		{"closed untouched", OrderClosed, []CartItem{ready}, OrderClosed},
		{"voided untouched", OrderVoided, []CartItem{preparing}, OrderVoided},
		{"cancelled untouched", OrderCancelled, []CartItem{ready}, OrderCancelled},
		{"draft untouched", OrderBuilding, []CartItem{ready}, OrderBuilding},
		{"open tab untouched", OrderOpen, []CartItem{ready}, OrderOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveOrderStatus(tt.current, tt.items))
		})
	}
}

func TestDerivePaidStatus(t *testing.T) {
	pay := []Payment{{Amount: decimal.NewFromInt(5), Method: "cash"}}

	tests := []struct {
		name     string
		items    []CartItem
		payments []Payment
		want     PaidStatus
	}{
		{"nothing", []CartItem{{Quantity: 2}}, nil, Unpaid},
		{"empty check", nil, nil, Unpaid},
		{"partial", []CartItem{{Quantity: 2, PaidQuantity: 1}}, pay, Pending},
		{"payment without allocation", []CartItem{{Quantity: 2}}, pay, Pending},
		{"all paid", []CartItem{{Quantity: 2, PaidQuantity: 2}, {Quantity: 1, PaidQuantity: 1}}, pay, Paid},
		{"one line open", []CartItem{{Quantity: 2, PaidQuantity: 2}, {Quantity: 1}}, pay, Pending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePaidStatus(tt.items, tt.payments))
		})
	}
}

func TestSyncOrderStatusIdempotent(t *testing.T) {
	l := newTestLedger()
	o := l.StartNewOrder()
	_, err := l.UpdateOrderStatus(o.ID, OrderPreparing)
	require.NoError(t, err)
	o, err = l.AddItem(o.ID, burger(1))
	require.NoError(t, err)
	_, err = l.UpdateItemStatus(o.ID, o.Items[0].ID, ItemReady)
	require.NoError(t, err)

	first, err := l.SyncOrderStatus(o.ID)
	require.NoError(t, err)
	second, err := l.SyncOrderStatus(o.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderReady, first.Status)
	assert.Equal(t, first.Status, second.Status)
}

func TestUpdateItemStatusDoesNotSync(t *testing.T) {
	l := newTestLedger()
	o := l.StartNewOrder()
	_, err := l.UpdateOrderStatus(o.ID, OrderPreparing)
	require.NoError(t, err)
	o, err = l.AddItem(o.ID, burger(1))
	require.NoError(t, err)

	o, err = l.UpdateItemStatus(o.ID, o.Items[0].ID, ItemReady)
	require.NoError(t, err)
	assert.Equal(t, OrderPreparing, o.Status)

	_, err = l.UpdateItemStatus(o.ID, o.Items[0].ID, ItemStatus("burnt"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestItemValidation(t *testing.T) {
	l := newTestLedger()
	o := l.StartNewOrder()

	_, err := l.AddItem(o.ID, CartItem{Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = l.AddItem(o.ID, CartItem{Quantity: 1, Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	item := burger(1)
	item.ID = "line-1"
	_, err = l.AddItem(o.ID, item)
	require.NoError(t, err)
	_, err = l.AddItem(o.ID, item)
	assert.ErrorIs(t, err, ErrDuplicateItem)

	_, err = l.AddItem("missing", burger(1))
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPaymentsKeepPaidStatusConsistent(t *testing.T) {
	l := newTestLedger()
	o := l.StartNewOrder()
	o, err := l.AddItem(o.ID, burger(2))
	require.NoError(t, err)
	o, err = l.AddItem(o.ID, CartItem{Name: "Soda", Quantity: 1, Price: decimal.RequireFromString("3")})
	require.NoError(t, err)
	assert.Equal(t, "28", o.Subtotal().String())
	assertPaidConsistent(t, o)

	_, err = l.ApplyPayment(o.ID, PaymentInput{Amount: decimal.NewFromInt(10), Method: ""})
	assert.ErrorIs(t, err, ErrInvalidPayment)
	_, err = l.ApplyPayment(o.ID, PaymentInput{
		Amount: decimal.NewFromInt(10), Method: "cash",
		Allocations: map[string]int{o.Items[0].ID: 3},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	o, err = l.ApplyPayment(o.ID, PaymentInput{
		Amount: decimal.RequireFromString("12.50"), Method: "card",
		Allocations: map[string]int{o.Items[0].ID: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, Pending, o.PaidStatus)
	assert.Equal(t, "15.5", o.Balance().String())
	assertPaidConsistent(t, o)

	_, err = l.RemoveItem(o.ID, o.Items[0].ID)
	assert.ErrorIs(t, err, ErrItemPaid)
	paidLine := o.Items[0]
	paidLine.Quantity = 0
	_, err = l.UpdateItem(o.ID, paidLine)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	o, err = l.ApplyPayment(o.ID, PaymentInput{Amount: decimal.RequireFromString("15.50"), Method: "cash"})
	require.NoError(t, err)
	assert.Equal(t, Paid, o.PaidStatus)
	assert.True(t, o.Balance().IsZero())
	assertPaidConsistent(t, o)

	o, err = l.AddItem(o.ID, burger(1))
	require.NoError(t, err)
	assert.Equal(t, Pending, o.PaidStatus)
	assertPaidConsistent(t, o)
}

func TestPaymentAllocationBoundedByRemainingUnits(t *testing.T) {
	l := newTestLedger()
	o := l.StartNewOrder()
	o, err := l.AddItem(o.ID, burger(2))
	require.NoError(t, err)
	itemID := o.Items[0].ID

	o, err = l.ApplyPayment(o.ID, PaymentInput{
		Amount: decimal.RequireFromString("12.50"), Method: "card",
		Allocations: map[string]int{itemID: 1},
	})
	require.NoError(t, err)

	for _, n := range []int{2, math.MaxInt, math.MinInt} {
		_, err = l.ApplyPayment(o.ID, PaymentInput{
			Amount: decimal.NewFromInt(1), Method: "cash",
			Allocations: map[string]int{itemID: n},
		})
		assert.ErrorIs(t, err, ErrInvalidQuantity, "allocation %d", n)
	}

	got, _ := l.Get(o.ID)
	assert.Equal(t, 1, got.Items[0].PaidQuantity)
	assert.Len(t, got.Payments, 1)
	assert.Equal(t, Pending, got.PaidStatus)
	assertPaidConsistent(t, got)
}

func TestVoidRefusedWithPayments(t *testing.T) {
	l := newTestLedger()
	o := l.StartNewOrder()
	o, err := l.AddItem(o.ID, burger(1))
	require.NoError(t, err)
	_, err = l.ApplyPayment(o.ID, PaymentInput{Amount: decimal.NewFromInt(1), Method: "cash", Allocations: map[string]int{}})
	require.NoError(t, err)

	got, err := l.Void(o.ID)
	assert.ErrorIs(t, err, ErrHasPayments)
	assert.NotEqual(t, OrderVoided, got.Status)

	stored, _ := l.Get(o.ID)
	assert.Equal(t, OrderBuilding, stored.Status)
}

func TestVoid(t *testing.T) {
	l := newTestLedger()
	o := l.StartNewOrder()
	_, err := l.AddItem(o.ID, burger(1))
	require.NoError(t, err)

	o, err = l.Void(o.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderVoided, o.Status)
	assert.Equal(t, CheckClosed, o.CheckStatus)
	assert.NotNil(t, o.ClosedAt)

	_, err = l.Void(o.ID)
	assert.ErrorIs(t, err, ErrOrderRetired)
	_, err = l.AddItem(o.ID, burger(1))
	assert.ErrorIs(t, err, ErrOrderRetired)
}

func TestCloseAndReopen(t *testing.T) {
	l := newTestLedger()
	o := l.StartNewOrder()
	_, err := l.UpdateOrderStatus(o.ID, OrderPreparing)
	require.NoError(t, err)
	o, err = l.AddItem(o.ID, burger(1))
	require.NoError(t, err)
	_, err = l.UpdateItemStatus(o.ID, o.Items[0].ID, ItemReady)
	require.NoError(t, err)
	_, err = l.ApplyPayment(o.ID, PaymentInput{Amount: decimal.RequireFromString("12.50"), Method: "cash"})
	require.NoError(t, err)

	_, err = l.Reopen(o.ID)
	assert.ErrorIs(t, err, ErrCheckNotClosed)

	o, err = l.Close(o.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderClosed, o.Status)
	assert.Equal(t, Paid, o.PaidStatus)

	_, err = l.AddItem(o.ID, burger(1))
	assert.ErrorIs(t, err, ErrCheckClosed)

	o, err = l.Reopen(o.ID)
	require.NoError(t, err)
	assert.Equal(t, Pending, o.PaidStatus)
	assert.Equal(t, CheckOpened, o.CheckStatus)
	assert.Equal(t, OrderReady, o.Status, "all items were ready before reopening")
	assert.Nil(t, o.ClosedAt)
	require.NotNil(t, o.ReopenedAt)
	assert.Equal(t, 1, o.Items[0].PaidQuantity)
	assert.True(t, o.AllQuantitiesPaid())

	o, err = l.Close(o.ID)
	require.NoError(t, err)
	assert.Equal(t, Paid, o.PaidStatus)
}

func TestDiscard(t *testing.T) {
	l := newTestLedger()
	draft := l.StartNewOrder()
	assigned := l.StartNewOrder()
	_, err := l.AssignToTable(assigned.ID, "T1")
	require.NoError(t, err)

	require.NoError(t, l.Discard(draft.ID))
	_, ok := l.Get(draft.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, l.Discard(assigned.ID), ErrNotDraft)
	assert.ErrorIs(t, l.Discard("missing"), ErrOrderNotFound)
}

func TestUpdateDetails(t *testing.T) {
	l := newTestLedger()
	o := l.StartNewOrder()
	guests := 4
	kind := Takeout
	notes := "window seat"

	o, err := l.UpdateDetails(o.ID, Patch{Guests: &guests, OrderType: &kind, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, 4, o.Guests)
	assert.Equal(t, Takeout, o.OrderType)
	assert.Equal(t, "window seat", o.Notes)

	bad := -1
	_, err = l.UpdateDetails(o.ID, Patch{Guests: &bad})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestFailedMutationLeavesOrderUntouched(t *testing.T) {
	l := newTestLedger()
	o := l.StartNewOrder()
	o, err := l.AddItem(o.ID, burger(2))
	require.NoError(t, err)

	_, err = l.ApplyPayment(o.ID, PaymentInput{
		Amount: decimal.NewFromInt(5), Method: "cash",
		Allocations: map[string]int{o.Items[0].ID: 1, "ghost": 1},
	})
	require.ErrorIs(t, err, ErrItemNotFound)

	got, _ := l.Get(o.ID)
	assert.Equal(t, 0, got.Items[0].PaidQuantity)
	assert.Empty(t, got.Payments)
	assert.Equal(t, Unpaid, got.PaidStatus)
}

func TestConsolidate(t *testing.T) {
	l := newTestLedger()
	a := l.StartNewOrder()
	_, err := l.AssignToTable(a.ID, "T1")
	require.NoError(t, err)
	_, err = l.UpdateOrderStatus(a.ID, OrderPreparing)
	require.NoError(t, err)
	guests := 2
	_, err = l.UpdateDetails(a.ID, Patch{Guests: &guests})
	require.NoError(t, err)
	a, err = l.AddItem(a.ID, burger(1))
	require.NoError(t, err)

	b := l.StartNewOrder()
	_, err = l.AssignToTable(b.ID, "T2")
	require.NoError(t, err)
	_, err = l.UpdateDetails(b.ID, Patch{Guests: &guests})
	require.NoError(t, err)
	b, err = l.AddItem(b.ID, burger(2))
	require.NoError(t, err)
	_, err = l.ApplyPayment(b.ID, PaymentInput{Amount: decimal.NewFromInt(25), Method: "card"})
	require.NoError(t, err)

	merged, snapshots, err := l.Consolidate([]string{a.ID, b.ID}, "T1", "Merged: T1 + T2")
	require.NoError(t, err)
	require.Len(t, snapshots, 2)

	assert.Equal(t, "T1", merged.ServiceLocationID)
	assert.Len(t, merged.Items, 2)
	assert.Len(t, merged.Payments, 1)
	assert.Equal(t, 4, merged.Guests)
	assert.Equal(t, []string{a.ID, b.ID}, merged.MergedFrom)
	assert.Equal(t, OrderPreparing, merged.Status)
	assert.Equal(t, Pending, merged.PaidStatus)
	assertPaidConsistent(t, merged)

	for _, id := range []string{a.ID, b.ID} {
		src, _ := l.Get(id)
		assert.Equal(t, OrderCancelled, src.Status)
		assert.Equal(t, merged.ID, src.MergedInto)
	}

	l.RevertConsolidation(merged.ID, snapshots)
	_, ok := l.Get(merged.ID)
	assert.False(t, ok)
	restored, _ := l.Get(b.ID)
	assert.Equal(t, OrderBuilding, restored.Status)
	assert.Empty(t, restored.MergedInto)
	assert.Len(t, restored.Payments, 1)
}

func TestConsolidateRenamesCollidingLines(t *testing.T) {
	l := newTestLedger()
	var ids []string
	for _, table := range []string{"T1", "T2"} {
		o := l.StartNewOrder()
		_, err := l.AssignToTable(o.ID, table)
		require.NoError(t, err)
		line := burger(1)
		line.ID = "line-1"
		_, err = l.AddItem(o.ID, line)
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}

	merged, _, err := l.Consolidate(ids, "T1", "Merged: T1 + T2")
	require.NoError(t, err)
	require.Len(t, merged.Items, 2)
	assert.Equal(t, "line-1", merged.Items[0].ID)
	assert.NotEqual(t, merged.Items[0].ID, merged.Items[1].ID)

	_, err = l.UpdateOrderStatus(merged.ID, OrderPreparing)
	require.NoError(t, err)
	for _, it := range merged.Items {
		_, err = l.UpdateItemStatus(merged.ID, it.ID, ItemReady)
		require.NoError(t, err)
	}
	got, err := l.SyncOrderStatus(merged.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderReady, got.Status)

	got, err = l.RemoveItem(merged.ID, merged.Items[1].ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
}

func TestConsolidateRejectsClosedChecks(t *testing.T) {
	l := newTestLedger()
	a := l.StartNewOrder()
	_, err := l.Close(a.ID)
	require.NoError(t, err)

	_, _, err = l.Consolidate([]string{a.ID}, "T1", "")
	assert.ErrorIs(t, err, ErrCheckClosed)
	_, _, err = l.Consolidate([]string{"ghost"}, "T1", "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestConsolidateWithoutSources(t *testing.T) {
	l := newTestLedger()
	merged, snapshots, err := l.Consolidate(nil, "T1", "Merged: T1 + T2")
	require.NoError(t, err)
	assert.Empty(t, snapshots)
	assert.Equal(t, OrderPreparing, merged.Status)
	assert.Equal(t, Unpaid, merged.PaidStatus)
	assert.Equal(t, "Merged: T1 + T2", merged.Notes)
	assert.Empty(t, merged.Items)
}

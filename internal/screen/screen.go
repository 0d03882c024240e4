package screen

import (
	"context"
	"errors"
	"strings"
	"sync"

	"syntra-floor/internal/coordinator"
	"syntra-floor/internal/floor"
	"syntra-floor/internal/ledger"
)

// Floor is the part of the coordinator a table screen drives.
type Floor interface {
	OpenTable(ctx context.Context, tableID string) (coordinator.Result, error)
	TakeOrder(ctx context.Context, tableID, orderID string) (coordinator.Result, error)
	AddItem(ctx context.Context, orderID string, item ledger.CartItem) (coordinator.Result, error)
	UpdateItem(ctx context.Context, orderID string, item ledger.CartItem) (coordinator.Result, error)
	RemoveItem(ctx context.Context, orderID, itemID string) (coordinator.Result, error)
	SetItemStatus(ctx context.Context, orderID, itemID string, status ledger.ItemStatus) (coordinator.Result, error)
	UpdateDetails(ctx context.Context, orderID string, p ledger.Patch) (coordinator.Result, error)
	RequestPayment(ctx context.Context, orderID string) (coordinator.Result, error)
	RecordPayment(ctx context.Context, orderID string, in ledger.PaymentInput) (coordinator.Result, error)
	CloseCheck(ctx context.Context, orderID string) (coordinator.Result, error)
	RequestVoid(ctx context.Context, orderID string) (coordinator.Result, error)
	ReopenCheck(ctx context.Context, orderID string) (coordinator.Result, error)
	ClearTable(ctx context.Context, tableID string) (coordinator.Result, error)
	Confirm(ctx context.Context, actionID string) (coordinator.Result, error)
	Cancel(actionID string) (coordinator.Result, error)
	DiscardDraft(ctx context.Context, orderID string) (bool, error)
	Table(id string) (floor.Table, bool)
	Order(id string) (ledger.Order, bool)
}

type Dialog string

const (
	DialogNone            Dialog = ""
	DialogPaymentSelector Dialog = "payment-selector"
	DialogUnreadyItems    Dialog = "unready-items"
	DialogVoid            Dialog = "void-confirmation"
	DialogBlocked         Dialog = "blocked"
)

var (
	ErrScreenClosed = errors.New("screen is closed")
	ErrNoPending    = errors.New("no confirmation is open")
)

// blocking errors are shown to staff as a modal explaining the next step
// instead of failing the request.
var blocking = []error{
	ledger.ErrCheckClosed,
	ledger.ErrCheckNotClosed,
	ledger.ErrItemPaid,
	ledger.ErrOrderRetired,
	coordinator.ErrVoidWithPayments,
	coordinator.ErrCheckNotSettled,
	coordinator.ErrCheckNotBound,
	coordinator.ErrNothingToPay,
	coordinator.ErrTableOccupied,
}

// State is the render model of one table screen.
type State struct {
	SessionID  string                     `json:"session_id"`
	TableID    string                     `json:"table_id"`
	Table      *floor.Table               `json:"table,omitempty"`
	Order      *ledger.Order              `json:"order,omitempty"`
	Dialog     Dialog                     `json:"dialog,omitempty"`
	Pending    *coordinator.PendingAction `json:"pending,omitempty"`
	Modal      string                     `json:"modal,omitempty"`
	Toast      string                     `json:"toast,omitempty"`
	Navigation coordinator.Navigation     `json:"navigation,omitempty"`
	Closed     bool                       `json:"closed"`
}

// Screen is one mounted table view. It owns transient dialog state only; all
// durable changes go through the coordinator.
type Screen struct {
	mu      sync.Mutex
	id      string
	mgr     *Manager
	floor   Floor
	tableID string
	orderID string

	dialog  Dialog
	pending *coordinator.PendingAction
	modal   string
	toast   string
	nav     coordinator.Navigation
	closed  bool
}

func (s *Screen) ID() string { return s.id }

func (s *Screen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followLocked()
	return s.stateLocked()
}

func (s *Screen) refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followLocked()
}

// maxFollow bounds the MergedInto chain walked for one refresh.
const maxFollow = 8

// followLocked moves the screen off a check that was merged away or dropped
// onto the check now bound to its table. Live checks are never left.
func (s *Screen) followLocked() {
	if s.closed {
		return
	}
	next := s.orderID
	for i := 0; i < maxFollow; i++ {
		o, ok := s.floor.Order(next)
		if ok && o.MergedInto == "" {
			break
		}
		if ok {
			next = o.MergedInto
			continue
		}
		next = ""
		if t, ok := s.floor.Table(s.tableID); ok {
			next = t.OrderID
		}
		break
	}
	if next == "" || next == s.orderID {
		return
	}
	s.orderID = next
	s.pending = nil
	s.dialog = DialogNone
	s.mgr.bind(s.id, s.orderID, s.tableID)
}

func (s *Screen) stateLocked() State {
	st := State{
		SessionID:  s.id,
		TableID:    s.tableID,
		Dialog:     s.dialog,
		Pending:    s.pending,
		Modal:      s.modal,
		Toast:      s.toast,
		Navigation: s.nav,
		Closed:     s.closed,
	}
	if t, ok := s.floor.Table(s.tableID); ok {
		st.Table = &t
	}
	if o, ok := s.floor.Order(s.orderID); ok {
		st.Order = &o
	}
	return st
}

// do runs one intent. The dialog, modal and toast of the previous intent are
// replaced by what this one produces.
func (s *Screen) do(fn func() (coordinator.Result, error)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return State{SessionID: s.id, Closed: true}, ErrScreenClosed
	}
	s.followLocked()
	s.toast, s.modal, s.nav = "", "", coordinator.NavNone

	res, err := fn()
	if err != nil {
		if isBlocking(err) {
			s.dialog = DialogBlocked
			s.pending = nil
			s.modal = modalText(err)
			return s.stateLocked(), nil
		}
		return s.stateLocked(), err
	}
	s.apply(res)
	return s.stateLocked(), nil
}

func (s *Screen) apply(res coordinator.Result) {
	if res.Order != nil {
		s.orderID = res.Order.ID
	}
	switch {
	case res.Pending != nil:
		s.pending = res.Pending
		switch res.Pending.Kind {
		case coordinator.ConfirmUnreadyPayment:
			s.dialog = DialogUnreadyItems
		case coordinator.ConfirmVoid:
			s.dialog = DialogVoid
		}
	case res.OpenPayment:
		s.pending = nil
		s.dialog = DialogPaymentSelector
	default:
		s.pending = nil
		s.dialog = DialogNone
	}
	s.toast = res.Message
	s.nav = res.Navigation
	s.mgr.bind(s.id, s.orderID, s.tableID)
}

func isBlocking(err error) bool {
	for _, b := range blocking {
		if errors.Is(err, b) {
			return true
		}
	}
	return false
}

func modalText(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func (s *Screen) TakeOrder(ctx context.Context) (State, error) {
	return s.do(func() (coordinator.Result, error) {
		return s.floor.TakeOrder(ctx, s.tableID, s.orderID)
	})
}

func (s *Screen) AddItem(ctx context.Context, item ledger.CartItem) (State, error) {
	return s.do(func() (coordinator.Result, error) {
		return s.floor.AddItem(ctx, s.orderID, item)
	})
}

func (s *Screen) UpdateItem(ctx context.Context, item ledger.CartItem) (State, error) {
	return s.do(func() (coordinator.Result, error) {
		return s.floor.UpdateItem(ctx, s.orderID, item)
	})
}

func (s *Screen) RemoveItem(ctx context.Context, itemID string) (State, error) {
	return s.do(func() (coordinator.Result, error) {
		return s.floor.RemoveItem(ctx, s.orderID, itemID)
	})
}

func (s *Screen) SetItemStatus(ctx context.Context, itemID string, status ledger.ItemStatus) (State, error) {
	return s.do(func() (coordinator.Result, error) {
		return s.floor.SetItemStatus(ctx, s.orderID, itemID, status)
	})
}

func (s *Screen) UpdateDetails(ctx context.Context, p ledger.Patch) (State, error) {
	return s.do(func() (coordinator.Result, error) {
		return s.floor.UpdateDetails(ctx, s.orderID, p)
	})
}

// Pay opens the payment selector, or the unready-items confirmation first.
func (s *Screen) Pay(ctx context.Context) (State, error) {
	return s.do(func() (coordinator.Result, error) {
		return s.floor.RequestPayment(ctx, s.orderID)
	})
}

// PaymentCompleted is called by the payment surface once money is captured.
func (s *Screen) PaymentCompleted(ctx context.Context, in ledger.PaymentInput) (State, error) {
	return s.do(func() (coordinator.Result, error) {
		return s.floor.RecordPayment(ctx, s.orderID, in)
	})
}

func (s *Screen) CloseCheck(ctx context.Context) (State, error) {
	return s.do(func() (coordinator.Result, error) {
		return s.floor.CloseCheck(ctx, s.orderID)
	})
}

func (s *Screen) Void(ctx context.Context) (State, error) {
	return s.do(func() (coordinator.Result, error) {
		return s.floor.RequestVoid(ctx, s.orderID)
	})
}

func (s *Screen) ReopenCheck(ctx context.Context) (State, error) {
	return s.do(func() (coordinator.Result, error) {
		return s.floor.ReopenCheck(ctx, s.orderID)
	})
}

func (s *Screen) ClearTable(ctx context.Context) (State, error) {
	return s.do(func() (coordinator.Result, error) {
		return s.floor.ClearTable(ctx, s.tableID)
	})
}

// Confirm accepts the open confirmation dialog.
func (s *Screen) Confirm(ctx context.Context) (State, error) {
	return s.do(func() (coordinator.Result, error) {
		if s.pending == nil {
			return coordinator.Result{}, ErrNoPending
		}
		id := s.pending.ID
		s.pending = nil
		return s.floor.Confirm(ctx, id)
	})
}

// Dismiss closes whatever dialog is open. An open confirmation is declined.
func (s *Screen) Dismiss() (State, error) {
	return s.do(func() (coordinator.Result, error) {
		if s.pending == nil {
			return coordinator.Result{}, nil
		}
		id := s.pending.ID
		s.pending = nil
		res, err := s.floor.Cancel(id)
		if errors.Is(err, coordinator.ErrActionNotFound) {
			return coordinator.Result{}, nil
		}
		return res, err
	})
}

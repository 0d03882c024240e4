package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"syntra-floor/internal/floor"
	"syntra-floor/internal/ledger"
	"syntra-floor/internal/logger"
)

var (
	ErrTableNotFound      = floor.ErrTableNotFound
	ErrOrderNotFound      = ledger.ErrOrderNotFound
	ErrTableNeedsCleaning = errors.New("table needs cleaning")
	ErrNotOrderable       = errors.New("fixtures cannot take orders")
	ErrTableOccupied      = errors.New("table already has an open check")
	ErrVoidWithPayments   = errors.New("cannot void a check with payments recorded")
	ErrCheckNotSettled    = errors.New("check has unpaid items, close or void it first")
	ErrCheckNotBound      = errors.New("check is no longer bound to a table")
	ErrNothingToPay       = errors.New("nothing left to pay on this check")
	ErrMergeClosedCheck   = errors.New("cannot merge a table whose check is closed")
	ErrTableBusy          = errors.New("table is in use")
	ErrNotCleaning        = errors.New("table is not waiting for cleaning")
	ErrActionNotFound     = errors.New("pending action not found or already resolved")
	ErrContention         = errors.New("tables changed while acquiring locks, retry")
)

const maxLockAttempts = 5

type Navigation string

const (
	NavNone   Navigation = ""
	NavBack   Navigation = "back"
	NavTables Navigation = "tables"
)

// Result is what a transition hands back to the screen: the state after the
// call, an optional confirmation the user must answer, and side-effect
// requests for the payment and navigation surfaces.
type Result struct {
	Order       *ledger.Order  `json:"order,omitempty"`
	Table       *floor.Table   `json:"table,omitempty"`
	Pending     *PendingAction `json:"pending,omitempty"`
	Navigation  Navigation     `json:"navigation,omitempty"`
	OpenPayment bool           `json:"open_payment,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// Archiver receives checks that have left the floor (cleared or voided).
type Archiver interface {
	Archive(ctx context.Context, order ledger.Order, tables []floor.Table) error
}

type Option func(*Coordinator)

func WithLocker(l Locker) Option {
	return func(c *Coordinator) { c.locker = l }
}

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

func WithArchiver(a Archiver) Option {
	return func(c *Coordinator) { c.archiver = a }
}

func WithUnmergePolicy(p floor.UnmergePolicy) Option {
	return func(c *Coordinator) { c.policy = p }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(c *Coordinator) { c.newID = newID }
}

// Coordinator is the only writer of the table/order pairing. Every exported
// transition runs under the locks of the aggregates it touches and either
// applies completely or not at all.
type Coordinator struct {
	tables   *floor.Registry
	orders   *ledger.Ledger
	locker   Locker
	notifier Notifier
	archiver Archiver
	policy   floor.UnmergePolicy
	log      *logger.Logger
	now      func() time.Time
	newID    func() string

	pendingMu sync.Mutex
	pending   map[string]PendingAction
}

func New(tables *floor.Registry, orders *ledger.Ledger, opts ...Option) *Coordinator {
	c := &Coordinator{
		tables:   tables,
		orders:   orders,
		locker:   NewKeyedLocker(),
		notifier: NopNotifier{},
		policy:   floor.DissolveGroup,
		log:      logger.Discard(),
		now:      time.Now,
		newID:    uuid.NewString,
		pending:  make(map[string]PendingAction),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) UnmergePolicy() floor.UnmergePolicy {
	return c.policy
}

func (c *Coordinator) Table(id string) (floor.Table, bool) {
	return c.tables.Table(id)
}

func (c *Coordinator) Order(id string) (ledger.Order, bool) {
	return c.orders.Get(id)
}

// Orders lists checks, optionally only the ones still on the floor.
func (c *Coordinator) Orders(liveOnly bool) []ledger.Order {
	if !liveOnly {
		return c.orders.List(nil)
	}
	return c.orders.List(func(o ledger.Order) bool { return !o.Status.Retired() })
}

// lockScope locks the keys returned by scope and re-reads them under the lock.
// A merge or unmerge that landed in between changes the key set, in which
// case the attempt is retried.
func (c *Coordinator) lockScope(ctx context.Context, scope func() []string) (func(), error) {
	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		keys := sortedKeys(scope())
		unlock, err := c.locker.Lock(ctx, keys...)
		if err != nil {
			return nil, fmt.Errorf("acquire locks: %w", err)
		}
		if equalKeys(keys, sortedKeys(scope())) {
			return unlock, nil
		}
		unlock()
	}
	c.log.Warn("LOCK", "gave up acquiring a stable key set", "attempts", maxLockAttempts)
	return nil, ErrContention
}

// tableScope covers every member of the table's group and the check bound to
// it.
func (c *Coordinator) tableScope(ids ...string) func() []string {
	return func() []string {
		var keys []string
		for _, id := range ids {
			group := c.tables.Group(id)
			if len(group) == 0 {
				keys = append(keys, tableKey(id))
				continue
			}
			for _, t := range group {
				keys = append(keys, tableKey(t.ID))
			}
			if group[0].OrderID != "" {
				keys = append(keys, orderKey(group[0].OrderID))
			}
		}
		return keys
	}
}

// orderScope covers the check and, when it is bound, the table group holding
// it.
func (c *Coordinator) orderScope(orderID string) func() []string {
	return func() []string {
		keys := []string{orderKey(orderID)}
		o, ok := c.orders.Get(orderID)
		if !ok || !o.Assigned() {
			return keys
		}
		for _, t := range c.tables.Group(o.ServiceLocationID) {
			keys = append(keys, tableKey(t.ID))
		}
		return keys
	}
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// boundTables returns the group holding the check, or nil when the check is
// unassigned or its table has moved on.
func (c *Coordinator) boundTables(o ledger.Order) []floor.Table {
	if !o.Assigned() {
		return nil
	}
	group := c.tables.Group(o.ServiceLocationID)
	if len(group) == 0 || group[0].OrderID != o.ID {
		return nil
	}
	return group
}

func (c *Coordinator) archive(ctx context.Context, o ledger.Order, tables []floor.Table) {
	if c.archiver == nil {
		return
	}
	if err := c.archiver.Archive(ctx, o, tables); err != nil {
		c.log.Error("ARCHIVE", "failed to archive check", "order_id", o.ID, "error", err)
	}
}

func tableNames(tables []floor.Table) []string {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
	}
	return names
}

func tableIDs(tables []floor.Table) []string {
	ids := make([]string, 0, len(tables))
	for _, t := range tables {
		ids = append(ids, t.ID)
	}
	return ids
}

func orderPtr(o ledger.Order) *ledger.Order { return &o }
func tablePtr(t floor.Table) *floor.Table { return &t }

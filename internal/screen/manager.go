package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"syntra-floor/internal/coordinator"
	"syntra-floor/internal/logger"
)

var ErrSessionNotFound = errors.New("screen session not found")

type pointers struct {
	orderID string
	tableID string
}

// Manager keeps one mounted screen per session (a tablet or a browser tab)
// and the active order/table pointers the payment surface reads.
type Manager struct {
	floor Floor
	log   *logger.Logger

	mu      sync.RWMutex
	screens map[string]*Screen
	active  map[string]pointers
}

func NewManager(f Floor, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		floor:   f,
		log:     log,
		screens: make(map[string]*Screen),
		active:  make(map[string]pointers),
	}
}

// Mount opens the table screen for a session, replacing any screen the
// session had open. A table waiting for cleaning is never mounted: the state
// carries a redirect to the tables list and the error says why.
func (m *Manager) Mount(ctx context.Context, sessionID, tableID string) (*Screen, State, error) {
	if prev := m.Get(sessionID); prev != nil {
		if err := m.Unmount(ctx, sessionID); err != nil {
			m.log.Warn("SCREEN", "previous screen released with errors", "session_id", sessionID, "error", err)
		}
	}

	res, err := m.floor.OpenTable(ctx, tableID)
	if errors.Is(err, coordinator.ErrTableNeedsCleaning) {
		return nil, State{
			SessionID:  sessionID,
			TableID:    tableID,
			Table:      res.Table,
			Navigation: coordinator.NavTables,
			Toast:      "Table needs cleaning",
			Closed:     true,
		}, err
	}
	if err != nil {
		return nil, State{SessionID: sessionID, TableID: tableID, Closed: true}, err
	}

	s := &Screen{
		id:      sessionID,
		mgr:     m,
		floor:   m.floor,
		tableID: tableID,
		orderID: res.Order.ID,
	}
	m.mu.Lock()
	m.screens[sessionID] = s
	m.active[sessionID] = pointers{orderID: res.Order.ID, tableID: tableID}
	m.mu.Unlock()

	m.log.Debug("SCREEN", "mounted", "session_id", sessionID, "table_id", tableID, "order_id", res.Order.ID)
	return s, s.State(), nil
}

// Unmount releases the session's pointers on every path, declines the
// confirmation this screen has open and drops an untouched draft check.
func (m *Manager) Unmount(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.screens[sessionID]
	delete(m.screens, sessionID)
	delete(m.active, sessionID)
	m.mu.Unlock()
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.closed = true
	pending := s.pending
	s.pending = nil
	orderID := s.orderID
	s.mu.Unlock()

	// Other sessions on the same check keep their own confirmations.
	if pending != nil {
		if _, err := m.floor.Cancel(pending.ID); err != nil && !errors.Is(err, coordinator.ErrActionNotFound) {
			m.log.Warn("SCREEN", "pending confirmation not cancelled", "session_id", sessionID, "action_id", pending.ID, "error", err)
		}
	}
	if _, err := m.floor.DiscardDraft(ctx, orderID); err != nil {
		return fmt.Errorf("discard draft %s: %w", orderID, err)
	}
	m.log.Debug("SCREEN", "unmounted", "session_id", sessionID, "order_id", orderID)
	return nil
}

// UnmountAll releases every open session and returns how many there were.
func (m *Manager) UnmountAll(ctx context.Context) int {
	m.mu.RLock()
	ids := make([]string, 0, len(m.screens))
	for id := range m.screens {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.Unmount(ctx, id); err != nil {
			m.log.Warn("SCREEN", "screen released with errors", "session_id", id, "error", err)
		}
	}
	return len(ids)
}

// WithScreen mounts a screen for the duration of fn and unmounts it however
// fn returns, panics included.
func (m *Manager) WithScreen(ctx context.Context, sessionID, tableID string, fn func(*Screen) error) (err error) {
	s, _, err := m.Mount(ctx, sessionID, tableID)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := m.Unmount(context.WithoutCancel(ctx), sessionID); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return fn(s)
}

func (m *Manager) Get(sessionID string) *Screen {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.screens[sessionID]
}

func (m *Manager) Screen(sessionID string) (*Screen, error) {
	s := m.Get(sessionID)
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// ActiveOrderID follows the session's table onto the check it is bound to
// now, so a merge made from another session is picked up.
func (m *Manager) ActiveOrderID(sessionID string) (string, bool) {
	if s := m.Get(sessionID); s != nil {
		s.refresh()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.active[sessionID]
	return p.orderID, ok
}

func (m *Manager) ActiveTableID(sessionID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.active[sessionID]
	return p.tableID, ok
}

func (m *Manager) Sessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.screens)
}

func (m *Manager) bind(sessionID, orderID, tableID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.screens[sessionID]; ok {
		m.active[sessionID] = pointers{orderID: orderID, tableID: tableID}
	}
}

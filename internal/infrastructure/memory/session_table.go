package memory

import (
	"sync"

	"github.com/example/shopserver/internal/domain/identity"
	domain "github.com/example/shopserver/internal/domain/session"
)

// SessionTable maps live connections to authenticated customer ids. It
// consults the identity registry only to validate the customer at login.
type SessionTable struct {
	mu         sync.RWMutex
	registry   identity.Registry
	byConn     map[domain.ConnID]string
	byCustomer map[string]domain.ConnID
}

func NewSessionTable(registry identity.Registry) *SessionTable {
	return &SessionTable{
		registry:   registry,
		byConn:     make(map[domain.ConnID]string),
		byCustomer: make(map[string]domain.ConnID),
	}
}

func (t *SessionTable) Login(conn domain.ConnID, customerID string) error {
	if _, err := t.registry.LookupCustomer(customerID); err != nil {
		return domain.ErrUnknownCustomer
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, bound := t.byConn[conn]; bound {
		return domain.ErrAlreadyAuthenticated
	}
	if _, bound := t.byCustomer[customerID]; bound {
		return domain.ErrAlreadyLoggedIn
	}
	t.byConn[conn] = customerID
	t.byCustomer[customerID] = conn
	return nil
}

func (t *SessionTable) Logout(conn domain.ConnID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	customerID, bound := t.byConn[conn]
	if !bound {
		return domain.ErrNotAuthenticated
	}
	delete(t.byConn, conn)
	delete(t.byCustomer, customerID)
	return nil
}

func (t *SessionTable) IdentityFor(conn domain.ConnID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	customerID, bound := t.byConn[conn]
	return customerID, bound
}

// DropConnection removes any binding for a gone connection. Safe to invoke
// more than once for the same connection.
func (t *SessionTable) DropConnection(conn domain.ConnID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	customerID, bound := t.byConn[conn]
	if !bound {
		return
	}
	delete(t.byConn, conn)
	delete(t.byCustomer, customerID)
}

func (t *SessionTable) ActiveSessions() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byConn)
}

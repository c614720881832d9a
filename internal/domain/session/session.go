package session

import "errors"

var (
	ErrUnknownCustomer      = errors.New("session: customer not registered")
	ErrAlreadyLoggedIn      = errors.New("session: customer already logged in elsewhere")
	ErrAlreadyAuthenticated = errors.New("session: connection already authenticated")
	ErrNotAuthenticated     = errors.New("session: connection not authenticated")
)

// ConnID is an opaque, stable connection handle assigned by the transport.
type ConnID string

// Table binds connections to authenticated customer ids. Invariants: a
// customer holds at most one live binding, and a connection holds at most
// one customer; a second login on a bound connection fails rather than
// silently rebinding.
type Table interface {
	Login(conn ConnID, customerID string) error
	Logout(conn ConnID) error
	IdentityFor(conn ConnID) (string, bool)
	DropConnection(conn ConnID)
	ActiveSessions() int
}

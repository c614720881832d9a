package identity

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidID   = errors.New("identity: id must not be empty")
	ErrInvalidName = errors.New("identity: name must not be empty")
	ErrIDTaken     = errors.New("identity: id already registered")
	ErrIDReserved  = errors.New("identity: id is reserved")
	ErrNotFound    = errors.New("identity: customer not found")
)

type Role string

const (
	RoleOperator Role = "operator"
	RoleCustomer Role = "customer"
)

// Operator is the single privileged identity. It is created at startup and
// never bound to a network session.
type Operator struct {
	ID   string
	Name string
}

type Customer struct {
	ID           string
	Name         string
	RegisteredAt time.Time
}

func NewCustomer(id, name string) (*Customer, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidID
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	return &Customer{
		ID:           id,
		Name:         name,
		RegisteredAt: time.Now().UTC(),
	}, nil
}

// Registry is the identity port. Customers live for the process lifetime.
type Registry interface {
	Operator() *Operator
	RegisterCustomer(id, name string) (*Customer, error)
	LookupCustomer(id string) (*Customer, error)
	ListCustomers() []*Customer
}

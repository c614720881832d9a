package memory

import (
	"sort"
	"sync"

	domain "github.com/example/shopserver/internal/domain/identity"
)

// IdentityRegistry holds the single operator and every registered customer.
// Customers are never deleted; they live for the process lifetime.
type IdentityRegistry struct {
	mu        sync.RWMutex
	operator  *domain.Operator
	customers map[string]*domain.Customer
}

func NewIdentityRegistry(operator *domain.Operator) *IdentityRegistry {
	return &IdentityRegistry{
		operator:  operator,
		customers: make(map[string]*domain.Customer),
	}
}

func (r *IdentityRegistry) Operator() *domain.Operator {
	return r.operator
}

func (r *IdentityRegistry) RegisterCustomer(id, name string) (*domain.Customer, error) {
	customer, err := domain.NewCustomer(id, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.operator != nil && id == r.operator.ID {
		return nil, domain.ErrIDReserved
	}
	if _, exists := r.customers[id]; exists {
		return nil, domain.ErrIDTaken
	}
	r.customers[id] = customer
	return cloneCustomer(customer), nil
}

func (r *IdentityRegistry) LookupCustomer(id string) (*domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	customer, ok := r.customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneCustomer(customer), nil
}

// ListCustomers returns a snapshot ordered by customer id ascending.
func (r *IdentityRegistry) ListCustomers() []*domain.Customer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Customer, 0, len(r.customers))
	for _, c := range r.customers {
		out = append(out, cloneCustomer(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneCustomer(c *domain.Customer) *domain.Customer {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

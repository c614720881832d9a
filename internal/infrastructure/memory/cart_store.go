package memory

import (
	"sync"

	domain "github.com/example/shopserver/internal/domain/cart"
)

// CartStore owns one cart per customer. Carts are created lazily and are
// handed out by reference: the dispatcher serializes all command processing,
// so a cart is never mutated from two goroutines at once.
type CartStore struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
}

func NewCartStore() *CartStore {
	return &CartStore{
		carts: make(map[string]*domain.Cart),
	}
}

func (s *CartStore) ForCustomer(customerID string) *domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[customerID]
	if !ok {
		c = domain.New(customerID)
		s.carts[customerID] = c
	}
	return c
}

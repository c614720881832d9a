package memory

import (
	"sort"
	"sync"

	domain "github.com/example/shopserver/internal/domain/catalog"
)

// CatalogStore is the process-wide product store. It owns every Product;
// callers only ever see clones, so stock can change only through AdjustStock.
type CatalogStore struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		products: make(map[string]*domain.Product),
	}
}

func (s *CatalogStore) Add(product *domain.Product) error {
	if product == nil {
		return domain.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return domain.ErrDuplicateID
	}
	s.products[product.ID] = cloneProduct(product)
	return nil
}

func (s *CatalogStore) Get(id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProduct(product), nil
}

// AdjustStock applies a delta under the store lock and returns the new
// quantity. A delta that would drive stock negative leaves it untouched.
func (s *CatalogStore) AdjustStock(id string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if err := product.Adjust(delta); err != nil {
		return product.Stock, err
	}
	return product.Stock, nil
}

func (s *CatalogStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

// List returns a snapshot ordered by product id ascending.
func (s *CatalogStore) List() []*domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneProduct(p *domain.Product) *domain.Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

package catalog

import (
	"errors"
	"time"

	"github.com/example/shopserver/internal/pkg/money"
)

var (
	ErrDuplicateID       = errors.New("catalog: product id already exists")
	ErrInvalidPrice      = errors.New("catalog: price must be greater than zero")
	ErrInvalidQuantity   = errors.New("catalog: quantity must be zero or greater")
	ErrNotFound          = errors.New("catalog: product not found")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
)

type Product struct {
	ID        string
	Name      string
	Price     money.Money
	Stock     int
	UpdatedAt time.Time
}

func NewProduct(id, name string, price money.Money, stock int) (*Product, error) {
	if price <= 0 {
		return nil, ErrInvalidPrice
	}
	if stock < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Product{
		ID:        id,
		Name:      name,
		Price:     price,
		Stock:     stock,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Adjust applies a stock delta. A delta that would take stock below zero is
// rejected whole; no clamping, no partial application.
func (p *Product) Adjust(delta int) error {
	if p.Stock+delta < 0 {
		return ErrInsufficientStock
	}
	p.Stock += delta
	p.touch()
	return nil
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}

// Store is the catalog port. List returns products ordered by id ascending;
// callers depend on the ordering being stable.
type Store interface {
	Add(product *Product) error
	Get(id string) (*Product, error)
	AdjustStock(id string, delta int) (int, error)
	Remove(id string) error
	List() []*Product
}

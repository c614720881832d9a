package cart

import (
	"errors"
	"sort"
	"time"
)

var ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")

// Line is one desired purchase: a product referenced by id and a strictly
// positive quantity. The product itself is looked up fresh at operation time
// so the cart never holds a stale stock view.
type Line struct {
	ProductID string
	Quantity  int
}

// Cart belongs to exactly one customer and lives as long as the customer
// does; logging out does not clear it.
type Cart struct {
	CustomerID string
	items      map[string]int
	UpdatedAt  time.Time
}

func New(customerID string) *Cart {
	return &Cart{
		CustomerID: customerID,
		items:      make(map[string]int),
	}
}

// Add increments the line for productID and returns the new line total.
func (c *Cart) Add(productID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	c.items[productID] += quantity
	c.touch()
	return c.items[productID], nil
}

// Quantity reports the current desired quantity for a product, zero when the
// product is not in the cart.
func (c *Cart) Quantity(productID string) int {
	return c.items[productID]
}

// Remove deletes a line. Removing an absent line is a no-op.
func (c *Cart) Remove(productID string) {
	if _, ok := c.items[productID]; !ok {
		return
	}
	delete(c.items, productID)
	c.touch()
}

// Lines returns a snapshot ordered by product id ascending. Mutating the
// cart after the call does not affect the returned slice.
func (c *Cart) Lines() []Line {
	lines := make([]Line, 0, len(c.items))
	for id, qty := range c.items {
		lines = append(lines, Line{ProductID: id, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}

// Store hands out the cart owned by a customer, creating it on first use.
type Store interface {
	ForCustomer(customerID string) *Cart
}

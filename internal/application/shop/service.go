package shop

import (
	"errors"
	"fmt"

	"github.com/example/shopserver/internal/domain/cart"
	"github.com/example/shopserver/internal/domain/catalog"
	"github.com/example/shopserver/internal/domain/identity"
	"github.com/example/shopserver/internal/domain/session"
	"github.com/example/shopserver/internal/observability"
	"github.com/example/shopserver/internal/pkg/money"
)

// IDGenerator produces unique identifiers for receipts.
type IDGenerator interface {
	NewID() string
}

// Service carries the shop use cases: registration, login, catalog browsing,
// stock-aware cart adds, and checkout. All shared state is reached through
// the domain ports so tests can swap the stores freely.
type Service struct {
	catalog  catalog.Store
	registry identity.Registry
	sessions session.Table
	carts    cart.Store
	idGen    IDGenerator
	tel      observability.Observability

	log       observability.Logger
	sessGauge observability.Gauge
}

func NewService(
	catalogStore catalog.Store,
	registry identity.Registry,
	sessions session.Table,
	carts cart.Store,
	idGen IDGenerator,
	tel observability.Observability,
) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		catalog:   catalogStore,
		registry:  registry,
		sessions:  sessions,
		carts:     carts,
		idGen:     idGen,
		tel:       tel,
		log:       tel.Logger().With(observability.F("component", "shop")),
		sessGauge: tel.Metrics().Gauge(observability.MActiveSessions),
	}
}

// RegisterCustomer creates a new customer identity. The operator id is
// reserved and empty ids or names are rejected by the registry.
func (s *Service) RegisterCustomer(id, name string) (*identity.Customer, error) {
	customer, err := s.registry.RegisterCustomer(id, name)
	if err != nil {
		return nil, err
	}
	s.log.Info("customer_registered",
		observability.F("customer_id", customer.ID),
	)
	return customer, nil
}

// Login binds a connection to a registered customer.
func (s *Service) Login(conn session.ConnID, customerID string) (*identity.Customer, error) {
	if err := s.sessions.Login(conn, customerID); err != nil {
		return nil, err
	}
	customer, err := s.registry.LookupCustomer(customerID)
	if err != nil {
		// The table validated the id a moment ago; treat disappearance as a
		// programming error surfaced to the caller, and undo the binding.
		s.sessions.DropConnection(conn)
		return nil, fmt.Errorf("shop: login lookup: %w", err)
	}
	s.sessGauge.Set(float64(s.sessions.ActiveSessions()))
	s.log.Info("customer_logged_in",
		observability.F("customer_id", customerID),
	)
	return customer, nil
}

// Logout releases the connection's binding. The customer's cart survives.
func (s *Service) Logout(conn session.ConnID) error {
	if err := s.sessions.Logout(conn); err != nil {
		return err
	}
	s.sessGauge.Set(float64(s.sessions.ActiveSessions()))
	return nil
}

// IdentityFor resolves the customer bound to a connection, if any.
func (s *Service) IdentityFor(conn session.ConnID) (string, bool) {
	return s.sessions.IdentityFor(conn)
}

// DropConnection cleans up after the transport reports a connection gone.
// It must never attempt to notify the connection.
func (s *Service) DropConnection(conn session.ConnID) {
	s.sessions.DropConnection(conn)
	s.sessGauge.Set(float64(s.sessions.ActiveSessions()))
}

// ListProducts snapshots the catalog, ordered by product id ascending.
func (s *Service) ListProducts() []*catalog.Product {
	return s.catalog.List()
}

// ListCustomers is operator-facing; it is not reachable from the protocol.
func (s *Service) ListCustomers() []*identity.Customer {
	return s.registry.ListCustomers()
}

// CartLine is a cart snapshot entry enriched with current catalog data.
// Lines whose product has since been removed from the catalog keep their id
// and quantity but carry the removed marker as their name and a zero price.
type CartLine struct {
	ProductID string
	Name      string
	Price     money.Money
	Quantity  int
	Removed   bool
}

const removedProductName = "(no longer sold)"

// ViewCart snapshots a customer's cart with per-line pricing and the total
// the cart would cost if fully purchasable right now.
func (s *Service) ViewCart(customerID string) ([]CartLine, money.Money) {
	c := s.carts.ForCustomer(customerID)
	var total money.Money
	lines := make([]CartLine, 0, len(c.Lines()))
	for _, line := range c.Lines() {
		view := CartLine{ProductID: line.ProductID, Quantity: line.Quantity}
		product, err := s.catalog.Get(line.ProductID)
		if err != nil {
			view.Name = removedProductName
			view.Removed = true
		} else {
			view.Name = product.Name
			view.Price = product.Price
			total = total.Add(product.Price.Mul(line.Quantity))
		}
		lines = append(lines, view)
	}
	return lines, total
}

// AddKind distinguishes the three ADD_TO_CART outcomes. A partial add
// mutates the cart while reporting the shortfall, so it is a first-class
// outcome rather than an overloaded error.
type AddKind int

const (
	AddFull AddKind = iota
	AddPartial
	AddRejected
)

type AddOutcome struct {
	Kind        AddKind
	ProductName string
	Requested   int
	Added       int
	// Available is the catalog stock observed at the time of the check.
	Available int
}

// AddToCart applies the stock-aware policy: the cart's desired quantity for
// a product never exceeds the availability observed at the instant of the
// check. With headroom for the full request the whole amount is added; with
// some headroom the remainder is added and reported; with none the cart is
// left untouched.
func (s *Service) AddToCart(customerID, productID string, quantity int) (*AddOutcome, error) {
	if quantity <= 0 {
		return nil, cart.ErrInvalidQuantity
	}
	product, err := s.catalog.Get(productID)
	if err != nil {
		return nil, err
	}

	c := s.carts.ForCustomer(customerID)
	already := c.Quantity(productID)

	outcome := &AddOutcome{
		ProductName: product.Name,
		Requested:   quantity,
		Available:   product.Stock,
	}
	switch {
	case product.Stock >= already+quantity:
		outcome.Kind = AddFull
		outcome.Added = quantity
	case product.Stock > already:
		outcome.Kind = AddPartial
		outcome.Added = product.Stock - already
	default:
		// No headroom at all: the cart stays untouched, but the outcome still
		// carries the observed availability for reporting.
		outcome.Kind = AddRejected
		return outcome, fmt.Errorf("%w: %s has %d available", catalog.ErrInsufficientStock, product.Name, product.Stock)
	}

	if _, err := c.Add(productID, outcome.Added); err != nil {
		return nil, err
	}
	s.log.Info("cart_item_added",
		observability.F("customer_id", customerID),
		observability.F("product_id", productID),
		observability.F("added", outcome.Added),
		observability.F("requested", quantity),
	)
	return outcome, nil
}

// BuyNow is the operator-side direct purchase path: it charges a single
// product immediately through the same rejecting stock adjustment checkout
// uses, without touching the customer's cart.
func (s *Service) BuyNow(customerID, productID string, quantity int) (money.Money, error) {
	if quantity <= 0 {
		return 0, cart.ErrInvalidQuantity
	}
	if _, err := s.registry.LookupCustomer(customerID); err != nil {
		return 0, err
	}
	product, err := s.catalog.Get(productID)
	if err != nil {
		return 0, err
	}
	if _, err := s.catalog.AdjustStock(productID, -quantity); err != nil {
		if errors.Is(err, catalog.ErrInsufficientStock) {
			return 0, fmt.Errorf("%w: %s has %d available", catalog.ErrInsufficientStock, product.Name, product.Stock)
		}
		return 0, err
	}
	cost := product.Price.Mul(quantity)
	s.log.Info("direct_purchase",
		observability.F("customer_id", customerID),
		observability.F("product_id", productID),
		observability.F("quantity", quantity),
		observability.F("cost", cost.String()),
	)
	return cost, nil
}

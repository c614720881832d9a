package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/example/shopserver/internal/application/shop"
	"github.com/example/shopserver/internal/domain/cart"
	"github.com/example/shopserver/internal/domain/catalog"
	"github.com/example/shopserver/internal/domain/identity"
	"github.com/example/shopserver/internal/domain/session"
	"github.com/example/shopserver/internal/observability"
	"github.com/example/shopserver/internal/observability/logctx"
)

// Outbound is one response destined for a connection.
type Outbound struct {
	Conn session.ConnID
	Text string
}

// Dispatcher is the protocol boundary: it parses command lines, enforces the
// per-command authentication precondition, invokes the shop use cases, and
// translates every outcome into response payloads. A mutex serializes all
// command processing, so the shared stores behave as if driven by a single
// thread regardless of how many connections the transport fans in from.
type Dispatcher struct {
	mu   sync.Mutex
	shop *shop.Service
	tel  observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewDispatcher(svc *shop.Service, tel observability.Observability) *Dispatcher {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Dispatcher{
		shop:         svc,
		tel:          tel,
		log:          tel.Logger().With(observability.F("component", "dispatcher")),
		reqCounter:   tel.Metrics().Counter(observability.MCommandRequests),
		durHistogram: tel.Metrics().Histogram(observability.MCommandDuration),
	}
}

// OnMessage handles one inbound command line and returns zero or more
// outbound responses. Command failures never poison the connection; the
// caller may keep delivering messages for it.
func (d *Dispatcher) OnMessage(conn session.ConnID, line string) []Outbound {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	cmd, err := Parse(line)

	name := "UNKNOWN"
	if cmd != nil {
		name = string(cmd.Name)
	}
	ctx, span := d.tel.Tracer().Start(context.Background(), "Dispatch."+name,
		attribute.String("command", name),
		attribute.String("conn_id", string(conn)),
	)
	defer span.End()
	ctx = logctx.With(ctx, d.log.With(observability.F("conn_id", string(conn))))

	outcome := "success"
	var out []Outbound
	switch {
	case errors.Is(err, ErrUnknownCommand):
		outcome = "unknown_command"
		out = d.reply(conn, errorResponse("Unknown command."))
	case err != nil:
		outcome = "malformed"
		text := "Invalid command format."
		if detail := trimPrefix(err); detail != "" {
			text = "Invalid command format. " + detail
		}
		out = d.reply(conn, errorResponse(text))
	default:
		var ok bool
		out, ok = d.dispatch(ctx, conn, cmd)
		if !ok {
			outcome = "error"
		}
	}

	d.reqCounter.Add(1,
		observability.L("command", name),
		observability.L("outcome", outcome),
	)
	d.durHistogram.Observe(time.Since(start).Seconds(),
		observability.L("command", name),
	)
	d.log.Debug("command_handled",
		observability.F("conn_id", string(conn)),
		observability.F("command", name),
		observability.F("outcome", outcome),
		observability.F("responses", len(out)),
	)
	return out
}

// OnConnectionClosed performs the implicit-logout cleanup for a gone
// connection. It never produces outbound traffic.
func (d *Dispatcher) OnConnectionClosed(conn session.ConnID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.shop.DropConnection(conn)
	d.log.Info("connection_dropped",
		observability.F("conn_id", string(conn)),
	)
}

func (d *Dispatcher) dispatch(ctx context.Context, conn session.ConnID, cmd *Command) ([]Outbound, bool) {
	customerID, loggedIn := d.shop.IdentityFor(conn)
	if cmd.Name.RequiresLogin() && !loggedIn {
		return d.reply(conn, errorResponse(loginRequiredText(cmd.Name))), false
	}

	switch cmd.Name {
	case CmdRegisterCustomer:
		if loggedIn {
			return d.reply(conn, errorResponse("You are already logged in. Log out before registering a new customer.")), false
		}
		if _, err := d.shop.RegisterCustomer(cmd.CustomerID, cmd.Customer); err != nil {
			return d.reply(conn, errorResponse(registrationErrorText(err))), false
		}
		return d.reply(conn, successResponse("Registration successful. You can now log in with your ID.")), true

	case CmdLoginCustomer:
		customer, err := d.shop.Login(conn, cmd.CustomerID)
		if err != nil {
			return d.reply(conn, errorResponse(loginErrorText(err))), false
		}
		return d.reply(conn, loginResponse(customer.ID, customer.Name)), true

	case CmdListProducts:
		return d.reply(conn, productsResponse(d.shop.ListProducts())), true

	case CmdAddToCart:
		outcome, err := d.shop.AddToCart(customerID, cmd.ProductID, cmd.Quantity)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			return d.reply(conn, errorResponse("Product ID not found in shop.")), false
		case errors.Is(err, catalog.ErrInsufficientStock):
			return d.reply(conn, errorResponse(fmt.Sprintf(
				"Sorry, not enough stock for %s. Available: %d", outcome.ProductName, outcome.Available))), false
		case errors.Is(err, cart.ErrInvalidQuantity):
			return d.reply(conn, errorResponse("Quantity must be a positive integer.")), false
		case err != nil:
			return d.reply(conn, errorResponse("Could not add to cart.")), false
		}
		if outcome.Kind == shop.AddPartial {
			// State changed even though the request was not fully honoured;
			// the wire keeps the original protocol's error-flavoured report.
			return d.reply(conn, errorResponse(fmt.Sprintf(
				"Only %d available in total (including what's in your cart). Added %d x %s to cart.",
				outcome.Available, outcome.Added, outcome.ProductName))), true
		}
		return d.reply(conn, successResponse(fmt.Sprintf(
			"%d x %s added to your cart.", outcome.Added, outcome.ProductName))), true

	case CmdViewCart:
		lines, _ := d.shop.ViewCart(customerID)
		return d.reply(conn, cartResponse(lines)), true

	case CmdCheckout:
		result, err := d.shop.Checkout(ctx, customerID)
		var out []Outbound
		ok := true
		switch {
		case errors.Is(err, shop.ErrEmptyCart):
			return d.reply(conn, errorResponse("Your cart is empty. Nothing to buy.")), false
		case errors.Is(err, shop.ErrNothingPurchased):
			out = d.reply(conn, errorResponse(checkoutFailureText(result)))
			ok = false
		case err != nil:
			return d.reply(conn, errorResponse("Checkout failed unexpectedly.")), false
		default:
			out = d.reply(conn, successResponse(checkoutSuccessText(result)))
		}
		// Only a non-empty remaining cart warrants the follow-up snapshot.
		if lines, _ := d.shop.ViewCart(customerID); len(lines) > 0 {
			out = append(out, Outbound{Conn: conn, Text: cartResponse(lines)})
		}
		return out, ok

	case CmdLogout:
		if err := d.shop.Logout(conn); err != nil {
			return d.reply(conn, errorResponse("You are not currently logged in on this connection.")), false
		}
		return d.reply(conn, successResponse("Logged out successfully. Goodbye!")), true
	}

	return d.reply(conn, errorResponse("Unknown command.")), false
}

func (d *Dispatcher) reply(conn session.ConnID, text string) []Outbound {
	return []Outbound{{Conn: conn, Text: text}}
}

func loginRequiredText(name CommandName) string {
	switch name {
	case CmdAddToCart:
		return "You must be logged in to add items to your cart."
	case CmdViewCart:
		return "You must be logged in to view your cart."
	case CmdCheckout:
		return "You must be logged in to checkout."
	case CmdLogout:
		return "You are not currently logged in on this connection."
	}
	return "You must be logged in first."
}

func registrationErrorText(err error) string {
	switch {
	case errors.Is(err, identity.ErrInvalidID):
		return "Customer ID cannot be empty."
	case errors.Is(err, identity.ErrInvalidName):
		return "Customer name cannot be empty."
	case errors.Is(err, identity.ErrIDTaken):
		return "Customer ID is already taken. Please choose a different ID."
	case errors.Is(err, identity.ErrIDReserved):
		return "Customer ID is reserved. Please choose a different ID."
	}
	return "Registration failed. ID might be taken or input invalid."
}

func loginErrorText(err error) string {
	switch {
	case errors.Is(err, session.ErrUnknownCustomer):
		return "Invalid Customer ID or customer not found. Please register first."
	case errors.Is(err, session.ErrAlreadyLoggedIn):
		return "Customer is already logged in elsewhere."
	case errors.Is(err, session.ErrAlreadyAuthenticated):
		return "This connection is already logged in. Log out first."
	}
	return "Login failed."
}

// trimPrefix strips the sentinel prefix from wrapped parse errors so wire
// messages read naturally; a bare sentinel yields no extra detail.
func trimPrefix(err error) string {
	msg := err.Error()
	const p = "protocol: malformed command"
	if msg == p {
		return ""
	}
	if len(msg) > len(p)+2 && msg[:len(p)+2] == p+": " {
		return msg[len(p)+2:]
	}
	return msg
}

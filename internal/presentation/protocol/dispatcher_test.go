package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/shopserver/internal/application/shop"
	"github.com/example/shopserver/internal/domain/catalog"
	"github.com/example/shopserver/internal/domain/identity"
	"github.com/example/shopserver/internal/domain/session"
	"github.com/example/shopserver/internal/infrastructure/id"
	"github.com/example/shopserver/internal/infrastructure/memory"
	"github.com/example/shopserver/internal/observability"
	"github.com/example/shopserver/internal/pkg/money"
)

type testEnv struct {
	dispatcher *Dispatcher
	catalog    *memory.CatalogStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	catalogStore := memory.NewCatalogStore()
	registry := memory.NewIdentityRegistry(&identity.Operator{ID: "MNG001", Name: "Mr. Server"})
	svc := shop.NewService(
		catalogStore,
		registry,
		memory.NewSessionTable(registry),
		memory.NewCartStore(),
		id.NewUUIDGenerator(),
		observability.Nop(),
	)
	return &testEnv{
		dispatcher: NewDispatcher(svc, observability.Nop()),
		catalog:    catalogStore,
	}
}

func (e *testEnv) seedProduct(t *testing.T, pid, name string, cents int64, stock int) {
	t.Helper()
	p, err := catalog.NewProduct(pid, name, money.FromCents(cents), stock)
	require.NoError(t, err)
	require.NoError(t, e.catalog.Add(p))
}

// send delivers one line and requires exactly one response back.
func (e *testEnv) send(t *testing.T, conn session.ConnID, line string) string {
	t.Helper()
	out := e.dispatcher.OnMessage(conn, line)
	require.Len(t, out, 1)
	assert.Equal(t, conn, out[0].Conn)
	return out[0].Text
}

func TestDispatcher_RegisterThenLoginRoundTrip(t *testing.T) {
	e := newTestEnv(t)

	resp := e.send(t, "conn-1", "REGISTER_CUSTOMER:C101:Alice")
	assert.Equal(t, "RESPONSE_SUCCESS:Registration successful. You can now log in with your ID.", resp)

	resp = e.send(t, "conn-1", "LOGIN_CUSTOMER:C101")
	assert.Equal(t, "RESPONSE_LOGIN_SUCCESS:C101:Alice", resp)
}

func TestDispatcher_RegisterWhileLoggedInRejected(t *testing.T) {
	e := newTestEnv(t)
	e.send(t, "conn-1", "REGISTER_CUSTOMER:C101:Alice")
	e.send(t, "conn-1", "LOGIN_CUSTOMER:C101")

	resp := e.send(t, "conn-1", "REGISTER_CUSTOMER:C102:Bob")
	assert.True(t, strings.HasPrefix(resp, "RESPONSE_ERROR:"), resp)
}

func TestDispatcher_SecondLoginForSameCustomerFails(t *testing.T) {
	e := newTestEnv(t)
	e.send(t, "conn-1", "REGISTER_CUSTOMER:C101:Alice")
	e.send(t, "conn-1", "LOGIN_CUSTOMER:C101")

	resp := e.send(t, "conn-2", "LOGIN_CUSTOMER:C101")
	assert.Equal(t, "RESPONSE_ERROR:Customer is already logged in elsewhere.", resp)
}

func TestDispatcher_LoginUnknownCustomer(t *testing.T) {
	e := newTestEnv(t)
	resp := e.send(t, "conn-1", "LOGIN_CUSTOMER:C404")
	assert.Equal(t, "RESPONSE_ERROR:Invalid Customer ID or customer not found. Please register first.", resp)
}

func TestDispatcher_ListProducts_NoLoginRequired(t *testing.T) {
	e := newTestEnv(t)
	e.seedProduct(t, "P002", "Mouse", 2500, 50)
	e.seedProduct(t, "P001", "Laptop", 120000, 10)

	resp := e.send(t, "conn-1", "LIST_PRODUCTS")
	require.True(t, strings.HasPrefix(resp, "RESPONSE_PRODUCTS:"), resp)

	var records []struct {
		ID    string      `json:"id"`
		Name  string      `json:"name"`
		Price json.Number `json:"price"`
		Stock int         `json:"stock"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(resp, "RESPONSE_PRODUCTS:")), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "P001", records[0].ID)
	assert.Equal(t, json.Number("1200.00"), records[0].Price)
	assert.Equal(t, "P002", records[1].ID)
	assert.Equal(t, 50, records[1].Stock)
}

func TestDispatcher_LoginRequiredCommands(t *testing.T) {
	e := newTestEnv(t)

	tests := map[string]string{
		"ADD_TO_CART:P001:1": "RESPONSE_ERROR:You must be logged in to add items to your cart.",
		"VIEW_CART":          "RESPONSE_ERROR:You must be logged in to view your cart.",
		"CHECKOUT":           "RESPONSE_ERROR:You must be logged in to checkout.",
		"LOGOUT":             "RESPONSE_ERROR:You are not currently logged in on this connection.",
	}
	for line, want := range tests {
		assert.Equal(t, want, e.send(t, "conn-1", line), line)
	}
}

func TestDispatcher_AddToCart_FullPartialRejected(t *testing.T) {
	e := newTestEnv(t)
	e.seedProduct(t, "P001", "Mouse", 2500, 2)
	e.send(t, "conn-1", "REGISTER_CUSTOMER:C101:Alice")
	e.send(t, "conn-1", "LOGIN_CUSTOMER:C101")

	resp := e.send(t, "conn-1", "ADD_TO_CART:P001:1")
	assert.Equal(t, "RESPONSE_SUCCESS:1 x Mouse added to your cart.", resp)

	// stock 2, cart 1: asking for 4 adds only the single remaining unit
	resp = e.send(t, "conn-1", "ADD_TO_CART:P001:4")
	assert.Equal(t, "RESPONSE_ERROR:Only 2 available in total (including what's in your cart). Added 1 x Mouse to cart.", resp)

	// stock 2, cart 2: no headroom left, cart unchanged
	resp = e.send(t, "conn-1", "ADD_TO_CART:P001:5")
	assert.Equal(t, "RESPONSE_ERROR:Sorry, not enough stock for Mouse. Available: 2", resp)

	resp = e.send(t, "conn-1", "VIEW_CART")
	require.True(t, strings.HasPrefix(resp, "RESPONSE_CART:"), resp)
	var cartRecords []struct {
		ID             string `json:"id"`
		QuantityInCart int    `json:"quantityInCart"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(resp, "RESPONSE_CART:")), &cartRecords))
	require.Len(t, cartRecords, 1)
	assert.Equal(t, 2, cartRecords[0].QuantityInCart)
}

func TestDispatcher_AddToCart_UnknownProduct(t *testing.T) {
	e := newTestEnv(t)
	e.send(t, "conn-1", "REGISTER_CUSTOMER:C101:Alice")
	e.send(t, "conn-1", "LOGIN_CUSTOMER:C101")

	resp := e.send(t, "conn-1", "ADD_TO_CART:P404:1")
	assert.Equal(t, "RESPONSE_ERROR:Product ID not found in shop.", resp)
}

func TestDispatcher_Checkout_FullFlow(t *testing.T) {
	e := newTestEnv(t)
	e.seedProduct(t, "P001", "Widget", 1000, 5)
	e.send(t, "conn-1", "REGISTER_CUSTOMER:C101:Alice")
	e.send(t, "conn-1", "LOGIN_CUSTOMER:C101")
	e.send(t, "conn-1", "ADD_TO_CART:P001:3")

	out := e.dispatcher.OnMessage("conn-1", "CHECKOUT")
	require.Len(t, out, 1) // cart emptied, so no trailing snapshot
	assert.True(t, strings.HasPrefix(out[0].Text, "RESPONSE_SUCCESS:Checkout successful!"), out[0].Text)
	assert.Contains(t, out[0].Text, "3 x Widget")
	assert.Contains(t, out[0].Text, "Total cost: 30.00.")

	product, err := e.catalog.Get("P001")
	require.NoError(t, err)
	assert.Equal(t, 2, product.Stock)
}

func TestDispatcher_Checkout_MixedOutcomeEmitsCartSnapshot(t *testing.T) {
	e := newTestEnv(t)
	e.seedProduct(t, "P001", "Laptop", 120000, 3)
	e.seedProduct(t, "P002", "Mouse", 2500, 1)
	e.send(t, "conn-1", "REGISTER_CUSTOMER:C101:Alice")
	e.send(t, "conn-1", "LOGIN_CUSTOMER:C101")
	e.send(t, "conn-1", "ADD_TO_CART:P001:3")
	e.send(t, "conn-1", "ADD_TO_CART:P002:1")

	// another customer drains the laptop stock before checkout
	_, err := e.catalog.AdjustStock("P001", -2)
	require.NoError(t, err)

	out := e.dispatcher.OnMessage("conn-1", "CHECKOUT")
	require.Len(t, out, 2)
	assert.True(t, strings.HasPrefix(out[0].Text, "RESPONSE_SUCCESS:"), out[0].Text)
	assert.Contains(t, out[0].Text, "1 x Mouse")
	assert.Contains(t, out[0].Text, "Some items could not be purchased:")
	assert.Contains(t, out[0].Text, "3 x Laptop (Not enough stock. Available: 1)")
	assert.True(t, strings.HasPrefix(out[1].Text, "RESPONSE_CART:"), out[1].Text)
	assert.Contains(t, out[1].Text, `"quantityInCart":3`)
}

func TestDispatcher_Checkout_EmptyCart(t *testing.T) {
	e := newTestEnv(t)
	e.send(t, "conn-1", "REGISTER_CUSTOMER:C101:Alice")
	e.send(t, "conn-1", "LOGIN_CUSTOMER:C101")

	resp := e.send(t, "conn-1", "CHECKOUT")
	assert.Equal(t, "RESPONSE_ERROR:Your cart is empty. Nothing to buy.", resp)
}

func TestDispatcher_Checkout_AllFailed(t *testing.T) {
	e := newTestEnv(t)
	e.seedProduct(t, "P001", "Mouse", 2500, 1)
	e.send(t, "conn-1", "REGISTER_CUSTOMER:C101:Alice")
	e.send(t, "conn-1", "LOGIN_CUSTOMER:C101")
	e.send(t, "conn-1", "ADD_TO_CART:P001:1")

	// stock vanishes before checkout
	_, err := e.catalog.AdjustStock("P001", -1)
	require.NoError(t, err)

	out := e.dispatcher.OnMessage("conn-1", "CHECKOUT")
	require.Len(t, out, 2)
	assert.True(t, strings.HasPrefix(out[0].Text, "RESPONSE_ERROR:Checkout failed for all items"), out[0].Text)
	assert.True(t, strings.HasPrefix(out[1].Text, "RESPONSE_CART:"), out[1].Text)
}

func TestDispatcher_LogoutThenRelogin(t *testing.T) {
	e := newTestEnv(t)
	e.send(t, "conn-1", "REGISTER_CUSTOMER:C101:Alice")
	e.send(t, "conn-1", "LOGIN_CUSTOMER:C101")

	resp := e.send(t, "conn-1", "LOGOUT")
	assert.Equal(t, "RESPONSE_SUCCESS:Logged out successfully. Goodbye!", resp)

	// same connection can host a different customer afterwards
	e.send(t, "conn-1", "REGISTER_CUSTOMER:C102:Bob")
	resp = e.send(t, "conn-1", "LOGIN_CUSTOMER:C102")
	assert.Equal(t, "RESPONSE_LOGIN_SUCCESS:C102:Bob", resp)
}

func TestDispatcher_UnknownAndMalformed(t *testing.T) {
	e := newTestEnv(t)

	resp := e.send(t, "conn-1", "TELEPORT:HOME")
	assert.Equal(t, "RESPONSE_ERROR:Unknown command.", resp)

	resp = e.send(t, "conn-1", "ADD_TO_CART:P001:zero")
	assert.True(t, strings.HasPrefix(resp, "RESPONSE_ERROR:Invalid command format."), resp)

	// the connection stays usable after bad input
	resp = e.send(t, "conn-1", "REGISTER_CUSTOMER:C101:Alice")
	assert.True(t, strings.HasPrefix(resp, "RESPONSE_SUCCESS:"), resp)
}

func TestDispatcher_OnConnectionClosed_ReleasesSession(t *testing.T) {
	e := newTestEnv(t)
	e.send(t, "conn-1", "REGISTER_CUSTOMER:C101:Alice")
	e.send(t, "conn-1", "LOGIN_CUSTOMER:C101")

	e.dispatcher.OnConnectionClosed("conn-1")
	e.dispatcher.OnConnectionClosed("conn-1")

	resp := e.send(t, "conn-2", "LOGIN_CUSTOMER:C101")
	assert.Equal(t, "RESPONSE_LOGIN_SUCCESS:C101:Alice", resp)
}

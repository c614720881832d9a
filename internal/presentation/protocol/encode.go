package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/shopserver/internal/application/shop"
	"github.com/example/shopserver/internal/domain/catalog"
	"github.com/example/shopserver/internal/pkg/money"
)

const (
	respSuccess      = "RESPONSE_SUCCESS"
	respError        = "RESPONSE_ERROR"
	respLoginSuccess = "RESPONSE_LOGIN_SUCCESS"
	respProducts     = "RESPONSE_PRODUCTS"
	respCart         = "RESPONSE_CART"
)

type productRecord struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Price money.Money `json:"price"`
	Stock int         `json:"stock"`
}

type cartRecord struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Price          money.Money `json:"price"`
	QuantityInCart int         `json:"quantityInCart"`
}

func successResponse(text string) string {
	return respSuccess + Delimiter + text
}

func errorResponse(text string) string {
	return respError + Delimiter + text
}

func loginResponse(id, name string) string {
	return respLoginSuccess + Delimiter + id + Delimiter + name
}

// productsResponse encodes a catalog snapshot. Input order (ascending id) is
// preserved in the array.
func productsResponse(products []*catalog.Product) string {
	records := make([]productRecord, 0, len(products))
	for _, p := range products {
		records = append(records, productRecord{
			ID:    p.ID,
			Name:  p.Name,
			Price: p.Price,
			Stock: p.Stock,
		})
	}
	return respProducts + Delimiter + mustJSON(records)
}

func cartResponse(lines []shop.CartLine) string {
	records := make([]cartRecord, 0, len(lines))
	for _, line := range lines {
		records = append(records, cartRecord{
			ID:             line.ProductID,
			Name:           line.Name,
			Price:          line.Price,
			QuantityInCart: line.Quantity,
		})
	}
	return respCart + Delimiter + mustJSON(records)
}

func checkoutSuccessText(result *shop.CheckoutResult) string {
	purchased := make([]string, 0, len(result.Purchased))
	for _, line := range result.Purchased {
		purchased = append(purchased, fmt.Sprintf("%d x %s", line.Quantity, line.Name))
	}
	text := fmt.Sprintf("Checkout successful! Receipt %s. Purchased: %s. Total cost: %s.",
		result.ReceiptID, strings.Join(purchased, ", "), result.Total)
	if len(result.Failed) > 0 {
		text += " Some items could not be purchased: " + failedSummary(result.Failed) + "."
	}
	return text
}

func checkoutFailureText(result *shop.CheckoutResult) string {
	return "Checkout failed for all items in your cart. Issues: " + failedSummary(result.Failed)
}

func failedSummary(failed []shop.FailedLine) string {
	parts := make([]string, 0, len(failed))
	for _, line := range failed {
		switch line.Reason {
		case shop.FailInsufficientStock:
			parts = append(parts, fmt.Sprintf("%d x %s (Not enough stock. Available: %d)",
				line.Quantity, line.Name, line.Available))
		default:
			parts = append(parts, fmt.Sprintf("%d x %s (No longer sold)", line.Quantity, line.Name))
		}
	}
	return strings.Join(parts, ", ")
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Records are plain structs of strings and ints; marshalling cannot
		// fail short of a programming error.
		panic(err)
	}
	return string(data)
}

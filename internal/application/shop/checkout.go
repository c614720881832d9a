package shop

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/example/shopserver/internal/observability"
	"github.com/example/shopserver/internal/observability/logctx"
	"github.com/example/shopserver/internal/pkg/money"
)

var (
	ErrEmptyCart = errors.New("shop: cart is empty")
	// ErrNothingPurchased accompanies a CheckoutResult in which every line
	// failed; the result still carries the failure summaries for reporting.
	ErrNothingPurchased = errors.New("shop: no cart line could be purchased")
)

// FailReason classifies why a checkout line could not be fulfilled.
type FailReason string

const (
	FailNoLongerSold      FailReason = "no longer sold"
	FailInsufficientStock FailReason = "insufficient stock"
)

type PurchasedLine struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice money.Money
	Cost      money.Money
}

type FailedLine struct {
	ProductID string
	Name      string
	Quantity  int
	Reason    FailReason
	// Available is the stock observed for insufficient-stock failures.
	Available int
}

type CheckoutResult struct {
	ReceiptID string
	Purchased []PurchasedLine
	Failed    []FailedLine
	Total     money.Money
}

// Checkout reconciles the customer's cart against current stock, line by
// line in ascending product id order. Each satisfiable line decrements stock
// through the rejecting adjustment and is removed from the cart; failed
// lines stay put so the customer can retry. At least one purchased line
// makes the whole call a success; an all-failed pass returns the result
// alongside ErrNothingPurchased, and an empty cart fails fast with no side
// effects.
func (s *Service) Checkout(ctx context.Context, customerID string) (_ *CheckoutResult, err error) {
	logger := logctx.FromOr(ctx, s.log).With(
		observability.F("use_case", "shop.checkout"),
		observability.F("customer_id", customerID),
	)

	ctx, span := s.tel.Tracer().Start(ctx, "UC.Checkout",
		attribute.String("use_case", "shop.checkout"),
		attribute.String("customer_id", customerID),
	)
	start := time.Now()
	linesMetric := s.tel.Metrics().Counter(observability.MCheckoutLines)

	defer func() {
		if span != nil {
			if err != nil && !errors.Is(err, ErrNothingPurchased) {
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			span.End()
		}
		logger.Info("checkout_finished",
			observability.F("duration_ms", time.Since(start).Milliseconds()),
		)
	}()

	c := s.carts.ForCustomer(customerID)
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	result := &CheckoutResult{ReceiptID: s.idGen.NewID()}

	// Lines() is a stable snapshot; removals below cannot disturb the pass.
	for _, line := range c.Lines() {
		product, lookupErr := s.catalog.Get(line.ProductID)
		if lookupErr != nil {
			result.Failed = append(result.Failed, FailedLine{
				ProductID: line.ProductID,
				Name:      removedProductName,
				Quantity:  line.Quantity,
				Reason:    FailNoLongerSold,
			})
			linesMetric.Add(1, observability.L("result", "no_longer_sold"))
			continue
		}
		if product.Stock < line.Quantity {
			result.Failed = append(result.Failed, FailedLine{
				ProductID: line.ProductID,
				Name:      product.Name,
				Quantity:  line.Quantity,
				Reason:    FailInsufficientStock,
				Available: product.Stock,
			})
			linesMetric.Add(1, observability.L("result", "insufficient_stock"))
			continue
		}
		if _, adjustErr := s.catalog.AdjustStock(line.ProductID, -line.Quantity); adjustErr != nil {
			// Double-check against the rejecting adjustment; a failure here
			// means stock moved between the read and the write.
			result.Failed = append(result.Failed, FailedLine{
				ProductID: line.ProductID,
				Name:      product.Name,
				Quantity:  line.Quantity,
				Reason:    FailInsufficientStock,
				Available: product.Stock,
			})
			linesMetric.Add(1, observability.L("result", "insufficient_stock"))
			continue
		}
		cost := product.Price.Mul(line.Quantity)
		result.Total = result.Total.Add(cost)
		result.Purchased = append(result.Purchased, PurchasedLine{
			ProductID: line.ProductID,
			Name:      product.Name,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
			Cost:      cost,
		})
		linesMetric.Add(1, observability.L("result", "purchased"))
	}

	// Failed lines stay in the cart unchanged, preserving intent for retry.
	for _, purchased := range result.Purchased {
		c.Remove(purchased.ProductID)
	}

	if len(result.Purchased) == 0 {
		logger.Warn("checkout_all_lines_failed",
			observability.F("failed_lines", len(result.Failed)),
		)
		return result, ErrNothingPurchased
	}

	logger.Info("checkout_complete",
		observability.F("receipt_id", result.ReceiptID),
		observability.F("purchased_lines", len(result.Purchased)),
		observability.F("failed_lines", len(result.Failed)),
		observability.F("total", result.Total.String()),
	)
	return result, nil
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of fractional digits kept for money amounts.
const CurrencyPlaces = 2

// RoundCurrency rounds an amount to currency precision using banker's rounding.
func RoundCurrency(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundBank(CurrencyPlaces)
}

// LineItem pairs a product with a quantity. Name and UnitPrice are captured
// when the product is added, so later catalog edits do not reach it.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotals sums the line totals and applies taxRate. Every figure is
// rounded to currency precision; an empty list yields zeros.
func ComputeTotals(items []LineItem, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Total())
	}
	subtotal = RoundCurrency(subtotal)
	tax := RoundCurrency(subtotal.Mul(taxRate))

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    RoundCurrency(subtotal.Add(tax)),
	}
}

// Sale is the record of a completed transaction. It is created once by the
// cart and never modified afterwards.
type Sale struct {
	ID            string          `json:"id"`
	ReceiptNumber string          `json:"receipt_number"`
	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ItemCount returns the number of units sold across all lines.
func (s Sale) ItemCount() int {
	n := 0
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}

func (s Sale) Totals() Totals {
	return Totals{Subtotal: s.Subtotal, Tax: s.Tax, Total: s.Total}
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	Barcode    string          `json:"barcode,omitempty"`
	SKU        string          `json:"sku,omitempty"`
	CategoryID string          `json:"category_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// InStock reports whether at least one unit can be sold.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// StockValue is the shelf value of the product: price times units on hand.
func (p Product) StockValue() decimal.Decimal {
	if p.Stock <= 0 {
		return decimal.Zero
	}
	return p.Price.Mul(decimal.NewFromInt(int64(p.Stock)))
}

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

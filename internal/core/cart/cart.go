// Package cart holds the in-progress sale of a single register.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/port"
)

// DefaultTaxRate is the sales tax used by DefaultConfig.
var DefaultTaxRate = decimal.RequireFromString("0.14")

type Config struct {
	TaxRate   decimal.Decimal
	Clock     func() time.Time
	NewSaleID func() string
}

func DefaultConfig() Config {
	return Config{
		TaxRate:   DefaultTaxRate,
		Clock:     time.Now,
		NewSaleID: uuid.NewString,
	}
}

// Cart is owned by one caller at a time and is not safe for concurrent use.
type Cart struct {
	cfg   Config
	lines []domain.LineItem
}

// New builds an empty cart. TaxRate is used as given, so callers normally
// start from DefaultConfig; nil Clock or NewSaleID fall back to the defaults.
func New(cfg Config) *Cart {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NewSaleID == nil {
		cfg.NewSaleID = uuid.NewString
	}
	return &Cart{cfg: cfg}
}

func (c *Cart) TaxRate() decimal.Decimal {
	return c.cfg.TaxRate
}

// AddItem puts one unit of the product into the cart, merging with an
// existing line for the same product. Only products with no stock left are
// refused; the quantity already in the cart is not compared to stock.
func (c *Cart) AddItem(ctx context.Context, productID string, catalog port.Catalog) error {
	product, err := catalog.FindByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("find product %s: %w", productID, err)
	}
	if product == nil {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	if !product.InStock() {
		return fmt.Errorf("%w: %s", domain.ErrOutOfStock, productID)
	}

	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].Quantity++
			return nil
		}
	}

	c.lines = append(c.lines, domain.LineItem{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  1,
	})
	return nil
}

// SetQuantity overwrites the quantity of a line. Stock is not re-checked;
// a quantity of zero or less removes the line.
func (c *Cart) SetQuantity(index, quantity int) error {
	if !c.validIndex(index) {
		return fmt.Errorf("%w: %d", domain.ErrInvalidIndex, index)
	}
	if quantity <= 0 {
		return c.RemoveItem(index)
	}
	c.lines[index].Quantity = quantity
	return nil
}

func (c *Cart) RemoveItem(index int) error {
	if !c.validIndex(index) {
		return fmt.Errorf("%w: %d", domain.ErrInvalidIndex, index)
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return nil
}

func (c *Cart) ComputeTotals() domain.Totals {
	return domain.ComputeTotals(c.lines, c.cfg.TaxRate)
}

// Finalize turns the cart into a Sale and empties it. When the receipt
// number cannot be obtained the cart is left untouched.
func (c *Cart) Finalize(ctx context.Context, receipts port.ReceiptNumberGenerator) (domain.Sale, error) {
	if len(c.lines) == 0 {
		return domain.Sale{}, domain.ErrEmptyCart
	}

	receiptNumber, err := receipts.NextReceiptNumber(ctx)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("next receipt number: %w", err)
	}

	items := c.Lines()
	totals := domain.ComputeTotals(items, c.cfg.TaxRate)

	sale := domain.Sale{
		ID:            c.cfg.NewSaleID(),
		ReceiptNumber: receiptNumber,
		Items:         items,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
		TaxRate:       c.cfg.TaxRate,
		CreatedAt:     c.cfg.Clock(),
	}

	c.Reset()
	return sale, nil
}

// Restore puts back the lines of a sale that could not be completed,
// replacing whatever the cart holds.
func (c *Cart) Restore(items []domain.LineItem) {
	c.lines = make([]domain.LineItem, len(items))
	copy(c.lines, items)
}

func (c *Cart) Reset() {
	c.lines = nil
}

// Lines returns a copy of the current lines.
func (c *Cart) Lines() []domain.LineItem {
	out := make([]domain.LineItem, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) validIndex(index int) bool {
	return index >= 0 && index < len(c.lines)
}

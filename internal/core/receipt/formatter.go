// Package receipt turns finalized sales into printable receipts and export
// documents. All functions are pure; printing and downloading belong to the
// caller.
package receipt

import (
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rl1809/pos-register/internal/core/domain"
)

var ErrUnknownLayout = errors.New("unknown receipt layout")

// Layout selects paper width and type size. It never changes the figures.
type Layout int

const (
	LayoutNormal Layout = iota
	LayoutThermal
)

func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return LayoutNormal, nil
	case "thermal":
		return LayoutThermal, nil
	default:
		return LayoutNormal, fmt.Errorf("%w: %q", ErrUnknownLayout, s)
	}
}

func (l Layout) String() string {
	if l == LayoutThermal {
		return "thermal"
	}
	return "normal"
}

type layoutStyle struct {
	width       string
	titleSize   string
	itemSize    string
	textColumns int
}

func (l Layout) style() layoutStyle {
	if l == LayoutThermal {
		return layoutStyle{width: "80mm", titleSize: "16px", itemSize: "11px", textColumns: 42}
	}
	return layoutStyle{width: "210mm", titleSize: "24px", itemSize: "13px", textColumns: 64}
}

type Currency struct {
	Code        string
	Symbol      string
	SymbolAfter bool
	Locale      language.Tag
}

// EGP is the Egyptian pound with Latin digits and the symbol after the amount.
var EGP = Currency{
	Code:        "EGP",
	Symbol:      "ج.م",
	SymbolAfter: true,
	Locale:      language.MustParse("en-EG"),
}

type Config struct {
	StoreName string
	Currency  Currency
	Location  *time.Location
	Footer    []string
	// Direction is the HTML text direction, "ltr" or "rtl".
	Direction string
}

func DefaultConfig() Config {
	return Config{
		StoreName: "My Store",
		Currency:  EGP,
		Location:  time.UTC,
		Footer:    []string{"Thank you for shopping with us"},
		Direction: "ltr",
	}
}

type Formatter struct {
	cfg        Config
	symbol     string
	decimalSep string
	printer    *message.Printer
	tmpl       *template.Template
}

func NewFormatter(cfg Config) (*Formatter, error) {
	unit, err := currency.ParseISO(cfg.Currency.Code)
	if err != nil {
		return nil, fmt.Errorf("currency %q: %w", cfg.Currency.Code, err)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Direction != "rtl" {
		cfg.Direction = "ltr"
	}

	symbol := cfg.Currency.Symbol
	if symbol == "" {
		symbol = unit.String()
	}

	tmpl, err := template.New("receipt").Parse(receiptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse receipt template: %w", err)
	}

	printer := message.NewPrinter(cfg.Currency.Locale)

	return &Formatter{
		cfg:        cfg,
		symbol:     symbol,
		decimalSep: decimalSeparator(printer),
		printer:    printer,
		tmpl:       tmpl,
	}, nil
}

// FormatCurrency renders an amount with two decimals, the locale's digit
// grouping and the configured symbol. Receipts and reports use it for every
// amount they print. The whole part is formatted as an int64, so amounts are
// exact up to about 9.2e18.
func (f *Formatter) FormatCurrency(amount decimal.Decimal) string {
	rounded := domain.RoundCurrency(amount)
	whole := rounded.Abs().Truncate(0)
	cents := rounded.Abs().Sub(whole).Shift(domain.CurrencyPlaces).IntPart()

	number := f.printer.Sprintf("%d", whole.IntPart()) + f.decimalSep +
		f.printer.Sprintf("%d", cents/10) + f.printer.Sprintf("%d", cents%10)
	if rounded.IsNegative() {
		number = "-" + number
	}

	if f.cfg.Currency.SymbolAfter {
		return number + " " + f.symbol
	}
	return f.symbol + " " + number
}

// decimalSeparator reads the locale's separator from a formatted 1.5.
func decimalSeparator(p *message.Printer) string {
	r := []rune(p.Sprintf("%.1f", 1.5))
	if len(r) < 3 {
		return "."
	}
	return string(r[1 : len(r)-1])
}

func (f *Formatter) StoreName() string {
	return f.cfg.StoreName
}

func (f *Formatter) taxLabel(rate decimal.Decimal) string {
	return fmt.Sprintf("Tax (%s%%)", rate.Mul(decimal.NewFromInt(100)).String())
}

func validateSale(sale domain.Sale) error {
	if len(sale.Items) == 0 {
		return fmt.Errorf("%w: sale %s has no items", domain.ErrInvalidSale, sale.ID)
	}
	return nil
}

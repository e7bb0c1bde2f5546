package receipt

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rl1809/pos-register/internal/core/domain"
)

//go:embed templates/receipt.html.tmpl
var receiptTemplate string

type receiptLine struct {
	Name      string
	UnitPrice string
	Quantity  int
	Total     string
}

type receiptView struct {
	Direction     string
	Width         string
	TitleSize     string
	ItemSize      string
	StoreName     string
	ReceiptNumber string
	Date          string
	Time          string
	Items         []receiptLine
	Subtotal      string
	TaxLabel      string
	Tax           string
	Total         string
	Footer        []string
}

func (f *Formatter) view(sale domain.Sale, layout Layout) receiptView {
	style := layout.style()
	created := sale.CreatedAt.In(f.cfg.Location)

	lines := make([]receiptLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		lines = append(lines, receiptLine{
			Name:      item.Name,
			UnitPrice: f.FormatCurrency(item.UnitPrice),
			Quantity:  item.Quantity,
			Total:     f.FormatCurrency(item.Total()),
		})
	}

	return receiptView{
		Direction:     f.cfg.Direction,
		Width:         style.width,
		TitleSize:     style.titleSize,
		ItemSize:      style.itemSize,
		StoreName:     f.cfg.StoreName,
		ReceiptNumber: sale.ReceiptNumber,
		Date:          created.Format("2006-01-02"),
		Time:          created.Format("15:04:05"),
		Items:         lines,
		Subtotal:      f.FormatCurrency(sale.Subtotal),
		TaxLabel:      f.taxLabel(sale.TaxRate),
		Tax:           f.FormatCurrency(sale.Tax),
		Total:         f.FormatCurrency(sale.Total),
		Footer:        f.cfg.Footer,
	}
}

// RenderReceipt produces a self-contained HTML document ready for a print
// dialog.
func (f *Formatter) RenderReceipt(sale domain.Sale, layout Layout) (string, error) {
	if err := validateSale(sale); err != nil {
		return "", err
	}

	var b strings.Builder
	if err := f.tmpl.Execute(&b, f.view(sale, layout)); err != nil {
		return "", fmt.Errorf("render receipt %s: %w", sale.ReceiptNumber, err)
	}
	return b.String(), nil
}

// RenderText produces a fixed-width receipt for character printers.
func (f *Formatter) RenderText(sale domain.Sale, layout Layout) (string, error) {
	if err := validateSale(sale); err != nil {
		return "", err
	}

	v := f.view(sale, layout)
	width := layout.style().textColumns

	var lines []string
	lines = append(lines, strings.Repeat("=", width))
	lines = append(lines, center(v.StoreName, width))
	lines = append(lines, strings.Repeat("=", width))
	lines = append(lines, "Receipt No: "+v.ReceiptNumber)
	lines = append(lines, fmt.Sprintf("Date: %s %s", v.Date, v.Time))
	lines = append(lines, strings.Repeat("-", width))

	for _, item := range v.Items {
		lines = append(lines, truncate(item.Name, width))
		lines = append(lines, spread(fmt.Sprintf("  %d x %s", item.Quantity, item.UnitPrice), item.Total, width))
	}

	lines = append(lines, strings.Repeat("-", width))
	lines = append(lines, spread("Subtotal", v.Subtotal, width))
	lines = append(lines, spread(v.TaxLabel, v.Tax, width))
	lines = append(lines, spread("TOTAL", v.Total, width))
	lines = append(lines, strings.Repeat("=", width))
	for _, footer := range v.Footer {
		lines = append(lines, center(footer, width))
	}

	return strings.Join(lines, "\n") + "\n", nil
}

func spread(left, right string, width int) string {
	gap := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return strings.Repeat(" ", (width-n)/2) + s
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}

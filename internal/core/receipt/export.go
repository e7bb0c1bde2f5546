package receipt

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rl1809/pos-register/internal/core/domain"
)

var (
	ErrUnknownFormat = errors.New("unknown export format")
	ErrInvalidExport = errors.New("invalid export document")
)

type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatExcel Format = "xls"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "xls", "excel":
		return FormatExcel, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatExcel:
		return "application/vnd.ms-excel"
	default:
		return "application/octet-stream"
	}
}

var exportColumns = []string{"name", "price", "quantity", "total"}

// Document is an export ready to be offered as a download.
type Document struct {
	FileName    string
	ContentType string
	Body        []byte
}

func Export(format Format, items []domain.LineItem, baseName string) (Document, error) {
	if baseName == "" {
		baseName = "export"
	}

	var body string
	var err error
	switch format {
	case FormatCSV:
		body, err = ExportDelimited(items)
	case FormatJSON:
		body, err = ExportStructured(items)
	case FormatExcel:
		body = ExportTabular(items)
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return Document{}, err
	}

	return Document{
		FileName:    baseName + "." + string(format),
		ContentType: format.ContentType(),
		Body:        []byte(body),
	}, nil
}

// ExportDelimited writes a header row and one comma separated row per item.
// Fields containing commas, quotes or newlines are quoted.
func ExportDelimited(items []domain.LineItem) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportColumns); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, item := range items {
		record := []string{
			item.Name,
			item.UnitPrice.String(),
			strconv.Itoa(item.Quantity),
			item.Total().String(),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv row %q: %w", item.Name, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return buf.String(), nil
}

type structuredItem struct {
	ProductID string      `json:"product_id,omitempty"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Quantity  int         `json:"quantity"`
	Total     json.Number `json:"total"`
}

// ExportStructured writes the items as an indented JSON array.
func ExportStructured(items []domain.LineItem) (string, error) {
	rows := make([]structuredItem, 0, len(items))
	for _, item := range items {
		rows = append(rows, structuredItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     json.Number(item.UnitPrice.String()),
			Quantity:  item.Quantity,
			Total:     json.Number(item.Total().String()),
		})
	}

	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal items: %w", err)
	}
	return string(out), nil
}

// ParseStructured reads a document produced by ExportStructured back into
// line items. The total column is derived and therefore ignored.
func ParseStructured(data string) ([]domain.LineItem, error) {
	var rows []structuredItem
	if err := json.Unmarshal([]byte(data), &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExport, err)
	}

	items := make([]domain.LineItem, 0, len(rows))
	for i, row := range rows {
		price, err := decimal.NewFromString(row.Price.String())
		if err != nil {
			return nil, fmt.Errorf("%w: row %d price %q", ErrInvalidExport, i, row.Price)
		}
		if row.Quantity < 1 {
			return nil, fmt.Errorf("%w: row %d quantity %d", ErrInvalidExport, i, row.Quantity)
		}
		items = append(items, domain.LineItem{
			ProductID: row.ProductID,
			Name:      row.Name,
			UnitPrice: price,
			Quantity:  row.Quantity,
		})
	}
	return items, nil
}

// ExportTabular writes an HTML table that spreadsheet programs open directly.
func ExportTabular(items []domain.LineItem) string {
	var b strings.Builder
	b.WriteString("<table>\n<tr>")
	for _, col := range exportColumns {
		b.WriteString("<th>" + col + "</th>")
	}
	b.WriteString("</tr>\n")

	for _, item := range items {
		b.WriteString("<tr>")
		b.WriteString("<td>" + html.EscapeString(item.Name) + "</td>")
		b.WriteString("<td>" + item.UnitPrice.String() + "</td>")
		b.WriteString("<td>" + strconv.Itoa(item.Quantity) + "</td>")
		b.WriteString("<td>" + item.Total().String() + "</td>")
		b.WriteString("</tr>\n")
	}

	b.WriteString("</table>\n")
	return b.String()
}

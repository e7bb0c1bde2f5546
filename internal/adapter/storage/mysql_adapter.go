package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/pos-register/internal/core/domain"
)

//go:embed schema.sql
var schemaSQL string

// MySQLAdapter stores the catalog and the sales journal. The DSN must set
// parseTime=true.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// Migrate creates missing tables.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const productColumns = `id, name, price, stock, barcode, sku, category_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Barcode, &p.SKU, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (m *MySQLAdapter) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (m *MySQLAdapter) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(m.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product %s: %w", id, err)
	}
	return &p, nil
}

func (m *MySQLAdapter) ListAll(ctx context.Context) ([]domain.Product, error) {
	return m.queryProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
}

func (m *MySQLAdapter) ListProductsByCategory(ctx context.Context, categoryID string) ([]domain.Product, error) {
	return m.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE category_id = ? ORDER BY name, id`, categoryID)
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Price, p.Stock, p.Barcode, p.SKU, p.CategoryID,
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, price = ?, stock = ?, barcode = ?, sku = ?, category_id = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Price, p.Stock, p.Barcode, p.SKU, p.CategoryID, p.UpdatedAt.UTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	// MySQL reports zero affected rows when nothing changed, so confirm existence.
	rows, _ := result.RowsAffected()
	if rows == 0 {
		existing, err := m.FindByID(ctx, p.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrProductNotFound
		}
	}
	return nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (m *MySQLAdapter) CreateCategory(ctx context.Context, c domain.Category) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, created_at)
		VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query category: %w", err)
	}
	return &c, nil
}

func (m *MySQLAdapter) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, description, created_at FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateSale writes the sale and its lines and deducts the sold units from
// product stock in one transaction. Lines for products deleted since the
// sale are kept; their stock update is a no-op.
func (m *MySQLAdapter) CreateSale(ctx context.Context, sale domain.Sale) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, receipt_number, subtotal, tax, total, tax_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.ReceiptNumber, sale.Subtotal, sale.Tax, sale.Total, sale.TaxRate,
		sale.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}

	for i, item := range sale.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, line_no, product_id, name, unit_price, quantity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sale.ID, i, item.ProductID, item.Name, item.UnitPrice, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert sale line %d: %w", i, err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - ?, updated_at = ?
			WHERE id = ?`,
			item.Quantity, sale.CreatedAt.UTC(), item.ProductID,
		)
		if err != nil {
			return fmt.Errorf("update stock %s: %w", item.ProductID, err)
		}
	}

	return tx.Commit()
}

const saleColumns = `id, receipt_number, subtotal, tax, total, tax_rate, created_at`

func (m *MySQLAdapter) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	sales, err := m.querySales(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, nil
	}
	return &sales[0], nil
}

func (m *MySQLAdapter) ListSales(ctx context.Context, from, to time.Time) ([]domain.Sale, error) {
	return m.querySales(ctx, `
		SELECT `+saleColumns+` FROM sales
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at, id`, from.UTC(), to.UTC())
}

func (m *MySQLAdapter) ListRecentSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	return m.querySales(ctx, `
		SELECT `+saleColumns+` FROM sales
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
}

func (m *MySQLAdapter) querySales(ctx context.Context, query string, args ...any) ([]domain.Sale, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}

	var sales []domain.Sale
	index := make(map[string]int)
	for rows.Next() {
		var s domain.Sale
		if err := rows.Scan(&s.ID, &s.ReceiptNumber, &s.Subtotal, &s.Tax, &s.Total, &s.TaxRate, &s.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		index[s.ID] = len(sales)
		sales = append(sales, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales: %w", err)
	}

	if err := m.attachLines(ctx, sales, index); err != nil {
		return nil, err
	}
	return sales, nil
}

func (m *MySQLAdapter) attachLines(ctx context.Context, sales []domain.Sale, index map[string]int) error {
	if len(sales) == 0 {
		return nil
	}

	ids := make([]any, 0, len(sales))
	for _, s := range sales {
		ids = append(ids, s.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := m.db.QueryContext(ctx, `
		SELECT sale_id, product_id, name, unit_price, quantity
		FROM sale_lines
		WHERE sale_id IN (`+placeholders+`)
		ORDER BY sale_id, line_no`, ids...)
	if err != nil {
		return fmt.Errorf("query sale lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var saleID string
		var item domain.LineItem
		if err := rows.Scan(&saleID, &item.ProductID, &item.Name, &item.UnitPrice, &item.Quantity); err != nil {
			return fmt.Errorf("scan sale line: %w", err)
		}
		i := index[saleID]
		sales[i].Items = append(sales[i].Items, item)
	}
	return rows.Err()
}

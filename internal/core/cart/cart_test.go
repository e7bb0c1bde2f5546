package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/port"
)

type fakeCatalog struct {
	products map[string]domain.Product
	err      error
}

func newFakeCatalog(products ...domain.Product) *fakeCatalog {
	c := &fakeCatalog{products: make(map[string]domain.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (f *fakeCatalog) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeCatalog) ListAll(ctx context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

var fixedNow = time.Date(2026, 10, 16, 14, 30, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		TaxRate:   DefaultTaxRate,
		Clock:     func() time.Time { return fixedNow },
		NewSaleID: func() string { return "sale-1" },
	}
}

func staticReceipt(number string) port.ReceiptNumberGenerator {
	return port.ReceiptNumberFunc(func(ctx context.Context) (string, error) {
		return number, nil
	})
}

func product(id, name, price string, stock int) domain.Product {
	return domain.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

func sampleCatalog() *fakeCatalog {
	return newFakeCatalog(
		product("a", "A", "50", 100),
		product("b", "B", "100", 50),
		product("empty", "Sold Out", "10", 0),
		product("one", "Last Unit", "5", 1),
	)
}

func TestAddItem_NewLine(t *testing.T) {
	c := New(testConfig())

	err := c.AddItem(context.Background(), "a", sampleCatalog())
	require.NoError(t, err)

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "A", lines[0].Name)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.True(t, lines[0].UnitPrice.Equal(decimal.NewFromInt(50)))
}

func TestAddItem_IncrementsExistingLine(t *testing.T) {
	c := New(testConfig())
	catalog := sampleCatalog()

	for n := 1; n <= 5; n++ {
		require.NoError(t, c.AddItem(context.Background(), "a", catalog))

		line := c.Lines()[0]
		assert.Equal(t, n, line.Quantity)
		assert.True(t, line.Total().Equal(decimal.NewFromInt(int64(50*n))), "line total after %d adds", n)
	}
	assert.Equal(t, 1, c.Len())
}

func TestAddItem_ProductNotFound(t *testing.T) {
	c := New(testConfig())

	err := c.AddItem(context.Background(), "missing", sampleCatalog())
	assert.True(t, errors.Is(err, domain.ErrProductNotFound), "got %v", err)
	assert.Equal(t, 0, c.Len())
}

func TestAddItem_OutOfStock(t *testing.T) {
	c := New(testConfig())

	err := c.AddItem(context.Background(), "empty", sampleCatalog())
	assert.True(t, errors.Is(err, domain.ErrOutOfStock), "got %v", err)
	assert.Equal(t, 0, c.Len())
}

func TestAddItem_RepeatedAddPassesStock(t *testing.T) {
	c := New(testConfig())
	catalog := sampleCatalog()

	require.NoError(t, c.AddItem(context.Background(), "one", catalog))
	require.NoError(t, c.AddItem(context.Background(), "one", catalog))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestRestore(t *testing.T) {
	c := New(testConfig())
	catalog := sampleCatalog()
	require.NoError(t, c.AddItem(context.Background(), "a", catalog))
	require.NoError(t, c.AddItem(context.Background(), "b", catalog))
	items := c.Lines()

	c.Reset()
	c.Restore(items)
	items[0].Quantity = 99

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "a", lines[0].ProductID)
	assert.Equal(t, 1, lines[0].Quantity)
}

func TestAddItem_CatalogError(t *testing.T) {
	c := New(testConfig())
	catalog := sampleCatalog()
	catalog.err = errors.New("connection refused")

	err := c.AddItem(context.Background(), "a", catalog)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrProductNotFound))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSetQuantity(t *testing.T) {
	c := New(testConfig())
	require.NoError(t, c.AddItem(context.Background(), "a", sampleCatalog()))

	require.NoError(t, c.SetQuantity(0, 7))
	assert.Equal(t, 7, c.Lines()[0].Quantity)
}

func TestSetQuantity_IsPermissiveAboutStock(t *testing.T) {
	c := New(testConfig())
	require.NoError(t, c.AddItem(context.Background(), "one", sampleCatalog()))

	require.NoError(t, c.SetQuantity(0, 3))
	assert.Equal(t, 3, c.Lines()[0].Quantity)
}

func TestSetQuantity_ZeroOrNegativeRemoves(t *testing.T) {
	for _, q := range []int{0, -2} {
		c := New(testConfig())
		catalog := sampleCatalog()
		require.NoError(t, c.AddItem(context.Background(), "a", catalog))
		require.NoError(t, c.AddItem(context.Background(), "b", catalog))

		require.NoError(t, c.SetQuantity(0, q))

		lines := c.Lines()
		require.Len(t, lines, 1)
		assert.Equal(t, "b", lines[0].ProductID)
	}
}

func TestSetQuantity_InvalidIndex(t *testing.T) {
	c := New(testConfig())
	require.NoError(t, c.AddItem(context.Background(), "a", sampleCatalog()))

	for _, idx := range []int{-1, 1, 10} {
		err := c.SetQuantity(idx, 2)
		assert.True(t, errors.Is(err, domain.ErrInvalidIndex), "index %d: got %v", idx, err)
	}
	assert.Equal(t, 1, c.Lines()[0].Quantity)
}

func TestRemoveItem_PreservesOrder(t *testing.T) {
	c := New(testConfig())
	catalog := newFakeCatalog(
		product("1", "One", "1", 5),
		product("2", "Two", "2", 5),
		product("3", "Three", "3", 5),
	)
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, c.AddItem(context.Background(), id, catalog))
	}

	require.NoError(t, c.RemoveItem(1))

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "1", lines[0].ProductID)
	assert.Equal(t, "3", lines[1].ProductID)
}

func TestRemoveItem_InvalidIndexLeavesCartUnchanged(t *testing.T) {
	c := New(testConfig())
	require.NoError(t, c.AddItem(context.Background(), "a", sampleCatalog()))
	before := c.Lines()

	err := c.RemoveItem(3)

	assert.True(t, errors.Is(err, domain.ErrInvalidIndex))
	assert.Equal(t, before, c.Lines())
}

func TestComputeTotals_Empty(t *testing.T) {
	totals := New(testConfig()).ComputeTotals()

	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Tax.IsZero())
	assert.True(t, totals.Total.IsZero())
}

func TestComputeTotals_Example(t *testing.T) {
	c := New(testConfig())
	catalog := sampleCatalog()
	require.NoError(t, c.AddItem(context.Background(), "a", catalog))
	require.NoError(t, c.AddItem(context.Background(), "a", catalog))
	require.NoError(t, c.AddItem(context.Background(), "b", catalog))

	totals := c.ComputeTotals()

	assert.Equal(t, "200.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "28.00", totals.Tax.StringFixed(2))
	assert.Equal(t, "228.00", totals.Total.StringFixed(2))
}

func TestComputeTotals_TaxProperty(t *testing.T) {
	c := New(testConfig())
	catalog := newFakeCatalog(
		product("x", "X", "19.99", 100),
		product("y", "Y", "0.35", 100),
		product("z", "Z", "7.125", 100),
	)
	rate := decimal.RequireFromString("0.14")

	for i := 0; i < 25; i++ {
		id := []string{"x", "y", "z"}[i%3]
		require.NoError(t, c.AddItem(context.Background(), id, catalog))

		totals := c.ComputeTotals()
		assert.True(t, totals.Tax.Equal(totals.Subtotal.Mul(rate).RoundBank(2)), "tax at step %d", i)
		assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.Tax).RoundBank(2)), "total at step %d", i)
	}
}

func TestComputeTotals_CustomRate(t *testing.T) {
	cfg := testConfig()
	cfg.TaxRate = decimal.Zero
	c := New(cfg)
	require.NoError(t, c.AddItem(context.Background(), "b", sampleCatalog()))

	totals := c.ComputeTotals()
	assert.True(t, totals.Tax.IsZero())
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(100)))
}

func TestFinalize_EmptyCart(t *testing.T) {
	c := New(testConfig())

	_, err := c.Finalize(context.Background(), staticReceipt("R-1"))
	assert.True(t, errors.Is(err, domain.ErrEmptyCart))
}

func TestFinalize_SnapshotsAndClears(t *testing.T) {
	c := New(testConfig())
	catalog := sampleCatalog()
	require.NoError(t, c.AddItem(context.Background(), "a", catalog))
	require.NoError(t, c.AddItem(context.Background(), "a", catalog))
	require.NoError(t, c.AddItem(context.Background(), "b", catalog))
	snapshot := c.Lines()

	sale, err := c.Finalize(context.Background(), staticReceipt("R-0001"))
	require.NoError(t, err)

	assert.Equal(t, "sale-1", sale.ID)
	assert.Equal(t, "R-0001", sale.ReceiptNumber)
	assert.Equal(t, snapshot, sale.Items)
	assert.Equal(t, "200.00", sale.Subtotal.StringFixed(2))
	assert.Equal(t, "28.00", sale.Tax.StringFixed(2))
	assert.Equal(t, "228.00", sale.Total.StringFixed(2))
	assert.True(t, sale.TaxRate.Equal(DefaultTaxRate))
	assert.Equal(t, fixedNow, sale.CreatedAt)
	assert.Equal(t, 0, c.Len())
}

func TestFinalize_SnapshotIsolation(t *testing.T) {
	c := New(testConfig())
	catalog := sampleCatalog()
	require.NoError(t, c.AddItem(context.Background(), "a", catalog))

	sale, err := c.Finalize(context.Background(), staticReceipt("R-1"))
	require.NoError(t, err)

	require.NoError(t, c.AddItem(context.Background(), "b", catalog))
	require.NoError(t, c.SetQuantity(0, 9))

	require.Len(t, sale.Items, 1)
	assert.Equal(t, "a", sale.Items[0].ProductID)
	assert.Equal(t, 1, sale.Items[0].Quantity)
	assert.Equal(t, "57.00", sale.Total.StringFixed(2))
}

func TestFinalize_GeneratorErrorKeepsCart(t *testing.T) {
	c := New(testConfig())
	require.NoError(t, c.AddItem(context.Background(), "a", sampleCatalog()))

	failing := port.ReceiptNumberFunc(func(ctx context.Context) (string, error) {
		return "", errors.New("sequence unavailable")
	})

	_, err := c.Finalize(context.Background(), failing)
	require.Error(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestLines_ReturnsCopy(t *testing.T) {
	c := New(testConfig())
	require.NoError(t, c.AddItem(context.Background(), "a", sampleCatalog()))

	lines := c.Lines()
	lines[0].Quantity = 99

	assert.Equal(t, 1, c.Lines()[0].Quantity)
}

func TestReset(t *testing.T) {
	c := New(testConfig())
	require.NoError(t, c.AddItem(context.Background(), "a", sampleCatalog()))

	c.Reset()
	c.Reset()

	assert.Equal(t, 0, c.Len())
	assert.True(t, c.ComputeTotals().Total.IsZero())
}

func TestNew_DefaultsClockAndID(t *testing.T) {
	c := New(Config{TaxRate: DefaultTaxRate})
	require.NoError(t, c.AddItem(context.Background(), "a", sampleCatalog()))

	sale, err := c.Finalize(context.Background(), staticReceipt("R-9"))
	require.NoError(t, err)
	assert.NotEmpty(t, sale.ID)
	assert.False(t, sale.CreatedAt.IsZero())
}

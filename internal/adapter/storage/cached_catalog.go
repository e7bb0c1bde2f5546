package storage

import (
	"context"
	"fmt"

	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/port"
)

// CachedCatalog serves products from the catalog with stock taken from the
// cache, which runs ahead of the database while sales wait in the queue.
type CachedCatalog struct {
	catalog port.Catalog
	stock   port.StockReader
}

func NewCachedCatalog(catalog port.Catalog, stock port.StockReader) *CachedCatalog {
	return &CachedCatalog{catalog: catalog, stock: stock}
}

func (c *CachedCatalog) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := c.catalog.FindByID(ctx, id)
	if err != nil || p == nil {
		return p, err
	}
	if err := c.overlay(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *CachedCatalog) ListAll(ctx context.Context) ([]domain.Product, error) {
	products, err := c.catalog.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if err := c.overlay(ctx, &products[i]); err != nil {
			return nil, err
		}
	}
	return products, nil
}

func (c *CachedCatalog) overlay(ctx context.Context, p *domain.Product) error {
	stock, found, err := c.stock.GetStock(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("cached stock %s: %w", p.ID, err)
	}
	if found {
		p.Stock = stock
	}
	return nil
}

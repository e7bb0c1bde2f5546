package port

import (
	"context"
	"time"

	"github.com/rl1809/pos-register/internal/core/domain"
)

// Catalog is the read side of the product store the cart sells from.
type Catalog interface {
	// FindByID returns nil, nil when the product does not exist
	FindByID(ctx context.Context, id string) (*domain.Product, error)

	ListAll(ctx context.Context) ([]domain.Product, error)
}

type CatalogRepository interface {
	Catalog

	CreateCategory(ctx context.Context, category domain.Category) error

	// GetCategory returns nil, nil when the category does not exist
	GetCategory(ctx context.Context, id string) (*domain.Category, error)

	ListCategories(ctx context.Context) ([]domain.Category, error)

	CreateProduct(ctx context.Context, product domain.Product) error

	// UpdateProduct returns domain.ErrProductNotFound when nothing was updated
	UpdateProduct(ctx context.Context, product domain.Product) error

	// DeleteProduct returns domain.ErrProductNotFound when nothing was deleted
	DeleteProduct(ctx context.Context, id string) error

	ListProductsByCategory(ctx context.Context, categoryID string) ([]domain.Product, error)
}

type SaleRepository interface {
	// CreateSale persists the sale with its lines and deducts the sold units from stock
	CreateSale(ctx context.Context, sale domain.Sale) error

	// GetSale returns nil, nil when the sale does not exist
	GetSale(ctx context.Context, id string) (*domain.Sale, error)

	// ListSales returns sales created in [from, to), oldest first
	ListSales(ctx context.Context, from, to time.Time) ([]domain.Sale, error)

	// ListRecentSales returns up to limit sales, newest first
	ListRecentSales(ctx context.Context, limit int) ([]domain.Sale, error)
}

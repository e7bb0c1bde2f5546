package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/port"
)

type ProductInput struct {
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	Barcode    string          `json:"barcode"`
	SKU        string          `json:"sku"`
	CategoryID string          `json:"category_id"`
}

// ProductUpdate carries the fields to change; nil fields are left alone.
type ProductUpdate struct {
	Name       *string          `json:"name"`
	Price      *decimal.Decimal `json:"price"`
	Stock      *int             `json:"stock"`
	CategoryID *string          `json:"category_id"`
}

// CatalogService manages categories and products. Stock written here is
// mirrored into the cache the checkout decrements.
type CatalogService struct {
	repo   port.CatalogRepository
	cache  port.CacheRepository
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewCatalogService(repo port.CatalogRepository, cache port.CacheRepository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		repo:   repo,
		cache:  cache,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *CatalogService) AddCategory(ctx context.Context, name, description string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: name is required", domain.ErrInvalidCategory)
	}

	category := domain.Category{
		ID:          s.newID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return domain.Category{}, fmt.Errorf("create category: %w", err)
	}

	s.logger.Info("category added", zap.String("category_id", category.ID), zap.String("name", category.Name))
	return category, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func validateProduct(p domain.Product) error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price %s is negative", domain.ErrInvalidProduct, p.Price)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: stock %d is negative", domain.ErrInvalidProduct, p.Stock)
	}
	return nil
}

func (s *CatalogService) requireCategory(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: category is required", domain.ErrInvalidProduct)
	}
	category, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("get category %s: %w", id, err)
	}
	if category == nil {
		return fmt.Errorf("%w: %s", domain.ErrCategoryNotFound, id)
	}
	return nil
}

func (s *CatalogService) AddProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	now := s.now()
	product := domain.Product{
		ID:         s.newID(),
		Name:       strings.TrimSpace(in.Name),
		Price:      domain.RoundCurrency(in.Price),
		Stock:      in.Stock,
		Barcode:    strings.TrimSpace(in.Barcode),
		SKU:        strings.TrimSpace(in.SKU),
		CategoryID: in.CategoryID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := validateProduct(product); err != nil {
		return domain.Product{}, err
	}
	if err := s.requireCategory(ctx, product.CategoryID); err != nil {
		return domain.Product{}, err
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	if err := s.cache.SetStock(ctx, product.ID, product.Stock); err != nil {
		return domain.Product{}, fmt.Errorf("cache stock %s: %w", product.ID, err)
	}

	s.logger.Info("product added", zap.String("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, upd ProductUpdate) (domain.Product, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("find product %s: %w", id, err)
	}
	if existing == nil {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}

	product := *existing
	if upd.Name != nil {
		product.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Price != nil {
		product.Price = domain.RoundCurrency(*upd.Price)
	}
	if upd.Stock != nil {
		product.Stock = *upd.Stock
	}
	if upd.CategoryID != nil && *upd.CategoryID != product.CategoryID {
		if err := s.requireCategory(ctx, *upd.CategoryID); err != nil {
			return domain.Product{}, err
		}
		product.CategoryID = *upd.CategoryID
	}
	if err := validateProduct(product); err != nil {
		return domain.Product{}, err
	}
	product.UpdatedAt = s.now()

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("update product %s: %w", id, err)
	}
	if upd.Stock != nil {
		if err := s.cache.SetStock(ctx, product.ID, product.Stock); err != nil {
			return domain.Product{}, fmt.Errorf("cache stock %s: %w", product.ID, err)
		}
	}

	s.logger.Info("product updated", zap.String("product_id", product.ID))
	return product, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if err := s.cache.DeleteStock(ctx, id); err != nil {
		s.logger.Warn("drop cached stock failed", zap.String("product_id", id), zap.Error(err))
	}

	s.logger.Info("product deleted", zap.String("product_id", id))
	return nil
}

// ListProducts lists the products of one category, or all of them when
// categoryID is empty. Stock reflects sales not yet persisted.
func (s *CatalogService) ListProducts(ctx context.Context, categoryID string) ([]domain.Product, error) {
	var products []domain.Product
	var err error
	if categoryID == "" {
		products, err = s.repo.ListAll(ctx)
	} else {
		products, err = s.repo.ListProductsByCategory(ctx, categoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	for i := range products {
		stock, found, err := s.cache.GetStock(ctx, products[i].ID)
		if err != nil {
			return nil, fmt.Errorf("cached stock %s: %w", products[i].ID, err)
		}
		if found {
			products[i].Stock = stock
		}
	}
	return products, nil
}

// SyncStock copies stored stock levels into the cache. Run it at startup
// before the register accepts sales.
func (s *CatalogService) SyncStock(ctx context.Context) (int, error) {
	products, err := s.repo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	for _, p := range products {
		if err := s.cache.SetStock(ctx, p.ID, p.Stock); err != nil {
			return 0, fmt.Errorf("cache stock %s: %w", p.ID, err)
		}
	}
	return len(products), nil
}

package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rl1809/pos-register/internal/core/domain"
)

// MemoryStore keeps catalog, sales and the stock cache in process memory.
// It serves a single register that runs without MySQL or Redis.
type MemoryStore struct {
	mu         sync.RWMutex
	products   map[string]domain.Product
	categories map[string]domain.Category
	sales      []domain.Sale

	stock       map[string]int
	idempotency map[string]time.Time
	lastSale    *domain.Sale

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:    make(map[string]domain.Product),
		categories:  make(map[string]domain.Category),
		stock:       make(map[string]int),
		idempotency: make(map[string]time.Time),
		now:         time.Now,
	}
}

func cloneSale(s domain.Sale) domain.Sale {
	s.Items = slices.Clone(s.Items)
	return s
}

func sortProducts(products []domain.Product) {
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.ID, b.ID))
	})
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sortProducts(out)
	return out, nil
}

func (s *MemoryStore) CreateCategory(_ context.Context, category domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[category.ID]; ok {
		return fmt.Errorf("category %s already exists", category.ID)
	}
	s.categories[category.ID] = category
	return nil
}

func (s *MemoryStore) GetCategory(_ context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryStore) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Category) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; ok {
		return fmt.Errorf("product %s already exists", product.ID)
	}
	s.products[product.ID] = product
	return nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return domain.ErrProductNotFound
	}
	s.products[product.ID] = product
	return nil
}

func (s *MemoryStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) ListProductsByCategory(_ context.Context, categoryID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Product
	for _, p := range s.products {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	sortProducts(out)
	return out, nil
}

// CreateSale records the sale and deducts the sold units from product stock.
func (s *MemoryStore) CreateSale(_ context.Context, sale domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sales {
		if existing.ID == sale.ID {
			return fmt.Errorf("sale %s already exists", sale.ID)
		}
	}

	for _, item := range sale.Items {
		p, ok := s.products[item.ProductID]
		if !ok {
			continue
		}
		p.Stock -= item.Quantity
		p.UpdatedAt = s.now()
		s.products[item.ProductID] = p
	}
	s.sales = append(s.sales, cloneSale(sale))
	return nil
}

func (s *MemoryStore) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sale := range s.sales {
		if sale.ID == id {
			out := cloneSale(sale)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListSales(_ context.Context, from, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Sale
	for _, sale := range s.sales {
		if !sale.CreatedAt.Before(from) && sale.CreatedAt.Before(to) {
			out = append(out, cloneSale(sale))
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Sale) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) ListRecentSales(_ context.Context, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		out = append(out, cloneSale(sale))
	}
	slices.SortStableFunc(out, func(a, b domain.Sale) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetStock(_ context.Context, productID string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stock, ok := s.stock[productID]
	return stock, ok, nil
}

func (s *MemoryStore) DecrementStock(_ context.Context, productID string, quantity int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stock, ok := s.stock[productID]
	if !ok {
		return 0, false, nil
	}
	stock -= quantity
	s.stock[productID] = stock
	return stock, true, nil
}

func (s *MemoryStore) IncrementStock(_ context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[productID] += quantity
	return nil
}

func (s *MemoryStore) SetStock(_ context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[productID] = quantity
	return nil
}

func (s *MemoryStore) DeleteStock(_ context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stock, productID)
	return nil
}

func (s *MemoryStore) SetIdempotency(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if expires, ok := s.idempotency[key]; ok && now.Before(expires) {
		return false, nil
	}
	s.idempotency[key] = now.Add(idempotencyKeyTTL)
	return true, nil
}

func (s *MemoryStore) ClearIdempotency(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.idempotency, key)
	return nil
}

func (s *MemoryStore) SetLastSale(_ context.Context, sale domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := cloneSale(sale)
	s.lastSale = &last
	return nil
}

func (s *MemoryStore) GetLastSale(_ context.Context) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSale == nil {
		return nil, nil
	}
	last := cloneSale(*s.lastSale)
	return &last, nil
}

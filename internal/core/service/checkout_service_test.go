package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/pos-register/internal/core/cart"
	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/port"
)

// Mock CacheRepository
type mockCacheRepo struct {
	stock          map[string]int
	idempotencySet map[string]bool
	lastSale       *domain.Sale
	failIncrement  bool
	mu             sync.Mutex
}

func newMockCacheRepo(stock map[string]int) *mockCacheRepo {
	if stock == nil {
		stock = make(map[string]int)
	}
	return &mockCacheRepo{
		stock:          stock,
		idempotencySet: make(map[string]bool),
	}
}

func (m *mockCacheRepo) stockOf(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[id]
}

func (m *mockCacheRepo) GetStock(ctx context.Context, productID string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stock[productID]
	return s, ok, nil
}

func (m *mockCacheRepo) DecrementStock(ctx context.Context, productID string, quantity int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stock[productID]
	if !ok {
		return 0, false, nil
	}
	m.stock[productID] = s - quantity
	return s - quantity, true, nil
}

func (m *mockCacheRepo) IncrementStock(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIncrement {
		return errors.New("cache down")
	}
	m.stock[productID] += quantity
	return nil
}

func (m *mockCacheRepo) SetStock(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] = quantity
	return nil
}

func (m *mockCacheRepo) DeleteStock(ctx context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stock, productID)
	return nil
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ClearIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

func (m *mockCacheRepo) SetLastSale(ctx context.Context, sale domain.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSale = &sale
	return nil
}

func (m *mockCacheRepo) GetLastSale(ctx context.Context) (*domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSale, nil
}

type fakeCatalog map[string]domain.Product

func (f fakeCatalog) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	p, ok := f[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f fakeCatalog) ListAll(ctx context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(f))
	for _, p := range f {
		out = append(out, p)
	}
	return out, nil
}

var testCatalog = fakeCatalog{
	"tea":   {ID: "tea", Name: "Tea", Price: decimal.RequireFromString("50"), Stock: 100},
	"bread": {ID: "bread", Name: "Bread", Price: decimal.RequireFromString("100"), Stock: 100},
}

var receiptCounter atomic.Int64

var testReceipts = port.ReceiptNumberFunc(func(ctx context.Context) (string, error) {
	return fmt.Sprintf("R-%d", receiptCounter.Add(1)), nil
})

func filledCart(t *testing.T, ids ...string) *cart.Cart {
	t.Helper()
	c := cart.New(cart.DefaultConfig())
	for _, id := range ids {
		if err := c.AddItem(context.Background(), id, testCatalog); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	return c
}

func drain(svc *CheckoutService) {
	go func() {
		for range svc.SaleQueue() {
		}
	}()
}

func TestCheckout_Success(t *testing.T) {
	cache := newMockCacheRepo(map[string]int{"tea": 10, "bread": 5})
	svc := NewCheckoutService(cache, testReceipts, 100, nil)
	defer svc.Close()
	drain(svc)

	c := filledCart(t, "tea", "tea", "bread")
	sale, err := svc.Checkout(context.Background(), "req-1", c)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if !sale.Total.Equal(decimal.RequireFromString("228")) {
		t.Errorf("expected total 228, got %s", sale.Total)
	}
	if cache.stockOf("tea") != 8 || cache.stockOf("bread") != 4 {
		t.Errorf("unexpected stock %v", cache.stock)
	}
	if c.Len() != 0 {
		t.Error("expected cart to be reset")
	}

	last, _ := svc.LastSale(context.Background())
	if last == nil || last.ID != sale.ID {
		t.Errorf("expected last sale %s, got %+v", sale.ID, last)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	cache := newMockCacheRepo(nil)
	svc := NewCheckoutService(cache, testReceipts, 100, nil)
	defer svc.Close()

	_, err := svc.Checkout(context.Background(), "req-1", cart.New(cart.DefaultConfig()))
	if !errors.Is(err, domain.ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got: %v", err)
	}
	if len(cache.idempotencySet) != 0 {
		t.Error("empty checkout must not consume the request id")
	}
}

func TestCheckout_DuplicateRequest(t *testing.T) {
	cache := newMockCacheRepo(map[string]int{"tea": 10})
	svc := NewCheckoutService(cache, testReceipts, 100, nil)
	defer svc.Close()
	drain(svc)

	if _, err := svc.Checkout(context.Background(), "req-1", filledCart(t, "tea")); err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}

	second := filledCart(t, "tea")
	_, err := svc.Checkout(context.Background(), "req-1", second)
	if !errors.Is(err, ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}
	if second.Len() != 1 {
		t.Error("duplicate must leave the cart untouched")
	}

	if cache.stockOf("tea") != 9 {
		t.Errorf("expected stock 9, got %d", cache.stockOf("tea"))
	}
}

func TestCheckout_OversellIsRecorded(t *testing.T) {
	cache := newMockCacheRepo(map[string]int{"tea": 1})
	svc := NewCheckoutService(cache, testReceipts, 100, nil)
	defer svc.Close()
	drain(svc)

	_, err := svc.Checkout(context.Background(), "req-1", filledCart(t, "tea", "tea"))
	if err != nil {
		t.Fatalf("expected sale to go through, got: %v", err)
	}
	if cache.stockOf("tea") != -1 {
		t.Errorf("expected stock -1, got %d", cache.stockOf("tea"))
	}
}

func TestCheckout_ReceiptFailureKeepsCart(t *testing.T) {
	cache := newMockCacheRepo(map[string]int{"tea": 10})
	failing := port.ReceiptNumberFunc(func(ctx context.Context) (string, error) {
		return "", errors.New("sequence unavailable")
	})
	svc := NewCheckoutService(cache, failing, 100, nil)
	defer svc.Close()

	c := filledCart(t, "tea")
	_, err := svc.Checkout(context.Background(), "req-1", c)
	if err == nil {
		t.Fatal("expected error")
	}
	if c.Len() != 1 {
		t.Error("expected cart to be kept")
	}
	if cache.stockOf("tea") != 10 {
		t.Errorf("expected stock untouched, got %d", cache.stockOf("tea"))
	}
}

func TestCheckout_Concurrent(t *testing.T) {
	totalRequests := 50
	cache := newMockCacheRepo(map[string]int{"tea": 1000})
	svc := NewCheckoutService(cache, testReceipts, 100, nil)
	defer svc.Close()
	drain(svc)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	// Every request id is sent twice; only one of each pair may succeed.
	for i := 0; i < totalRequests; i++ {
		for dup := 0; dup < 2; dup++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				c := filledCart(t, "tea")
				if _, err := svc.Checkout(context.Background(), fmt.Sprintf("req-%d", id), c); err == nil {
					successCount.Add(1)
				}
			}(i)
		}
	}

	wg.Wait()

	if successCount.Load() != int32(totalRequests) {
		t.Errorf("expected %d successes, got %d", totalRequests, successCount.Load())
	}
	if cache.stockOf("tea") != 1000-totalRequests {
		t.Errorf("expected stock %d, got %d", 1000-totalRequests, cache.stockOf("tea"))
	}
}

func TestCheckout_SaleQueued(t *testing.T) {
	cache := newMockCacheRepo(map[string]int{"tea": 10})
	svc := NewCheckoutService(cache, testReceipts, 100, nil)

	sale, err := svc.Checkout(context.Background(), "req-1", filledCart(t, "tea", "tea"))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	queued := <-svc.SaleQueue()

	if queued.ID != sale.ID {
		t.Errorf("expected %s, got %s", sale.ID, queued.ID)
	}
	if len(queued.Items) != 1 || queued.Items[0].Quantity != 2 {
		t.Errorf("unexpected items %+v", queued.Items)
	}
	if queued.ReceiptNumber == "" {
		t.Error("expected receipt number")
	}

	svc.Close()
}

func TestCheckout_FullQueueHonoursContext(t *testing.T) {
	cache := newMockCacheRepo(map[string]int{"tea": 10})
	svc := NewCheckoutService(cache, testReceipts, 0, nil)
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := filledCart(t, "tea", "tea")
	_, err := svc.Checkout(ctx, "req-1", c)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if !errors.Is(err, ErrSaleNotQueued) {
		t.Errorf("expected ErrSaleNotQueued, got %v", err)
	}

	if c.Len() != 1 || c.Lines()[0].Quantity != 2 {
		t.Errorf("expected cart restored, got %+v", c.Lines())
	}
	if cache.stockOf("tea") != 10 {
		t.Errorf("expected stock 10, got %d", cache.stockOf("tea"))
	}
	if last, _ := svc.LastSale(context.Background()); last != nil {
		t.Errorf("expected no last sale, got %s", last.ID)
	}
	if cache.idempotencySet["checkout:req-1"] {
		t.Error("expected request id released")
	}
}

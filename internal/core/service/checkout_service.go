package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/pos-register/internal/core/cart"
	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/port"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	// ErrSaleNotQueued means the caller gave up while the sale queue was full.
	// Stock and the cart are restored and the request id may be reused.
	ErrSaleNotQueued = errors.New("sale not queued")
)

const checkoutKeyPrefix = "checkout:"

// CheckoutService turns carts into sales. Persistence happens asynchronously:
// finished sales are queued for the workers started with RunSaleWorker.
type CheckoutService struct {
	cache     port.CacheRepository
	receipts  port.ReceiptNumberGenerator
	saleQueue chan domain.Sale
	logger    *zap.Logger
}

func NewCheckoutService(cache port.CacheRepository, receipts port.ReceiptNumberGenerator, queueSize int, logger *zap.Logger) *CheckoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutService{
		cache:     cache,
		receipts:  receipts,
		saleQueue: make(chan domain.Sale, queueSize),
		logger:    logger,
	}
}

// Checkout finalizes c and queues the sale for persistence. A requestID that
// was already used within the idempotency window is rejected with
// ErrDuplicateRequest and leaves the cart untouched.
func (s *CheckoutService) Checkout(ctx context.Context, requestID string, c *cart.Cart) (domain.Sale, error) {
	if c.Len() == 0 {
		return domain.Sale{}, domain.ErrEmptyCart
	}

	var idemKey string
	if requestID != "" {
		idemKey = checkoutKeyPrefix + requestID
		ok, err := s.cache.SetIdempotency(ctx, idemKey)
		if err != nil {
			return domain.Sale{}, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return domain.Sale{}, ErrDuplicateRequest
		}
	}

	sale, err := c.Finalize(ctx, s.receipts)
	if err != nil {
		return domain.Sale{}, err
	}

	taken := make([]domain.LineItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		remaining, tracked, err := s.cache.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			s.logger.Error("stock decrement failed",
				zap.String("sale_id", sale.ID), zap.String("product_id", item.ProductID), zap.Error(err))
			continue
		}
		if !tracked {
			continue
		}
		taken = append(taken, item)
		if remaining < 0 {
			s.logger.Warn("product oversold",
				zap.String("sale_id", sale.ID), zap.String("product_id", item.ProductID), zap.Int("stock", remaining))
		}
	}

	select {
	case s.saleQueue <- sale:
	case <-ctx.Done():
		s.abandon(ctx, sale, taken, idemKey, c)
		return domain.Sale{}, fmt.Errorf("%w: %s: %w", ErrSaleNotQueued, sale.ID, ctx.Err())
	}

	if err := s.cache.SetLastSale(ctx, sale); err != nil {
		s.logger.Error("remember last sale failed", zap.String("sale_id", sale.ID), zap.Error(err))
	}

	s.logger.Info("sale completed",
		zap.String("sale_id", sale.ID),
		zap.String("receipt_number", sale.ReceiptNumber),
		zap.Int("items", sale.ItemCount()),
		zap.String("total", sale.Total.StringFixed(domain.CurrencyPlaces)))

	return sale, nil
}

// abandon undoes a checkout whose sale never reached the queue. The receipt
// number stays consumed.
func (s *CheckoutService) abandon(ctx context.Context, sale domain.Sale, taken []domain.LineItem, idemKey string, c *cart.Cart) {
	ctx = context.WithoutCancel(ctx)
	log := s.logger.With(zap.String("sale_id", sale.ID), zap.String("receipt_number", sale.ReceiptNumber))

	for _, item := range taken {
		if err := s.cache.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			log.Error("CRITICAL stock rollback failed", zap.String("product_id", item.ProductID), zap.Error(err))
		}
	}
	if idemKey != "" {
		if err := s.cache.ClearIdempotency(ctx, idemKey); err != nil {
			log.Error("release request id failed", zap.Error(err))
		}
	}
	c.Restore(sale.Items)

	log.Warn("sale abandoned before queueing")
}

// LastSale returns the most recent sale, or nil when none was made.
func (s *CheckoutService) LastSale(ctx context.Context) (*domain.Sale, error) {
	return s.cache.GetLastSale(ctx)
}

func (s *CheckoutService) SaleQueue() <-chan domain.Sale {
	return s.saleQueue
}

func (s *CheckoutService) Close() {
	close(s.saleQueue)
}

package port

import (
	"context"

	"github.com/rl1809/pos-register/internal/core/domain"
)

type StockReader interface {
	// GetStock returns the cached stock; found is false when the product is not tracked
	GetStock(ctx context.Context, productID string) (stock int, found bool, err error)
}

type CacheRepository interface {
	StockReader

	// DecrementStock deducts sold units; tracked is false when the product has no cached stock
	DecrementStock(ctx context.Context, productID string, quantity int) (remaining int, tracked bool, err error)

	// IncrementStock restores stock (for rollback on failure)
	IncrementStock(ctx context.Context, productID string, quantity int) error

	SetStock(ctx context.Context, productID string, quantity int) error

	// DeleteStock stops tracking the product
	DeleteStock(ctx context.Context, productID string) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ClearIdempotency releases a key so the request can be retried
	ClearIdempotency(ctx context.Context, key string) error

	SetLastSale(ctx context.Context, sale domain.Sale) error

	// GetLastSale returns nil, nil when no sale has been recorded
	GetLastSale(ctx context.Context) (*domain.Sale, error)
}

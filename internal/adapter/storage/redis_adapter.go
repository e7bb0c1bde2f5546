package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/pos-register/internal/core/domain"
)

const (
	stockKeyPrefix    = "stock:"
	lastSaleKey       = "sale:last"
	idempotencyKeyTTL = 24 * time.Hour
)

// Untracked products are left alone. Tracked ones are always deducted; the
// register never refuses a sale the cashier already rang up, so the result
// may go negative.
var decrementStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return {0, 0}
end

local remaining = redis.call('DECRBY', key, quantity)
return {1, remaining}
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) GetStock(ctx context.Context, productID string) (int, bool, error) {
	stock, err := r.client.Get(ctx, stockKeyPrefix+productID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get stock %s: %w", productID, err)
	}
	return stock, true, nil
}

func (r *RedisAdapter) DecrementStock(ctx context.Context, productID string, quantity int) (int, bool, error) {
	key := stockKeyPrefix + productID

	result, err := decrementStockScript.Run(ctx, r.client, []string{key}, quantity).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("decrement stock %s: %w", productID, err)
	}
	if len(result) != 2 {
		return 0, false, fmt.Errorf("decrement stock %s: unexpected reply %v", productID, result)
	}

	return int(result[1]), result[0] == 1, nil
}

func (r *RedisAdapter) IncrementStock(ctx context.Context, productID string, quantity int) error {
	return r.client.IncrBy(ctx, stockKeyPrefix+productID, int64(quantity)).Err()
}

func (r *RedisAdapter) SetStock(ctx context.Context, productID string, quantity int) error {
	return r.client.Set(ctx, stockKeyPrefix+productID, quantity, 0).Err()
}

func (r *RedisAdapter) DeleteStock(ctx context.Context, productID string) error {
	return r.client.Del(ctx, stockKeyPrefix+productID).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ClearIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisAdapter) SetLastSale(ctx context.Context, sale domain.Sale) error {
	data, err := json.Marshal(sale)
	if err != nil {
		return fmt.Errorf("marshal sale %s: %w", sale.ID, err)
	}
	return r.client.Set(ctx, lastSaleKey, data, 0).Err()
}

func (r *RedisAdapter) GetLastSale(ctx context.Context) (*domain.Sale, error) {
	data, err := r.client.Get(ctx, lastSaleKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last sale: %w", err)
	}

	var sale domain.Sale
	if err := json.Unmarshal(data, &sale); err != nil {
		return nil, fmt.Errorf("unmarshal last sale: %w", err)
	}
	return &sale, nil
}

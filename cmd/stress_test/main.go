package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/pos-register/internal/adapter/storage"
	"github.com/rl1809/pos-register/internal/core/cart"
	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/core/service"
)

const (
	productID     = "stress-tea"
	initialStock  = 1000
	registers     = 10
	salesPerReg   = 20
	queueSize     = 100
	receiptPrefix = "STRESS"
)

// Each register rings up salesPerReg sales and sends every checkout twice,
// as a flaky terminal would. Exactly one of each pair must go through.
func main() {
	ctx := context.Background()
	log, _ := zap.NewDevelopment()
	defer log.Sync()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()

	// Clear previous test data
	runID := time.Now().Format("150405.000")
	rdb.Del(ctx, "stock:"+productID)

	store := storage.NewMemoryStore()
	store.CreateProduct(ctx, domain.Product{ID: productID, Name: "Tea", Price: decimal.RequireFromString("12.50"), Stock: initialStock})

	cache := storage.NewRedisAdapter(rdb)
	if err := cache.SetStock(ctx, productID, initialStock); err != nil {
		log.Fatal("failed to set stock", zap.Error(err))
	}
	catalog := storage.NewCachedCatalog(store, cache)
	receipts := storage.NewReceiptSequence(rdb, receiptPrefix, time.UTC)

	checkout := service.NewCheckoutService(cache, receipts, queueSize, zap.NewNop())
	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		service.RunSaleWorker(0, checkout.SaleQueue(), store, cache, zap.NewNop())
	}()

	var successCount, duplicateCount, failCount atomic.Int32
	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	start := time.Now()

	for r := 0; r < registers; r++ {
		wg.Add(1)
		go func(reg int) {
			defer wg.Done()
			for i := 0; i < salesPerReg; i++ {
				requestID := fmt.Sprintf("%s-%d-%d", runID, reg, i)
				for attempt := 0; attempt < 2; attempt++ {
					c := cart.New(cart.DefaultConfig())
					if err := c.AddItem(ctx, productID, catalog); err != nil {
						failCount.Add(1)
						continue
					}
					sale, err := checkout.Checkout(ctx, requestID, c)
					switch {
					case err == nil:
						successCount.Add(1)
						mu.Lock()
						if seen[sale.ReceiptNumber] {
							log.Error("duplicate receipt number", zap.String("receipt", sale.ReceiptNumber))
						}
						seen[sale.ReceiptNumber] = true
						mu.Unlock()
					case errors.Is(err, service.ErrDuplicateRequest):
						duplicateCount.Add(1)
					default:
						failCount.Add(1)
					}
				}
			}
		}(r)
	}

	wg.Wait()
	elapsed := time.Since(start)

	checkout.Close()
	workers.Wait()

	success := successCount.Load()
	expected := int32(registers * salesPerReg)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Registers:        %d\n", registers)
	fmt.Printf("Checkouts sent:   %d\n", expected*2)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Duplicates:       %d\n", duplicateCount.Load())
	fmt.Printf("Failed:           %d\n", failCount.Load())
	fmt.Printf("Unique receipts:  %d\n", len(seen))
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == expected && duplicateCount.Load() == expected && len(seen) == int(expected) {
		fmt.Printf("PASS: %d sales, every duplicate rejected\n", expected)
	} else {
		fmt.Printf("FAIL: expected %d sales and %d duplicates\n", expected, expected)
	}

	finalStock, _, _ := cache.GetStock(ctx, productID)
	fmt.Printf("Final Redis Stock: %d\n", finalStock)
	if finalStock == initialStock-int(success) {
		fmt.Println("PASS: stock matches sales")
	} else {
		fmt.Printf("FAIL: expected stock %d, got %d\n", initialStock-int(success), finalStock)
	}

	stored, _ := store.ListRecentSales(ctx, -1)
	fmt.Printf("Persisted sales:  %d\n", len(stored))
}

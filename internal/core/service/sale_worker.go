package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/port"
)

const saleWriteTimeout = 5 * time.Second

// RunSaleWorker persists queued sales until the queue is closed. When a write
// fails the cached stock taken by the sale is given back. Products without
// cached stock were never decremented and are left untracked.
func RunSaleWorker(id int, queue <-chan domain.Sale, repo port.SaleRepository, cache port.CacheRepository, logger *zap.Logger) {
	log := logger.With(zap.Int("worker", id))

	for sale := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), saleWriteTimeout)

		if err := repo.CreateSale(ctx, sale); err != nil {
			log.Error("failed to save sale", zap.String("sale_id", sale.ID), zap.Error(err))

			rolledBack := true
			for _, item := range sale.Items {
				if rollbackErr := restoreStock(ctx, cache, item); rollbackErr != nil {
					rolledBack = false
					log.Error("CRITICAL stock rollback failed",
						zap.String("sale_id", sale.ID), zap.String("product_id", item.ProductID), zap.Error(rollbackErr))
				}
			}
			if rolledBack {
				log.Warn("rolled back stock", zap.String("sale_id", sale.ID))
			}
		} else {
			log.Debug("saved sale", zap.String("sale_id", sale.ID), zap.String("receipt_number", sale.ReceiptNumber))
		}

		cancel()
	}
}

func restoreStock(ctx context.Context, cache port.CacheRepository, item domain.LineItem) error {
	_, tracked, err := cache.GetStock(ctx, item.ProductID)
	if err != nil {
		return err
	}
	if !tracked {
		return nil
	}
	return cache.IncrementStock(ctx, item.ProductID, item.Quantity)
}

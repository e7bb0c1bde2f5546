package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/pos-register/internal/adapter/handler"
	"github.com/rl1809/pos-register/internal/adapter/storage"
	"github.com/rl1809/pos-register/internal/core/cart"
	"github.com/rl1809/pos-register/internal/core/receipt"
	"github.com/rl1809/pos-register/internal/core/service"
	"github.com/rl1809/pos-register/internal/platform/config"
	"github.com/rl1809/pos-register/internal/platform/logger"
	"github.com/rl1809/pos-register/internal/port"
)

const healthInterval = 15 * time.Second

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pingers := make(map[string]handler.Pinger)

	// Storage: MySQL and Redis when configured, process memory otherwise.
	memory := storage.NewMemoryStore()
	var catalogRepo port.CatalogRepository = memory
	var saleRepo port.SaleRepository = memory
	var cache port.CacheRepository = memory

	var db *sql.DB
	if cfg.MySQLDSN != "" {
		db, err = sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal("failed to connect mysql", zap.Error(err))
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping mysql", zap.Error(err))
		}
		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.Migrate(ctx); err != nil {
			log.Fatal("failed to migrate mysql", zap.Error(err))
		}
		catalogRepo, saleRepo = mysqlAdapter, mysqlAdapter
		pingers["mysql"] = db.PingContext
		log.Info("connected to mysql")
	} else {
		log.Warn("MYSQL_DSN not set, catalog and sales kept in memory")
	}

	var rdb *redis.Client
	var receipts port.ReceiptNumberGenerator
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		cache = storage.NewRedisAdapter(rdb)
		receipts = storage.NewReceiptSequence(rdb, cfg.ReceiptPrefix, cfg.Location())
		pingers["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info("connected to redis")
	} else {
		receipts, err = storage.NewSnowflakeReceipts(cfg.RegisterNode, cfg.ReceiptPrefix)
		if err != nil {
			log.Fatal("failed to create receipt generator", zap.Error(err))
		}
		log.Warn("REDIS_ADDR not set, stock cache kept in memory")
	}

	formatter, err := receipt.NewFormatter(receipt.Config{
		StoreName: cfg.StoreName,
		Currency: receipt.Currency{
			Code:        cfg.CurrencyCode,
			Symbol:      cfg.CurrencySymbol,
			SymbolAfter: cfg.SymbolAfter,
			Locale:      cfg.Locale(),
		},
		Location:  cfg.Location(),
		Footer:    cfg.ReceiptFooter,
		Direction: cfg.TextDirection,
	})
	if err != nil {
		log.Fatal("failed to create receipt formatter", zap.Error(err))
	}

	// Services
	products := service.NewCatalogService(catalogRepo, cache, log.Named("catalog"))
	n, err := products.SyncStock(ctx)
	if err != nil {
		log.Fatal("failed to sync stock", zap.Error(err))
	}
	log.Info("synced stock to cache", zap.Int("products", n))

	catalog := storage.NewCachedCatalog(catalogRepo, cache)
	checkout := service.NewCheckoutService(cache, receipts, cfg.QueueSize, log.Named("checkout"))
	dashboard := service.NewDashboardService(saleRepo, catalog, cfg.Location(), log.Named("dashboard"))

	if err := dashboard.StartDailyReport(cfg.DailyReportCron); err != nil {
		log.Fatal("failed to schedule daily report", zap.Error(err))
	}

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			service.RunSaleWorker(id, checkout.SaleQueue(), saleRepo, cache, log.Named("worker"))
		}(i)
	}
	log.Info("started workers", zap.Int("count", cfg.WorkerCount))

	// gRPC health server
	grpcHandler := handler.NewGRPCHandler(log.Named("grpc"))
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcHandler.Server().Serve(lis); err != nil {
			log.Error("gRPC server error", zap.Error(err))
		}
	}()
	go grpcHandler.Watch(ctx, healthInterval, pingers)

	// HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	httpHandler := handler.NewHTTPHandler(handler.Dependencies{
		Checkout:  checkout,
		Products:  products,
		Dashboard: dashboard,
		Catalog:   catalog,
		Sales:     saleRepo,
		Formatter: formatter,
		CartCfg: cart.Config{
			TaxRate: cfg.TaxRate,
			Clock:   time.Now,
		},
		Logger: log.Named("http"),
	})
	httpHandler.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	grpcHandler.Shutdown()
	log.Info("gRPC server stopped")

	dashboard.Stop()

	// Close sale queue and wait for workers
	checkout.Close()
	wg.Wait()
	log.Info("workers stopped")

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	log.Info("connections closed")
}

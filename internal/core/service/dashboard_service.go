package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/port"
)

const recentSalesLimit = 10

type Summary struct {
	Date           string          `json:"date"`
	SalesTotal     decimal.Decimal `json:"sales_total"`
	SalesCount     int             `json:"sales_count"`
	ItemsSold      int             `json:"items_sold"`
	InventoryValue decimal.Decimal `json:"inventory_value"`
	ProductCount   int             `json:"product_count"`
	RecentSales    []domain.Sale   `json:"recent_sales"`
}

type DashboardService struct {
	sales     port.SaleRepository
	catalog   port.Catalog
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
	scheduler *cron.Cron
}

func NewDashboardService(sales port.SaleRepository, catalog port.Catalog, loc *time.Location, logger *zap.Logger) *DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		sales:   sales,
		catalog: catalog,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
	}
}

// dayBounds returns the start of t's day and of the next one in loc.
func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func (s *DashboardService) Summary(ctx context.Context) (Summary, error) {
	from, to := dayBounds(s.now(), s.loc)

	today, err := s.sales.ListSales(ctx, from, to)
	if err != nil {
		return Summary{}, fmt.Errorf("list today's sales: %w", err)
	}

	summary := Summary{
		Date:           from.Format("2006-01-02"),
		SalesTotal:     decimal.Zero,
		SalesCount:     len(today),
		InventoryValue: decimal.Zero,
	}
	for _, sale := range today {
		summary.SalesTotal = summary.SalesTotal.Add(sale.Total)
		summary.ItemsSold += sale.ItemCount()
	}

	products, err := s.catalog.ListAll(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list products: %w", err)
	}
	summary.ProductCount = len(products)
	for _, p := range products {
		summary.InventoryValue = summary.InventoryValue.Add(p.StockValue())
	}
	summary.InventoryValue = domain.RoundCurrency(summary.InventoryValue)

	recent, err := s.sales.ListRecentSales(ctx, recentSalesLimit)
	if err != nil {
		return Summary{}, fmt.Errorf("list recent sales: %w", err)
	}
	summary.RecentSales = recent

	return summary, nil
}

// StartDailyReport logs the day's summary on the given cron schedule
// (six fields, seconds first), evaluated in the dashboard's time zone.
func (s *DashboardService) StartDailyReport(spec string) error {
	scheduler := cron.New(cron.WithSeconds(), cron.WithLocation(s.loc))
	if _, err := scheduler.AddFunc(spec, s.reportDay); err != nil {
		return fmt.Errorf("schedule daily report %q: %w", spec, err)
	}
	scheduler.Start()
	s.scheduler = scheduler

	s.logger.Info("daily report scheduled", zap.String("spec", spec), zap.String("tz", s.loc.String()))
	return nil
}

func (s *DashboardService) Stop() {
	if s.scheduler == nil {
		return
	}
	<-s.scheduler.Stop().Done()
}

func (s *DashboardService) reportDay() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	summary, err := s.Summary(ctx)
	if err != nil {
		s.logger.Error("daily report failed", zap.Error(err))
		return
	}

	s.logger.Info("daily report",
		zap.String("date", summary.Date),
		zap.Int("sales", summary.SalesCount),
		zap.Int("items_sold", summary.ItemsSold),
		zap.String("sales_total", summary.SalesTotal.StringFixed(domain.CurrencyPlaces)),
		zap.String("inventory_value", summary.InventoryValue.StringFixed(domain.CurrencyPlaces)),
		zap.Int("products", summary.ProductCount))
}

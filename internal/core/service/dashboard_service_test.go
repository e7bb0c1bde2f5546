package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/port/mocks"
)

var cairo = time.FixedZone("EET", 3*60*60)

func TestDayBounds(t *testing.T) {
	// 22:30 UTC on the 15th is 01:30 on the 16th in Cairo.
	from, to := dayBounds(time.Date(2026, 10, 15, 22, 30, 0, 0, time.UTC), cairo)

	assert.True(t, from.Equal(time.Date(2026, 10, 16, 0, 0, 0, 0, cairo)))
	assert.True(t, to.Equal(time.Date(2026, 10, 17, 0, 0, 0, 0, cairo)))
}

func TestSummary(t *testing.T) {
	sales := new(mocks.MockSaleRepository)
	catalog := new(mocks.MockCatalogRepository)
	svc := NewDashboardService(sales, catalog, cairo, nil)
	svc.now = func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }

	from := time.Date(2026, 10, 16, 0, 0, 0, 0, cairo)
	today := []domain.Sale{
		{ID: "s1", Total: decimal.RequireFromString("228"), Items: []domain.LineItem{{Quantity: 3}}},
		{ID: "s2", Total: decimal.RequireFromString("11.40"), Items: []domain.LineItem{{Quantity: 1}}},
	}
	sales.On("ListSales", mock.Anything, from, from.AddDate(0, 0, 1)).Return(today, nil).Once()
	sales.On("ListRecentSales", mock.Anything, recentSalesLimit).Return([]domain.Sale{today[1], today[0]}, nil).Once()
	catalog.On("ListAll", mock.Anything).Return([]domain.Product{
		{ID: "tea", Price: decimal.RequireFromString("12.50"), Stock: 4},
		{ID: "bread", Price: decimal.RequireFromString("5"), Stock: 0},
		{ID: "oversold", Price: decimal.RequireFromString("9"), Stock: -2},
	}, nil).Once()

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2026-10-16", summary.Date)
	assert.Equal(t, 2, summary.SalesCount)
	assert.Equal(t, 4, summary.ItemsSold)
	assert.True(t, summary.SalesTotal.Equal(decimal.RequireFromString("239.40")), summary.SalesTotal.String())
	assert.True(t, summary.InventoryValue.Equal(decimal.RequireFromString("50")), summary.InventoryValue.String())
	assert.Equal(t, 3, summary.ProductCount)
	require.Len(t, summary.RecentSales, 2)
	assert.Equal(t, "s2", summary.RecentSales[0].ID)

	sales.AssertExpectations(t)
	catalog.AssertExpectations(t)
}

func TestSummary_Error(t *testing.T) {
	sales := new(mocks.MockSaleRepository)
	catalog := new(mocks.MockCatalogRepository)
	svc := NewDashboardService(sales, catalog, time.UTC, nil)
	sales.On("ListSales", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

	_, err := svc.Summary(context.Background())
	assert.Error(t, err)
	catalog.AssertNotCalled(t, "ListAll", mock.Anything)
}

func TestStartDailyReport(t *testing.T) {
	sales := new(mocks.MockSaleRepository)
	catalog := new(mocks.MockCatalogRepository)
	sales.On("ListSales", mock.Anything, mock.Anything, mock.Anything).Return([]domain.Sale{}, nil)
	sales.On("ListRecentSales", mock.Anything, mock.Anything).Return([]domain.Sale{}, nil)
	catalog.On("ListAll", mock.Anything).Return([]domain.Product{}, nil)

	core, logs := observer.New(zap.InfoLevel)
	svc := NewDashboardService(sales, catalog, time.UTC, zap.New(core))

	require.NoError(t, svc.StartDailyReport("* * * * * *"))
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("daily report").Len() > 0
	}, 3*time.Second, 50*time.Millisecond)
	svc.Stop()
}

func TestStartDailyReport_BadSpec(t *testing.T) {
	svc := NewDashboardService(new(mocks.MockSaleRepository), new(mocks.MockCatalogRepository), time.UTC, nil)

	assert.Error(t, svc.StartDailyReport("whenever"))
	svc.Stop()
}

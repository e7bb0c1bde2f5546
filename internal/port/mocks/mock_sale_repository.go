package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/rl1809/pos-register/internal/core/domain"
)

type MockSaleRepository struct {
	mock.Mock
}

func (m *MockSaleRepository) CreateSale(ctx context.Context, sale domain.Sale) error {
	args := m.Called(ctx, sale)
	return args.Error(0)
}

func (m *MockSaleRepository) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.(*domain.Sale), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSaleRepository) ListSales(ctx context.Context, from, to time.Time) ([]domain.Sale, error) {
	args := m.Called(ctx, from, to)
	if res := args.Get(0); res != nil {
		return res.([]domain.Sale), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSaleRepository) ListRecentSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	args := m.Called(ctx, limit)
	if res := args.Get(0); res != nil {
		return res.([]domain.Sale), args.Error(1)
	}
	return nil, args.Error(1)
}

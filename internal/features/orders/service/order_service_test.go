package service

import (
	"context"
	"errors"
	"testing"

	"carrier-engine/internal/features/orders/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOrderSource struct {
	mock.Mock
}

func (m *MockOrderSource) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

type MockOrderRepository struct {
	MockOrderSource
}

func (m *MockOrderRepository) SaveOrder(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

type MockNotifyingSource struct {
	MockOrderSource
}

func (m *MockNotifyingSource) AssignShipment(ctx context.Context, orderID string, info domain.ShippingInfo) error {
	return m.Called(ctx, orderID, info).Error(0)
}

func TestOrderService_GetOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("ReturnsCopy", func(t *testing.T) {
		src := new(MockOrderSource)
		stored := &domain.Order{ID: "1", Items: []domain.OrderItem{{Name: "a", Quantity: 1}}}
		src.On("GetOrder", ctx, "1").Return(stored, nil)

		got, err := NewOrderService(src).GetOrder(ctx, "1")
		require.NoError(t, err)

		stored.Items[0].Name = "changed"
		assert.Equal(t, "a", got.Items[0].Name)
	})

	t.Run("NilIsNotFound", func(t *testing.T) {
		src := new(MockOrderSource)
		src.On("GetOrder", ctx, "2").Return(nil, nil)

		_, err := NewOrderService(src).GetOrder(ctx, "2")
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("SourceError", func(t *testing.T) {
		src := new(MockOrderSource)
		src.On("GetOrder", ctx, "3").Return(nil, errors.New("timeout"))

		_, err := NewOrderService(src).GetOrder(ctx, "3")
		assert.EqualError(t, err, "timeout")
	})
}

func TestOrderService_SaveOrder(t *testing.T) {
	ctx := context.Background()
	valid := &domain.Order{ID: "1", PaymentType: domain.PaymentPrepaid, Address: domain.Address{Pincode: "110001"}}

	t.Run("ReadOnlySource", func(t *testing.T) {
		err := NewOrderService(new(MockOrderSource)).SaveOrder(ctx, valid)
		assert.ErrorIs(t, err, ErrReadOnlySource)
	})

	t.Run("Saved", func(t *testing.T) {
		repo := new(MockOrderRepository)
		repo.On("SaveOrder", ctx, mock.AnythingOfType("*domain.Order")).Return(nil)

		err := NewOrderService(repo).SaveOrder(ctx, valid)
		require.NoError(t, err)
		assert.Equal(t, "1", valid.OrderNumber)
		repo.AssertExpectations(t)
	})

	t.Run("Invalid", func(t *testing.T) {
		repo := new(MockOrderRepository)
		err := NewOrderService(repo).SaveOrder(ctx, &domain.Order{ID: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	})
}

func TestOrderService_NotifyShipment(t *testing.T) {
	ctx := context.Background()
	info := domain.ShippingInfo{AWBNumber: "AWB"}

	t.Run("Notifier", func(t *testing.T) {
		src := new(MockNotifyingSource)
		src.On("AssignShipment", ctx, "1", info).Return(errors.New("wc down")).Once()

		NewOrderService(src).NotifyShipment(ctx, "1", info)
		src.AssertExpectations(t)
	})

	t.Run("PlainSourceIgnored", func(t *testing.T) {
		src := new(MockOrderSource)
		NewOrderService(src).NotifyShipment(ctx, "1", info)
		src.AssertExpectations(t)
	})
}

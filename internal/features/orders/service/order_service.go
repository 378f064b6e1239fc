package service

import (
	"context"
	"errors"
	"fmt"

	"carrier-engine/internal/core/logger"
	"carrier-engine/internal/features/orders/domain"
	"carrier-engine/internal/features/orders/ports"

	"go.uber.org/zap"
)

// ErrReadOnlySource is returned when orders cannot be written to the configured source.
var ErrReadOnlySource = errors.New("order source is read-only")

// OrderService reads order snapshots and keeps external sources informed of bookings.
type OrderService struct {
	// source is where order data comes from.
	source ports.OrderSource
}

// NewOrderService creates a new instance of OrderService.
func NewOrderService(source ports.OrderSource) *OrderService {
	return &OrderService{
		source: source,
	}
}

// GetOrder returns an independent snapshot of the order.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.source.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return order.Clone(), nil
}

// SaveOrder stores an order in the local store.
func (s *OrderService) SaveOrder(ctx context.Context, order *domain.Order) error {
	repo, ok := s.source.(ports.OrderRepository)
	if !ok {
		return ErrReadOnlySource
	}
	if err := order.Validate(); err != nil {
		return err
	}
	if order.OrderNumber == "" {
		order.OrderNumber = order.ID
	}
	return repo.SaveOrder(ctx, order)
}

// NotifyShipment pushes the assignment to sources that keep their own copy.
// Failures are logged; the local record is already authoritative.
func (s *OrderService) NotifyShipment(ctx context.Context, orderID string, info domain.ShippingInfo) {
	notifier, ok := s.source.(ports.ShipmentNotifier)
	if !ok {
		return
	}
	if err := notifier.AssignShipment(ctx, orderID, info); err != nil {
		logger.Get().Warn("Failed to push shipment to order source",
			zap.String("order_id", orderID),
			zap.String("awb", info.AWBNumber),
			zap.Error(err),
		)
	}
}

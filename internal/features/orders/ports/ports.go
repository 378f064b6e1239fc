package ports

import (
	"context"

	"carrier-engine/internal/features/orders/domain"
)

// OrderSource supplies order snapshots to the engine.
// This is a Secondary Port (Driven Port).
type OrderSource interface {
	// GetOrder returns the order or an error wrapping domain.ErrOrderNotFound.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

// ShipmentNotifier is implemented by order sources that keep their own copy of
// the carrier assignment and must be told about new bookings.
type ShipmentNotifier interface {
	AssignShipment(ctx context.Context, orderID string, info domain.ShippingInfo) error
}

// OrderRepository is the local order store.
type OrderRepository interface {
	OrderSource
	SaveOrder(ctx context.Context, order *domain.Order) error
}

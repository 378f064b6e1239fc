package ports

import (
	"context"

	orderdomain "carrier-engine/internal/features/orders/domain"
	"carrier-engine/internal/features/shipments/domain"
)

// ShipmentRepository is the secondary port for shipments, tracking events and NDRs.
type ShipmentRepository interface {
	Get(ctx context.Context, id string) (*domain.Shipment, error)
	// ActiveForOrder returns the order's non-terminal shipment, or nil.
	ActiveForOrder(ctx context.Context, orderID string) (*domain.Shipment, error)
	// ListRefreshable returns shipments whose status is not final.
	ListRefreshable(ctx context.Context) ([]domain.Shipment, error)

	// SaveBooking stores a new shipment and the order's carrier assignment in
	// one transaction. It fails with domain.ErrActiveShipmentExists when the
	// order already holds a non-terminal shipment.
	SaveBooking(ctx context.Context, shipment *domain.Shipment, info orderdomain.ShippingInfo) error
	// UpdateStatus persists the shipment's current status and timestamps.
	UpdateStatus(ctx context.Context, shipment *domain.Shipment) error
	// ApplyTrackingUpdate persists the status and inserts the events whose
	// (status, event time) is not stored yet. Returns how many were inserted.
	ApplyTrackingUpdate(ctx context.Context, shipment *domain.Shipment, events []domain.TrackingEvent) (int, error)
	TrackingEvents(ctx context.Context, shipmentID string) ([]domain.TrackingEvent, error)

	// CreateNDR assigns the next attempt number for the shipment and stores the record.
	CreateNDR(ctx context.Context, ndr *domain.NDRRecord) error
	GetNDR(ctx context.Context, id string) (*domain.NDRRecord, error)
	UpdateNDR(ctx context.Context, ndr *domain.NDRRecord) error
	ListNDRs(ctx context.Context, shipmentID string) ([]domain.NDRRecord, error)
}

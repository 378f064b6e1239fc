package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carrier-engine/internal/features/orders/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository implements ports.OrderRepository.
type OrderRepository struct {
	db *gorm.DB
}

func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var m OrderModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// SaveOrder inserts or replaces the order snapshot. The carrier assignment
// columns are left alone; only SaveBooking writes them.
func (r *OrderRepository) SaveOrder(ctx context.Context, order *domain.Order) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	m := orderFromDomain(order)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"order_number", "channel", "payment_type", "total_amount", "cod_amount",
				"weight_kg", "length_cm", "breadth_cm", "height_cm", "customer", "address", "items",
			}),
		}).
		Create(&m).Error
}

// assignOrder writes the carrier assignment onto a locally stored order. Orders
// owned by an external source have no row and are skipped.
func assignOrder(tx *gorm.DB, orderID string, info domain.ShippingInfo) error {
	return tx.Model(&OrderModel{}).Where("id = ?", orderID).Updates(map[string]any{
		"shipment_id":  nullable(info.ShipmentID),
		"carrier_code": info.CarrierCode,
		"awb_number":   info.AWBNumber,
		"tracking_url": info.TrackingURL,
		"assigned_at":  info.AssignedAt,
	}).Error
}

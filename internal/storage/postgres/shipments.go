package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	orderdomain "carrier-engine/internal/features/orders/domain"
	"carrier-engine/internal/features/shipments/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	terminalStatuses = []string{string(domain.StatusCancelled), string(domain.StatusRTODelivered)}
	finalStatuses    = []string{
		string(domain.StatusDelivered),
		string(domain.StatusCancelled),
		string(domain.StatusRTODelivered),
		string(domain.StatusLost),
		string(domain.StatusFailed),
	}
)

// ShipmentRepository implements ports.ShipmentRepository.
type ShipmentRepository struct {
	db *gorm.DB
}

func (r *ShipmentRepository) Get(ctx context.Context, id string) (*domain.Shipment, error) {
	var m ShipmentModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrShipmentNotFound, id)
		}
		return nil, err
	}
	return m.toDomain(), nil
}

func (r *ShipmentRepository) ActiveForOrder(ctx context.Context, orderID string) (*domain.Shipment, error) {
	var models []ShipmentModel
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status NOT IN ?", orderID, terminalStatuses).
		Limit(1).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	return models[0].toDomain(), nil
}

func (r *ShipmentRepository) ListRefreshable(ctx context.Context) ([]domain.Shipment, error) {
	var models []ShipmentModel
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", finalStatuses).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Shipment, 0, len(models))
	for _, m := range models {
		out = append(out, *m.toDomain())
	}
	return out, nil
}

// SaveBooking inserts the shipment and writes the assignment onto the order in
// one transaction. The partial unique index turns a concurrent second booking
// into domain.ErrActiveShipmentExists.
func (r *ShipmentRepository) SaveBooking(ctx context.Context, shipment *domain.Shipment, info orderdomain.ShippingInfo) error {
	m := shipmentFromDomain(shipment)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return assignOrder(tx, shipment.OrderID, info)
	})
	if isUniqueViolation(err, activeShipmentIndex) {
		return fmt.Errorf("%w: order %s", domain.ErrActiveShipmentExists, shipment.OrderID)
	}
	if err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

func (r *ShipmentRepository) UpdateStatus(ctx context.Context, shipment *domain.Shipment) error {
	return updateStatus(r.db.WithContext(ctx), shipment)
}

func updateStatus(tx *gorm.DB, shipment *domain.Shipment) error {
	res := tx.Model(&ShipmentModel{}).Where("id = ?", shipment.ID).Updates(map[string]any{
		"status":       string(shipment.Status()),
		"picked_up_at": shipment.PickedUpAt,
		"delivered_at": shipment.DeliveredAt,
		"updated_at":   shipment.UpdatedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrShipmentNotFound, shipment.ID)
	}
	return nil
}

// ApplyTrackingUpdate persists the status and inserts new events; duplicates on
// (shipment, status, event time) are skipped by the unique index.
func (r *ShipmentRepository) ApplyTrackingUpdate(ctx context.Context, shipment *domain.Shipment, events []domain.TrackingEvent) (int, error) {
	added := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateStatus(tx, shipment); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, e := range events {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			if e.CreatedAt.IsZero() {
				e.CreatedAt = now
			}
			e.ShipmentID = shipment.ID

			m := trackingEventFromDomain(e)
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
			if res.Error != nil {
				return res.Error
			}
			added += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// TrackingEvents returns the shipment's events, newest first.
func (r *ShipmentRepository) TrackingEvents(ctx context.Context, shipmentID string) ([]domain.TrackingEvent, error) {
	var models []TrackingEventModel
	err := r.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Order("event_time DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.TrackingEvent, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// CreateNDR locks the shipment row so concurrent NDRs get consecutive attempt numbers.
func (r *ShipmentRepository) CreateNDR(ctx context.Context, ndr *domain.NDRRecord) error {
	if ndr.ID == "" {
		ndr.ID = uuid.NewString()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var shipment ShipmentModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&shipment, "id = ?", ndr.ShipmentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrShipmentNotFound, ndr.ShipmentID)
		}
		if err != nil {
			return err
		}

		var last int
		err = tx.Model(&NDRModel{}).
			Where("shipment_id = ?", ndr.ShipmentID).
			Select("COALESCE(MAX(attempt_number), 0)").
			Scan(&last).Error
		if err != nil {
			return err
		}

		ndr.AttemptNumber = last + 1
		m := ndrFromDomain(ndr)
		return tx.Create(&m).Error
	})
}

func (r *ShipmentRepository) GetNDR(ctx context.Context, id string) (*domain.NDRRecord, error) {
	var m NDRModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNDRNotFound, id)
		}
		return nil, err
	}
	n := m.toDomain()
	return &n, nil
}

func (r *ShipmentRepository) UpdateNDR(ctx context.Context, ndr *domain.NDRRecord) error {
	m := ndrFromDomain(ndr)
	res := r.db.WithContext(ctx).Model(&NDRModel{}).Where("id = ?", ndr.ID).
		Select("action", "action_notes", "action_by", "action_date", "customer_contacted",
			"customer_response", "new_delivery_date", "is_resolved", "resolution_date").
		Updates(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNDRNotFound, ndr.ID)
	}
	return nil
}

// ListNDRs returns the shipment's NDRs by attempt number.
func (r *ShipmentRepository) ListNDRs(ctx context.Context, shipmentID string) ([]domain.NDRRecord, error) {
	var models []NDRModel
	err := r.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Order("attempt_number ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.NDRRecord, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"carrier-engine/internal/core/logger"
	"carrier-engine/internal/features/shipments/domain"
	"carrier-engine/internal/features/shipments/ports"

	"go.uber.org/zap"
)

// RaiseNDRRequest reports a failed delivery attempt.
type RaiseNDRRequest struct {
	Reason      domain.NDRReason `json:"reason"`
	Description string           `json:"reason_description"`
	// NDRDate defaults to now.
	NDRDate *time.Time `json:"ndr_date"`
}

// NDRService records failed delivery attempts and operator decisions.
type NDRService struct {
	shipments ports.ShipmentRepository
	now       func() time.Time
}

// NewNDRService creates a new NDRService.
func NewNDRService(shipments ports.ShipmentRepository) *NDRService {
	return &NDRService{
		shipments: shipments,
		now:       time.Now,
	}
}

// RaiseNDR opens an NDR on a shipment that has not reached a final status.
// The attempt number is assigned by the store.
func (s *NDRService) RaiseNDR(ctx context.Context, shipmentID string, req RaiseNDRRequest) (*domain.NDRRecord, error) {
	if !req.Reason.Valid() {
		return nil, fmt.Errorf("%w: unknown reason %q", domain.ErrInvalidNDR, req.Reason)
	}

	shipment, err := s.shipments.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment.Status().IsFinal() {
		return nil, fmt.Errorf("%w: shipment %s is %s", domain.ErrInvalidNDR, shipment.TrackingNumber, shipment.Status())
	}

	ndr := &domain.NDRRecord{
		ShipmentID:        shipment.ID,
		NDRDate:           s.now().UTC(),
		Reason:            req.Reason,
		ReasonDescription: req.Description,
	}
	if req.NDRDate != nil {
		ndr.NDRDate = req.NDRDate.UTC()
	}

	if err := s.shipments.CreateNDR(ctx, ndr); err != nil {
		return nil, fmt.Errorf("service: failed to create ndr: %w", err)
	}

	logger.Component("ndr").Info("NDR raised",
		zap.String("shipment_id", shipment.ID),
		zap.String("reason", string(ndr.Reason)),
		zap.Int("attempt", ndr.AttemptNumber),
	)
	return ndr, nil
}

// ActionNDR records the operator's decision. An rto action does not touch the
// shipment; its status follows the next tracking update.
func (s *NDRService) ActionNDR(ctx context.Context, ndrID string, in domain.NDRActionInput, user string) (*domain.NDRRecord, error) {
	ndr, err := s.shipments.GetNDR(ctx, ndrID)
	if err != nil {
		return nil, err
	}
	if err := ndr.ApplyAction(in, user, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.shipments.UpdateNDR(ctx, ndr); err != nil {
		return nil, fmt.Errorf("service: failed to update ndr: %w", err)
	}

	logger.Component("ndr").Info("NDR actioned",
		zap.String("ndr_id", ndr.ID),
		zap.String("action", string(ndr.Action)),
		zap.String("by", user),
		zap.Bool("resolved", ndr.IsResolved),
	)
	return ndr, nil
}

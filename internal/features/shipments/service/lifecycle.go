package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"carrier-engine/internal/core/logger"
	carrierdomain "carrier-engine/internal/features/carriers/domain"
	carrierports "carrier-engine/internal/features/carriers/ports"
	orderdomain "carrier-engine/internal/features/orders/domain"
	"carrier-engine/internal/features/shipments/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// cancelOutcome is a CancelResult plus whether the failure was a transport fault.
type cancelOutcome struct {
	CancelResult
	transport bool
}

// CancelShipment cancels the booking with the carrier. The shipment is only
// marked cancelled when the carrier confirms; otherwise its status is unchanged
// and the carrier's message is returned.
func (o *Orchestrator) CancelShipment(ctx context.Context, shipmentID string) (*CancelResult, error) {
	outcome, err := o.cancelShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	return &outcome.CancelResult, nil
}

func (o *Orchestrator) cancelShipment(ctx context.Context, shipmentID string) (*cancelOutcome, error) {
	release, err := o.lock(ctx, shipmentLockKey(shipmentID))
	if err != nil {
		return nil, fmt.Errorf("service: failed to lock shipment %s: %w", shipmentID, err)
	}
	defer release()

	shipment, err := o.shipments.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	outcome := &cancelOutcome{CancelResult: CancelResult{ShipmentID: shipment.ID, Status: shipment.Status()}}
	if shipment.Status().IsFinal() {
		outcome.Message = fmt.Sprintf("shipment %s is already %s", shipment.TrackingNumber, shipment.Status())
		return outcome, nil
	}

	adapter, err := o.adapterFor(ctx, shipment)
	if err != nil {
		outcome.Message = err.Error()
		return outcome, nil
	}

	result, err := adapter.CancelShipment(ctx, shipment.AWBNumber)
	if err != nil {
		outcome.Message = err.Error()
		outcome.transport = true
		return outcome, nil
	}
	if !result.Success {
		outcome.Message = result.Message
		return outcome, nil
	}

	if err := shipment.MarkCancelled(o.now().UTC()); err != nil {
		outcome.Message = err.Error()
		return outcome, nil
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := o.shipments.UpdateStatus(persistCtx, shipment); err != nil {
		logger.Component("shipments").Error("Shipment cancelled with carrier but not stored",
			zap.String("shipment_id", shipment.ID),
			zap.String("awb", shipment.AWBNumber),
			zap.Error(err),
		)
		return nil, fmt.Errorf("service: failed to store cancellation of %s: %w", shipment.ID, err)
	}

	logger.Component("shipments").Info("Shipment cancelled",
		zap.String("shipment_id", shipment.ID),
		zap.String("awb", shipment.AWBNumber),
	)

	outcome.Success = true
	outcome.Status = shipment.Status()
	outcome.Message = result.Message
	return outcome, nil
}

// adapterFor resolves the adapter of the carrier that booked shipment.
func (o *Orchestrator) adapterFor(ctx context.Context, shipment *domain.Shipment) (carrierports.CarrierAdapter, error) {
	carrier, err := o.carriers.Get(ctx, shipment.CarrierID)
	if err != nil {
		return nil, fmt.Errorf("carrier %s of shipment %s: %w", shipment.CarrierCode, shipment.ID, err)
	}
	return o.adapters.GetAdapter(ctx, carrier)
}

// UpdateTracking pulls the carrier's tracking, advances the status when the
// state machine allows it and stores scans not seen before. Repeated calls
// with the same carrier answer change nothing.
func (o *Orchestrator) UpdateTracking(ctx context.Context, shipmentID string) (*domain.TrackingUpdate, error) {
	release, err := o.lock(ctx, shipmentLockKey(shipmentID))
	if err != nil {
		return nil, fmt.Errorf("service: failed to lock shipment %s: %w", shipmentID, err)
	}
	defer release()

	shipment, err := o.shipments.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	log := logger.Component("shipments").With(
		zap.String("shipment_id", shipment.ID),
		zap.String("awb", shipment.AWBNumber),
	)

	adapter, err := o.adapterFor(ctx, shipment)
	if err != nil {
		return nil, err
	}
	result, err := adapter.GetTrackingStatus(ctx, shipment.AWBNumber)
	if err != nil {
		return nil, err
	}

	update := &domain.TrackingUpdate{
		ShipmentID:     shipment.ID,
		PreviousStatus: shipment.Status(),
		Status:         shipment.Status(),
		ProviderStatus: result.Status,
		Message:        result.Message,
	}
	if !result.Success {
		return update, nil
	}

	now := o.now().UTC()
	if mapped, ok := domain.MapProviderStatus(result.Status); ok {
		changed, err := shipment.ApplyTrackingStatus(mapped, now)
		if err != nil {
			log.Debug("Tracking status ignored", zap.String("provider_status", result.Status), zap.Error(err))
		}
		update.StatusChanged = changed
	} else if result.Status != "" {
		log.Warn("Unknown carrier status", zap.String("provider_status", result.Status))
	}

	added, err := o.shipments.ApplyTrackingUpdate(ctx, shipment, trackingEvents(shipment.ID, result, now))
	if err != nil {
		return nil, fmt.Errorf("service: failed to store tracking for %s: %w", shipment.ID, err)
	}
	update.Status = shipment.Status()
	update.EventsAdded = added

	if update.StatusChanged {
		log.Info("Shipment status changed",
			zap.String("from", string(update.PreviousStatus)),
			zap.String("to", string(update.Status)),
		)
	}
	return update, nil
}

func trackingEvents(shipmentID string, result *carrierdomain.TrackingResult, now time.Time) []domain.TrackingEvent {
	events := make([]domain.TrackingEvent, 0, len(result.Events))
	for _, e := range result.Events {
		mapped, _ := domain.MapProviderStatus(e.Status)
		events = append(events, domain.TrackingEvent{
			ShipmentID:   shipmentID,
			Status:       e.Status,
			MappedStatus: mapped,
			Location:     e.Location,
			Description:  e.Description,
			EventTime:    e.Timestamp.UTC(),
			CreatedAt:    now,
		})
	}
	return events
}

// RefreshActiveShipments updates tracking for every shipment that has not
// reached a final status. Individual failures are counted, not returned.
func (o *Orchestrator) RefreshActiveShipments(ctx context.Context) (*RefreshSummary, error) {
	shipments, err := o.shipments.ListRefreshable(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list shipments: %w", err)
	}

	log := logger.Component("shipments")
	summary := &RefreshSummary{Total: len(shipments)}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	for i := range shipments {
		id := shipments[i].ID
		g.Go(func() error {
			update, err := o.UpdateTracking(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				log.Warn("Tracking refresh failed", zap.String("shipment_id", id), zap.Error(err))
				return nil
			}
			if update.StatusChanged {
				summary.StatusChanged++
			}
			summary.EventsAdded += update.EventsAdded
			return nil
		})
	}
	_ = g.Wait()

	log.Info("Tracking refresh finished",
		zap.Int("total", summary.Total),
		zap.Int("status_changed", summary.StatusChanged),
		zap.Int("events_added", summary.EventsAdded),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// BulkAllocate books every order independently on a bounded pool. Transport
// failures are retried up to settings.MaxAllocationRetries with linear backoff.
func (o *Orchestrator) BulkAllocate(ctx context.Context, orderIDs []string, user string) (*BulkResult, error) {
	settings, err := o.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{
		Total:   len(orderIDs),
		Results: make([]ShipmentResult, len(orderIDs)),
	}

	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	for i, orderID := range orderIDs {
		g.Go(func() error {
			result.Results[i] = *o.allocateWithRetry(ctx, orderID, user, settings.MaxAllocationRetries)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range result.Results {
		if r.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	logger.Component("shipments").Info("Bulk allocation finished",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (o *Orchestrator) allocateWithRetry(ctx context.Context, orderID, user string, retries int) *ShipmentResult {
	req := CreateRequest{OrderID: orderID, User: user, Bulk: true}

	for attempt := 1; ; attempt++ {
		res, err := o.CreateShipment(ctx, req)
		if err != nil {
			res = failureFromError(orderID, err)
		}
		res.Attempts = attempt
		if res.FailureKind != FailureTransport || attempt > retries {
			return res
		}

		logger.Component("shipments").Warn("Retrying booking after transport failure",
			zap.String("order_id", orderID),
			zap.Int("attempt", attempt),
			zap.String("message", res.Message),
		)

		timer := time.NewTimer(o.retryBackoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return res
		case <-timer.C:
		}
	}
}

func failureFromError(orderID string, err error) *ShipmentResult {
	if errors.Is(err, orderdomain.ErrOrderNotFound) || errors.Is(err, orderdomain.ErrInvalidOrder) {
		return failed(orderID, FailureInvalid, err.Error())
	}
	return failed(orderID, FailureInternal, err.Error())
}

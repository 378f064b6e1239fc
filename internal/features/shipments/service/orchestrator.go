package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carrier-engine/internal/core/cache"
	"carrier-engine/internal/core/logger"
	allocationdomain "carrier-engine/internal/features/allocation/domain"
	carrierdomain "carrier-engine/internal/features/carriers/domain"
	carrierports "carrier-engine/internal/features/carriers/ports"
	orderdomain "carrier-engine/internal/features/orders/domain"
	settingsdomain "carrier-engine/internal/features/settings/domain"
	settingsports "carrier-engine/internal/features/settings/ports"
	"carrier-engine/internal/features/shipments/domain"
	"carrier-engine/internal/features/shipments/ports"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultLockTTL      = 2 * time.Minute
	defaultRetryBackoff = time.Second
	persistTimeout      = 10 * time.Second
)

// OrderGateway reads orders and tells their source about bookings.
type OrderGateway interface {
	GetOrder(ctx context.Context, orderID string) (*orderdomain.Order, error)
	NotifyShipment(ctx context.Context, orderID string, info orderdomain.ShippingInfo)
}

// Allocator picks a carrier for an order.
type Allocator interface {
	Allocate(ctx context.Context, order *orderdomain.Order) (*allocationdomain.Decision, error)
}

// AdapterResolver hands out the logged adapter for a carrier.
type AdapterResolver interface {
	GetAdapter(ctx context.Context, carrier *carrierdomain.Carrier) (carrierports.CarrierAdapter, error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Orders    OrderGateway
	Carriers  carrierports.CarrierRepository
	Rates     carrierports.RateRepository
	Allocator Allocator
	Adapters  AdapterResolver
	Settings  settingsports.SettingsService
	Shipments ports.ShipmentRepository
	Locker    cache.Locker
}

// Options tune an Orchestrator. Zero values fall back to defaults.
type Options struct {
	Workers      int
	LockTTL      time.Duration
	RetryBackoff time.Duration
}

// Orchestrator books, cancels and tracks shipments.
type Orchestrator struct {
	orders    OrderGateway
	carriers  carrierports.CarrierRepository
	rates     carrierports.RateRepository
	allocator Allocator
	adapters  AdapterResolver
	settings  settingsports.SettingsService
	shipments ports.ShipmentRepository
	locker    cache.Locker

	workers      int
	lockTTL      time.Duration
	retryBackoff time.Duration
	now          func() time.Time
}

// NewOrchestrator creates an Orchestrator. A nil Locker uses an in-process one.
func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	o := &Orchestrator{
		orders:       deps.Orders,
		carriers:     deps.Carriers,
		rates:        deps.Rates,
		allocator:    deps.Allocator,
		adapters:     deps.Adapters,
		settings:     deps.Settings,
		shipments:    deps.Shipments,
		locker:       deps.Locker,
		workers:      max(opts.Workers, 1),
		lockTTL:      opts.LockTTL,
		retryBackoff: opts.RetryBackoff,
		now:          time.Now,
	}
	if o.locker == nil {
		o.locker = cache.NewLocalLocker()
	}
	if o.lockTTL <= 0 {
		o.lockTTL = defaultLockTTL
	}
	if o.retryBackoff <= 0 {
		o.retryBackoff = defaultRetryBackoff
	}
	return o
}

func orderLockKey(orderID string) string       { return "order:" + orderID }
func shipmentLockKey(shipmentID string) string { return "shipment:" + shipmentID }

// lock waits for key at most the lock TTL.
func (o *Orchestrator) lock(ctx context.Context, key string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, o.lockTTL)
	defer cancel()
	return o.locker.Acquire(waitCtx, key, o.lockTTL)
}

// CreateShipment books a carrier for one order. Expected failures come back
// as a result with a FailureKind; errors mean the order could not be read or
// storage failed before any carrier call.
func (o *Orchestrator) CreateShipment(ctx context.Context, req CreateRequest) (*ShipmentResult, error) {
	log := logger.Component("shipments").With(zap.String("order_id", req.OrderID))

	release, err := o.lock(ctx, orderLockKey(req.OrderID))
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return failed(req.OrderID, FailureConflict, fmt.Sprintf("order %s is already being booked", req.OrderID)), nil
		}
		return nil, fmt.Errorf("service: failed to lock order %s: %w", req.OrderID, err)
	}
	defer release()

	order, err := o.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	settings, err := o.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := o.shipments.ActiveForOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load active shipment: %w", err)
	}
	if existing != nil {
		if !req.Force {
			return failed(order.ID, FailureConflict, fmt.Sprintf(
				"order %s already has an active shipment with tracking number %s", order.ID, existing.TrackingNumber,
			)), nil
		}
		if existing.Status().IsFinal() {
			return failed(order.ID, FailureConflict, fmt.Sprintf(
				"active shipment %s is %s and cannot be replaced", existing.TrackingNumber, existing.Status(),
			)), nil
		}
	}

	// Everything that can reject the booking runs before the existing
	// shipment is cancelled with its carrier.
	if err := order.Validate(); err != nil {
		return failed(order.ID, FailureInvalid, err.Error()), nil
	}
	if order.IsCOD() && !settings.CODAllowed(order.CODAmount) {
		return failed(order.ID, FailureInvalid, fmt.Sprintf(
			"COD amount %.2f exceeds the limit of %.2f", order.CODAmount, settings.MaxCODAmount,
		)), nil
	}

	carrier, method, ruleUsed, res, err := o.pickCarrier(ctx, req, order)
	if err != nil || res != nil {
		return res, err
	}
	log = log.With(zap.String("carrier", carrier.Code))

	adapter, err := o.adapters.GetAdapter(ctx, carrier)
	if err != nil {
		return failed(order.ID, FailureNoCarrier, fmt.Sprintf("carrier %s is not configured: %v", carrier.Code, err)), nil
	}

	var replaced *domain.Shipment
	if existing != nil {
		if res := o.replace(ctx, existing); res != nil {
			res.OrderID = order.ID
			return res, nil
		}
		replaced = existing
		log.Info("Existing shipment cancelled for forced rebooking",
			zap.String("shipment_id", existing.ID),
			zap.String("awb", existing.AWBNumber),
		)
	}

	booking, err := adapter.CreateShipment(ctx, BuildShipmentRequest(order, settings))
	if err != nil {
		res := failed(order.ID, FailureTransport, replacedNote(replaced)+err.Error())
		res.CarrierCode = carrier.Code
		return res, nil
	}
	if !booking.Success {
		res := failed(order.ID, FailureRejected, replacedNote(replaced)+booking.Message)
		res.CarrierCode = carrier.Code
		return res, nil
	}

	shipment := o.newShipment(ctx, order, settings, carrier, booking)
	shipment.AssignmentMethod = method
	shipment.RuleUsed = ruleUsed
	shipment.CreatedBy = req.User

	res = &ShipmentResult{
		Success:          true,
		OrderID:          order.ID,
		ShipmentID:       shipment.ID,
		CarrierID:        carrier.ID,
		CarrierCode:      carrier.Code,
		CarrierName:      carrier.Name,
		AWBNumber:        shipment.AWBNumber,
		TrackingNumber:   shipment.TrackingNumber,
		TrackingURL:      shipment.TrackingURL,
		LabelURL:         shipment.LabelURL,
		AssignmentMethod: method,
		RuleUsed:         ruleUsed,
		Message:          booking.Message,
	}

	info := orderdomain.ShippingInfo{
		ShipmentID:  shipment.ID,
		CarrierCode: carrier.Code,
		AWBNumber:   shipment.AWBNumber,
		TrackingURL: shipment.TrackingURL,
		AssignedAt:  &shipment.CreatedAt,
	}

	// The carrier has booked the parcel; store it even if the caller went away.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := o.shipments.SaveBooking(persistCtx, shipment, info); err != nil {
		log.Error("Shipment booked but not stored, reconcile manually",
			zap.String("awb", shipment.AWBNumber),
			zap.String("tracking_number", shipment.TrackingNumber),
			zap.Error(err),
		)
		res.ShipmentID = ""
		res.ReconciliationRequired = true
		res.Message = fmt.Sprintf("shipment booked with %s as %s but could not be saved: %v", carrier.Code, shipment.AWBNumber, err)
		return res, nil
	}

	o.orders.NotifyShipment(persistCtx, order.ID, info)

	log.Info("Shipment created",
		zap.String("shipment_id", shipment.ID),
		zap.String("awb", shipment.AWBNumber),
		zap.String("method", string(method)),
	)
	return res, nil
}

// replacedNote prefixes a booking failure with the AWB already cancelled for it.
func replacedNote(replaced *domain.Shipment) string {
	if replaced == nil {
		return ""
	}
	return fmt.Sprintf("existing shipment %s was cancelled but rebooking failed: ", replaced.AWBNumber)
}

// replace cancels existing so a forced booking can proceed. It returns a
// failure result when the existing shipment cannot be cancelled.
func (o *Orchestrator) replace(ctx context.Context, existing *domain.Shipment) *ShipmentResult {
	cancelled, err := o.cancelShipment(ctx, existing.ID)
	if err != nil {
		return failed("", FailureInternal, err.Error())
	}
	if !cancelled.Success {
		kind := FailureRejected
		if cancelled.transport {
			kind = FailureTransport
		}
		return failed("", kind, fmt.Sprintf("failed to cancel existing shipment %s: %s", existing.TrackingNumber, cancelled.Message))
	}
	return nil
}

// pickCarrier resolves the carrier from the request or the allocation engine.
// A non-nil result means the booking stops there.
func (o *Orchestrator) pickCarrier(ctx context.Context, req CreateRequest, order *orderdomain.Order) (*carrierdomain.Carrier, domain.AssignmentMethod, string, *ShipmentResult, error) {
	if req.CarrierCode != "" {
		carrier, err := o.carriers.GetByCode(ctx, req.CarrierCode)
		if errors.Is(err, carrierdomain.ErrCarrierNotFound) {
			return nil, "", "", failed(order.ID, FailureNoCarrier, fmt.Sprintf("carrier %s not found", req.CarrierCode)), nil
		}
		if err != nil {
			return nil, "", "", nil, fmt.Errorf("service: failed to load carrier %s: %w", req.CarrierCode, err)
		}
		if !carrier.IsActive() {
			return nil, "", "", failed(order.ID, FailureNoCarrier, fmt.Sprintf("carrier %s is %s", carrier.Code, carrier.Status)), nil
		}
		if !carrier.SupportsPayment(order.IsCOD()) {
			return nil, "", "", failed(order.ID, FailureInvalid, fmt.Sprintf("carrier %s does not accept %s orders", carrier.Code, order.PaymentType)), nil
		}
		return carrier, domain.AssignmentManual, "", nil, nil
	}

	decision, err := o.allocator.Allocate(ctx, order)
	if errors.Is(err, allocationdomain.ErrNoCarrierFound) {
		return nil, "", "", failed(order.ID, FailureNoCarrier, err.Error()), nil
	}
	if err != nil {
		return nil, "", "", nil, err
	}

	if req.Bulk {
		return decision.Carrier, domain.AssignmentBulk, fmt.Sprintf("%s: %s", decision.Method, decision.Reason), nil, nil
	}
	return decision.Carrier, decision.Method, decision.Reason, nil, nil
}

func (o *Orchestrator) newShipment(ctx context.Context, order *orderdomain.Order, settings settingsdomain.ShippingSettings, carrier *carrierdomain.Carrier, booking *carrierdomain.BookingResult) *domain.Shipment {
	shipment := domain.NewShipment(o.now().UTC())
	shipment.OrderID = order.ID
	shipment.OrderNumber = order.OrderNumber
	shipment.CarrierID = carrier.ID
	shipment.CarrierCode = carrier.Code
	shipment.AWBNumber = booking.AWBNumber
	shipment.TrackingNumber = booking.TrackingNumber
	if shipment.TrackingNumber == "" {
		shipment.TrackingNumber = booking.AWBNumber
	}
	shipment.TrackingURL = carrier.TrackingURL(shipment.TrackingNumber)
	shipment.LabelURL = booking.LabelURL
	shipment.CarrierResponse = booking.RawResponse

	shipment.SetDimensions(settings.WeightOrDefault(order.WeightKg), order.LengthCm, order.BreadthCm, order.HeightCm)
	shipment.IsCOD = order.IsCOD()
	if shipment.IsCOD {
		shipment.CODAmount = order.CODAmount
	}
	shipment.PickupAddress = settings.Pickup
	shipment.DeliveryAddress = order.Address
	shipment.ShippingCost = o.shippingCost(ctx, carrier, shipment)
	return shipment
}

// shippingCost quotes the carrier's rate card for the chargeable weight. Zero when no card applies.
func (o *Orchestrator) shippingCost(ctx context.Context, carrier *carrierdomain.Carrier, shipment *domain.Shipment) decimal.Decimal {
	if o.rates == nil {
		return decimal.Zero
	}

	log := logger.Component("shipments").With(zap.String("carrier", carrier.Code))
	rates, err := o.rates.RatesForCarrier(ctx, carrier.ID)
	if err != nil {
		log.Warn("Failed to load rates", zap.Error(err))
		return decimal.Zero
	}
	zones, err := o.rates.ZonesForCarrier(ctx, carrier.ID)
	if err != nil {
		log.Warn("Failed to load zones", zap.Error(err))
		return decimal.Zero
	}

	weight := decimal.NewFromFloat(shipment.ChargeableWeight())
	cost, _ := carrierdomain.QuoteRate(rates, zones, shipment.DeliveryAddress.State, shipment.DeliveryAddress.Pincode, weight, shipment.IsCOD)
	return cost
}

// BuildShipmentRequest maps an order and the pickup settings to a carrier booking payload.
func BuildShipmentRequest(order *orderdomain.Order, settings settingsdomain.ShippingSettings) carrierdomain.ShipmentRequest {
	req := carrierdomain.ShipmentRequest{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		CustomerName:    order.Customer.Name,
		CustomerPhone:   order.Customer.Phone,
		CustomerEmail:   order.Customer.Email,
		AddressLine1:    order.Address.Line1,
		AddressLine2:    order.Address.Line2,
		City:            order.Address.City,
		State:           order.Address.State,
		Pincode:         order.Address.Pincode,
		Country:         order.Address.Country,
		WeightKg:        settings.WeightOrDefault(order.WeightKg),
		LengthCm:        order.LengthCm,
		BreadthCm:       order.BreadthCm,
		HeightCm:        order.HeightCm,
		PaymentType:     carrierdomain.PaymentPrepaid,
		TotalAmount:     order.TotalAmount,
		ItemCount:       order.ItemCount(),
		ItemDescription: order.ItemDescription(),
		PickupName:      settings.Pickup.Name,
		PickupAddress:   settings.Pickup.Address,
		PickupCity:      settings.Pickup.City,
		PickupState:     settings.Pickup.State,
		PickupPincode:   settings.Pickup.Pincode,
		PickupPhone:     settings.Pickup.Phone,
	}
	if order.IsCOD() {
		req.PaymentType = carrierdomain.PaymentCOD
		req.CODAmount = order.CODAmount
	}
	return req
}

// GetShipment returns a shipment with its tracking events and NDRs.
func (o *Orchestrator) GetShipment(ctx context.Context, shipmentID string) (*ShipmentDetails, error) {
	shipment, err := o.shipments.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	events, err := o.shipments.TrackingEvents(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load tracking events: %w", err)
	}
	ndrs, err := o.shipments.ListNDRs(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load ndrs: %w", err)
	}
	return &ShipmentDetails{Shipment: shipment, Events: events, NDRs: ndrs}, nil
}

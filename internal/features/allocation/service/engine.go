package service

import (
	"context"
	"errors"
	"fmt"

	"carrier-engine/internal/core/logger"
	"carrier-engine/internal/features/allocation/domain"
	carrierdomain "carrier-engine/internal/features/carriers/domain"
	carrierports "carrier-engine/internal/features/carriers/ports"
	orderdomain "carrier-engine/internal/features/orders/domain"
	ruledomain "carrier-engine/internal/features/rules/domain"
	settingsdomain "carrier-engine/internal/features/settings/domain"
	settingsports "carrier-engine/internal/features/settings/ports"
	shipmentdomain "carrier-engine/internal/features/shipments/domain"

	"go.uber.org/zap"
)

// RuleSource answers the rule lookups the engine needs.
type RuleSource interface {
	PincodeCandidates(ctx context.Context, pincode string) ([]ruledomain.PincodeRule, error)
	ChannelCandidates(ctx context.Context, channel, paymentType string) ([]ruledomain.ChannelShippingRule, error)
	MatchingShippingRules(ctx context.Context, oc ruledomain.OrderContext) ([]ruledomain.ShippingRule, error)
}

// AdapterResolver hands out the logged adapter for a carrier.
type AdapterResolver interface {
	GetAdapter(ctx context.Context, carrier *carrierdomain.Carrier) (carrierports.CarrierAdapter, error)
}

// Engine picks a carrier for an order by walking pincode rules, channel
// rules, generic rules, the primary carrier and finally any active carrier.
type Engine struct {
	carriers carrierports.CarrierRepository
	rules    RuleSource
	settings settingsports.SettingsService
	adapters AdapterResolver
	rates    carrierports.RateRepository
	workers  int
}

// NewEngine creates an Engine. rates may be nil, in which case recommendations carry no price.
func NewEngine(
	carriers carrierports.CarrierRepository,
	rules RuleSource,
	settings settingsports.SettingsService,
	adapters AdapterResolver,
	rates carrierports.RateRepository,
	workers int,
) *Engine {
	return &Engine{
		carriers: carriers,
		rules:    rules,
		settings: settings,
		adapters: adapters,
		rates:    rates,
		workers:  max(workers, 1),
	}
}

// allocation carries one Allocate call's inputs.
type allocation struct {
	order    *orderdomain.Order
	oc       ruledomain.OrderContext
	settings settingsdomain.ShippingSettings
	carriers map[string]*carrierdomain.Carrier
}

// Allocate returns the carrier for order or domain.ErrNoCarrierFound.
func (e *Engine) Allocate(ctx context.Context, order *orderdomain.Order) (*domain.Decision, error) {
	settings, err := e.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocation: failed to load settings: %w", err)
	}

	snapshot := order.Clone()
	a := &allocation{
		order:    snapshot,
		oc:       NewOrderContext(snapshot, settings),
		settings: settings,
		carriers: make(map[string]*carrierdomain.Carrier),
	}

	steps := []func(context.Context, *allocation) (*domain.Decision, error){
		e.byPincode,
		e.byChannel,
		e.byShippingRules,
		e.byPrimaryCarrier,
		e.byAnyActiveCarrier,
	}
	for _, step := range steps {
		decision, err := step(ctx, a)
		if err != nil {
			return nil, err
		}
		if decision != nil {
			logger.Component("allocation").Info("Carrier allocated",
				zap.String("order_id", order.ID),
				zap.String("carrier", decision.Carrier.Code),
				zap.String("method", string(decision.Method)),
				zap.String("reason", decision.Reason),
			)
			return decision, nil
		}
	}

	logger.Component("allocation").Warn("No carrier found",
		zap.String("order_id", order.ID),
		zap.String("pincode", snapshot.Address.Pincode),
	)
	return nil, fmt.Errorf("%w for order %s", domain.ErrNoCarrierFound, order.ID)
}

func (e *Engine) byPincode(ctx context.Context, a *allocation) (*domain.Decision, error) {
	if !a.settings.EnablePincodeRules || a.order.Address.Pincode == "" {
		return nil, nil
	}

	rules, err := e.rules.PincodeCandidates(ctx, a.order.Address.Pincode)
	if err != nil {
		return nil, fmt.Errorf("allocation: %w", err)
	}

	isCOD := a.order.IsCOD()
	for _, rule := range rules {
		if !rule.Allows(isCOD) {
			continue
		}
		carrier, err := e.eligible(ctx, a, rule.CarrierID)
		if err != nil {
			return nil, err
		}
		if carrier != nil {
			return &domain.Decision{
				Carrier: carrier,
				Method:  shipmentdomain.AssignmentPincodeBased,
				Reason:  "pincode rule " + rule.Pincode,
			}, nil
		}
	}
	return nil, nil
}

func (e *Engine) byChannel(ctx context.Context, a *allocation) (*domain.Decision, error) {
	if !a.settings.EnableChannelRules || a.order.Channel == "" {
		return nil, nil
	}

	rules, err := e.rules.ChannelCandidates(ctx, a.order.Channel, string(a.order.PaymentType))
	if err != nil {
		return nil, fmt.Errorf("allocation: %w", err)
	}

	for _, rule := range rules {
		carrier, err := e.eligible(ctx, a, rule.CarrierID)
		if err != nil {
			return nil, err
		}
		if carrier != nil {
			return &domain.Decision{
				Carrier: carrier,
				Method:  shipmentdomain.AssignmentChannelBased,
				Reason:  fmt.Sprintf("channel rule %s/%s", rule.Channel, rule.PaymentType),
			}, nil
		}
	}
	return nil, nil
}

// byShippingRules tries each matching rule's assigned carrier, then its
// fallback carrier. The fallback is not followed any further.
func (e *Engine) byShippingRules(ctx context.Context, a *allocation) (*domain.Decision, error) {
	rules, err := e.rules.MatchingShippingRules(ctx, a.oc)
	if err != nil {
		return nil, fmt.Errorf("allocation: %w", err)
	}

	for i := range rules {
		rule := &rules[i]
		for _, carrierID := range []string{rule.AssignedCarrierID, rule.FallbackCarrierID} {
			if carrierID == "" {
				continue
			}
			carrier, err := e.eligible(ctx, a, carrierID)
			if err != nil {
				return nil, err
			}
			if carrier != nil {
				return &domain.Decision{
					Carrier: carrier,
					Method:  shipmentdomain.AssignmentRuleBased,
					Rule:    rule,
					Reason:  rule.Name,
				}, nil
			}
		}
	}
	return nil, nil
}

func (e *Engine) byPrimaryCarrier(ctx context.Context, a *allocation) (*domain.Decision, error) {
	if a.settings.PrimaryCarrierID == "" {
		return nil, nil
	}

	carrier, err := e.eligible(ctx, a, a.settings.PrimaryCarrierID)
	if err != nil || carrier == nil {
		return nil, err
	}
	return &domain.Decision{
		Carrier: carrier,
		Method:  shipmentdomain.AssignmentRuleBased,
		Reason:  "primary carrier",
	}, nil
}

func (e *Engine) byAnyActiveCarrier(ctx context.Context, a *allocation) (*domain.Decision, error) {
	carriers, err := e.carriers.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocation: failed to list carriers: %w", err)
	}

	isCOD := a.order.IsCOD()
	for i := range carriers {
		carrier := &carriers[i]
		if !carrier.IsActive() || !carrier.SupportsPayment(isCOD) {
			continue
		}
		if e.passesGate(ctx, a, carrier) {
			return &domain.Decision{
				Carrier: carrier,
				Method:  shipmentdomain.AssignmentRuleBased,
				Reason:  "default carrier",
			}, nil
		}
	}
	return nil, nil
}

// eligible loads the carrier and returns it only when it is active and
// passes the serviceability gate. Unknown carriers are skipped.
func (e *Engine) eligible(ctx context.Context, a *allocation, carrierID string) (*carrierdomain.Carrier, error) {
	carrier, ok := a.carriers[carrierID]
	if !ok {
		var err error
		carrier, err = e.carriers.Get(ctx, carrierID)
		if err != nil {
			if !errors.Is(err, carrierdomain.ErrCarrierNotFound) {
				return nil, fmt.Errorf("allocation: failed to load carrier %s: %w", carrierID, err)
			}
			logger.Component("allocation").Warn("Rule references unknown carrier", zap.String("carrier_id", carrierID))
			carrier = nil
		}
		a.carriers[carrierID] = carrier
	}

	if !carrier.IsActive() {
		return nil, nil
	}
	if !e.passesGate(ctx, a, carrier) {
		return nil, nil
	}
	return carrier, nil
}

// passesGate checks serviceability when settings ask for it. Any adapter
// error fails the gate.
func (e *Engine) passesGate(ctx context.Context, a *allocation, carrier *carrierdomain.Carrier) bool {
	if !a.settings.CheckServiceabilityBeforeAllocation {
		return true
	}

	log := logger.Component("allocation").With(
		zap.String("carrier", carrier.Code),
		zap.String("pincode", a.order.Address.Pincode),
	)

	adapter, err := e.adapters.GetAdapter(ctx, carrier)
	if err != nil {
		log.Warn("Serviceability gate failed to resolve adapter", zap.Error(err))
		return false
	}

	isCOD := a.order.IsCOD()
	result, err := adapter.CheckServiceability(ctx, a.settings.Pickup.Pincode, a.order.Address.Pincode, isCOD)
	if err != nil {
		log.Warn("Serviceability check failed", zap.Error(err))
		return false
	}

	ok := result.Serviceable && (!isCOD || result.CODAvailable)
	if !ok {
		log.Debug("Carrier not serviceable", zap.String("message", result.Message))
	}
	return ok
}

// NewOrderContext snapshots the attributes shipping rules can test.
func NewOrderContext(order *orderdomain.Order, settings settingsdomain.ShippingSettings) ruledomain.OrderContext {
	return ruledomain.OrderContext{
		ruledomain.FieldPincode:     order.Address.Pincode,
		ruledomain.FieldState:       order.Address.State,
		ruledomain.FieldCity:        order.Address.City,
		ruledomain.FieldTotalAmount: order.TotalAmount,
		ruledomain.FieldWeight:      settings.WeightOrDefault(order.WeightKg),
		ruledomain.FieldChannel:     order.Channel,
		ruledomain.FieldPaymentType: string(order.PaymentType),
		ruledomain.FieldIsCOD:       order.IsCOD(),
		ruledomain.FieldCODAmount:   order.CODAmount,
		ruledomain.FieldItemCount:   order.ItemCount(),
	}
}

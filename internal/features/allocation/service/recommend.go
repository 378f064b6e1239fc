package service

import (
	"context"
	"errors"
	"fmt"

	"carrier-engine/internal/core/logger"
	"carrier-engine/internal/features/allocation/domain"
	carrierdomain "carrier-engine/internal/features/carriers/domain"
	orderdomain "carrier-engine/internal/features/orders/domain"
	settingsdomain "carrier-engine/internal/features/settings/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Recommend runs allocation without booking and quotes every active carrier.
// Serviceability is always probed here, whatever the gate setting.
func (e *Engine) Recommend(ctx context.Context, order *orderdomain.Order) (*domain.Recommendation, error) {
	rec := &domain.Recommendation{OrderID: order.ID}

	decision, err := e.Allocate(ctx, order)
	switch {
	case err == nil:
		rec.Decision = decision
	case !errors.Is(err, domain.ErrNoCarrierFound):
		return nil, err
	}

	settings, err := e.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocation: failed to load settings: %w", err)
	}

	carriers, err := e.carriers.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocation: failed to list carriers: %w", err)
	}

	snapshot := order.Clone()
	rec.Options = make([]domain.CarrierOption, len(carriers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range carriers {
		g.Go(func() error {
			rec.Options[i] = e.quote(gctx, &carriers[i], snapshot, settings)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (e *Engine) quote(ctx context.Context, carrier *carrierdomain.Carrier, order *orderdomain.Order, settings settingsdomain.ShippingSettings) domain.CarrierOption {
	opt := domain.CarrierOption{
		CarrierID:      carrier.ID,
		CarrierCode:    carrier.Code,
		CarrierName:    carrier.Name,
		APISuccessRate: carrier.Metrics.APISuccessRate(),
	}
	log := logger.Component("allocation").With(zap.String("carrier", carrier.Code))

	adapter, err := e.adapters.GetAdapter(ctx, carrier)
	if err != nil {
		opt.Message = err.Error()
		return opt
	}

	result, err := adapter.CheckServiceability(ctx, settings.Pickup.Pincode, order.Address.Pincode, order.IsCOD())
	if err != nil {
		log.Warn("Serviceability probe failed", zap.Error(err))
		opt.Message = err.Error()
	} else {
		opt.Serviceable = result.Serviceable
		opt.CODAvailable = result.CODAvailable
		opt.EstimatedDeliveryDays = result.EstimatedDeliveryDays
		opt.Message = result.Message
	}

	if e.rates == nil {
		return opt
	}

	rates, err := e.rates.RatesForCarrier(ctx, carrier.ID)
	if err != nil {
		log.Warn("Failed to load rates", zap.Error(err))
		return opt
	}
	zones, err := e.rates.ZonesForCarrier(ctx, carrier.ID)
	if err != nil {
		log.Warn("Failed to load zones", zap.Error(err))
		return opt
	}

	weight := decimal.NewFromFloat(settings.WeightOrDefault(order.WeightKg))
	if rate, ok := carrierdomain.QuoteRate(rates, zones, order.Address.State, order.Address.Pincode, weight, order.IsCOD()); ok {
		opt.EstimatedRate = &rate
	}
	return opt
}

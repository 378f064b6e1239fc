package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"carrier-engine/internal/features/allocation/domain"
	adapter "carrier-engine/internal/features/carriers/adapters"
	carrierdomain "carrier-engine/internal/features/carriers/domain"
	carrierports "carrier-engine/internal/features/carriers/ports"
	orderdomain "carrier-engine/internal/features/orders/domain"
	ruledomain "carrier-engine/internal/features/rules/domain"
	ruleservice "carrier-engine/internal/features/rules/service"
	settingsadapters "carrier-engine/internal/features/settings/adapters"
	settingsdomain "carrier-engine/internal/features/settings/domain"
	settingsservice "carrier-engine/internal/features/settings/service"
	shipmentdomain "carrier-engine/internal/features/shipments/domain"
	"carrier-engine/internal/storage/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gateAdapter answers serviceability from a fixed result or error.
type gateAdapter struct {
	*adapter.MockAdapter
	result *carrierdomain.ServiceabilityResult
	err    error

	mu    sync.Mutex
	calls int
}

func (g *gateAdapter) CheckServiceability(ctx context.Context, _, _ string, _ bool) (*carrierdomain.ServiceabilityResult, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return g.result, g.err
}

func serviceable(cod bool) *gateAdapter {
	return &gateAdapter{
		MockAdapter: adapter.NewMockAdapter(),
		result:      &carrierdomain.ServiceabilityResult{Serviceable: true, CODAvailable: cod, PrepaidAvailable: true, EstimatedDeliveryDays: 2},
	}
}

func notServiceable() *gateAdapter {
	return &gateAdapter{
		MockAdapter: adapter.NewMockAdapter(),
		result:      &carrierdomain.ServiceabilityResult{Message: "Pincode not serviceable"},
	}
}

// resolver maps carrier codes to adapters; unknown codes get the mock.
type resolver struct {
	adapters map[string]carrierports.CarrierAdapter
	mock     *adapter.MockAdapter
}

func (r *resolver) GetAdapter(ctx context.Context, carrier *carrierdomain.Carrier) (carrierports.CarrierAdapter, error) {
	if a, ok := r.adapters[carrier.Code]; ok {
		return a, nil
	}
	return r.mock, nil
}

type fixture struct {
	store    *memory.Store
	settings *settingsservice.SettingsServiceImpl
	resolver *resolver
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	settings := settingsservice.NewSettingsService(settingsadapters.NewMemorySettingsRepository())
	res := &resolver{adapters: map[string]carrierports.CarrierAdapter{}, mock: adapter.NewMockAdapter()}

	return &fixture{
		store:    store,
		settings: settings,
		resolver: res,
		engine: NewEngine(
			store.Carriers,
			ruleservice.NewRuleService(store.Rules, store.Carriers),
			settings,
			res,
			store.Rates,
			4,
		),
	}
}

func (f *fixture) carrier(t *testing.T, id string, priority int, status carrierdomain.CarrierStatus) {
	t.Helper()
	require.NoError(t, f.store.Carriers.Save(context.Background(), &carrierdomain.Carrier{
		ID:              id,
		Name:            "Carrier " + id,
		Code:            id,
		SupportsCOD:     true,
		SupportsPrepaid: true,
		Status:          status,
		Priority:        priority,
	}))
}

func (f *fixture) updateSettings(t *testing.T, fn func(*settingsdomain.ShippingSettings)) {
	t.Helper()
	s := settingsdomain.DefaultSettings()
	s.Pickup.Pincode = "110001"
	fn(&s)
	_, err := f.settings.Update(context.Background(), s)
	require.NoError(t, err)
}

func codOrder() *orderdomain.Order {
	return &orderdomain.Order{
		ID:          "o1",
		OrderNumber: "ORD-1",
		Channel:     "website",
		PaymentType: orderdomain.PaymentCOD,
		TotalAmount: 1500,
		CODAmount:   1500,
		WeightKg:    0.8,
		Address:     orderdomain.Address{City: "Bengaluru", State: "Karnataka", Pincode: "560001"},
		Items:       []orderdomain.OrderItem{{Quantity: 1, Name: "Shirt"}},
	}
}

func TestAllocate_PincodeRulePriority(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.carrier(t, "a", 1, carrierdomain.CarrierStatusActive)
	f.carrier(t, "b", 9, carrierdomain.CarrierStatusActive)

	_, err := f.store.Rules.UpsertPincodeRule(ctx, &ruledomain.PincodeRule{Pincode: "560001", CarrierID: "b", Priority: 5, SupportsCOD: true, SupportsPrepaid: true, IsActive: true})
	require.NoError(t, err)
	_, err = f.store.Rules.UpsertPincodeRule(ctx, &ruledomain.PincodeRule{Pincode: "560001", CarrierID: "a", Priority: 10, SupportsCOD: true, IsActive: true})
	require.NoError(t, err)

	decision, err := f.engine.Allocate(ctx, codOrder())

	require.NoError(t, err)
	assert.Equal(t, "a", decision.Carrier.ID)
	assert.Equal(t, shipmentdomain.AssignmentPincodeBased, decision.Method)
	assert.Nil(t, decision.Rule)
}

func TestAllocate_PincodeRuleSkipsPaymentMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.carrier(t, "a", 1, carrierdomain.CarrierStatusActive)
	f.carrier(t, "b", 1, carrierdomain.CarrierStatusActive)

	_, _ = f.store.Rules.UpsertPincodeRule(ctx, &ruledomain.PincodeRule{Pincode: "560001", CarrierID: "a", Priority: 10, SupportsCOD: false, SupportsPrepaid: true, IsActive: true})
	_, _ = f.store.Rules.UpsertPincodeRule(ctx, &ruledomain.PincodeRule{Pincode: "560001", CarrierID: "b", Priority: 5, SupportsCOD: true, IsActive: true})

	decision, err := f.engine.Allocate(ctx, codOrder())

	require.NoError(t, err)
	assert.Equal(t, "b", decision.Carrier.ID)
}

func TestAllocate_PincodeRulesDisabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.carrier(t, "a", 1, carrierdomain.CarrierStatusActive)
	f.carrier(t, "z", 50, carrierdomain.CarrierStatusActive)
	_, _ = f.store.Rules.UpsertPincodeRule(ctx, &ruledomain.PincodeRule{Pincode: "560001", CarrierID: "a", Priority: 10, SupportsCOD: true, IsActive: true})
	f.updateSettings(t, func(s *settingsdomain.ShippingSettings) { s.EnablePincodeRules = false })

	decision, err := f.engine.Allocate(ctx, codOrder())

	require.NoError(t, err)
	assert.Equal(t, "z", decision.Carrier.ID)
	assert.Equal(t, "default carrier", decision.Reason)
}

func TestAllocate_ChannelRuleExactBeforeAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.carrier(t, "all", 1, carrierdomain.CarrierStatusActive)
	f.carrier(t, "cod", 1, carrierdomain.CarrierStatusActive)

	require.NoError(t, f.store.Rules.SaveChannelRule(ctx, &ruledomain.ChannelShippingRule{Channel: "website", PaymentType: ruledomain.PaymentMatchAll, CarrierID: "all", Priority: 100, IsActive: true}))
	require.NoError(t, f.store.Rules.SaveChannelRule(ctx, &ruledomain.ChannelShippingRule{Channel: "website", PaymentType: ruledomain.PaymentMatchCOD, CarrierID: "cod", Priority: 1, IsActive: true}))

	decision, err := f.engine.Allocate(ctx, codOrder())

	require.NoError(t, err)
	assert.Equal(t, "cod", decision.Carrier.ID)
	assert.Equal(t, shipmentdomain.AssignmentChannelBased, decision.Method)

	prepaid := codOrder()
	prepaid.PaymentType = orderdomain.PaymentPrepaid
	decision, err = f.engine.Allocate(ctx, prepaid)

	require.NoError(t, err)
	assert.Equal(t, "all", decision.Carrier.ID)
}

func TestAllocate_GenericRule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.carrier(t, "c", 1, carrierdomain.CarrierStatusActive)
	f.carrier(t, "z", 50, carrierdomain.CarrierStatusActive)

	rule := &ruledomain.ShippingRule{
		Name:              "High value",
		Field:             ruledomain.FieldTotalAmount,
		Operator:          ruledomain.OpGreaterThan,
		Value:             ruledomain.Scalar(1000),
		AssignedCarrierID: "c",
		Enabled:           true,
	}
	require.NoError(t, f.store.Rules.SaveShippingRule(ctx, rule))

	decision, err := f.engine.Allocate(ctx, codOrder())

	require.NoError(t, err)
	assert.Equal(t, "c", decision.Carrier.ID)
	assert.Equal(t, shipmentdomain.AssignmentRuleBased, decision.Method)
	require.NotNil(t, decision.Rule)
	assert.Equal(t, rule.ID, decision.Rule.ID)
}

func TestAllocate_DisabledRuleNeverMatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.carrier(t, "c", 1, carrierdomain.CarrierStatusActive)
	f.carrier(t, "z", 50, carrierdomain.CarrierStatusActive)

	require.NoError(t, f.store.Rules.SaveShippingRule(ctx, &ruledomain.ShippingRule{
		Name:              "Everything",
		Field:             ruledomain.FieldTotalAmount,
		Operator:          ruledomain.OpGreaterThan,
		Value:             ruledomain.Scalar(0),
		AssignedCarrierID: "c",
		Priority:          100,
		Enabled:           false,
	}))

	decision, err := f.engine.Allocate(ctx, codOrder())

	require.NoError(t, err)
	assert.Equal(t, "z", decision.Carrier.ID)
	assert.Nil(t, decision.Rule)
}

func TestAllocate_GenericRuleFallbackCarrier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.carrier(t, "c", 1, carrierdomain.CarrierStatusActive)
	f.carrier(t, "d", 1, carrierdomain.CarrierStatusActive)
	f.resolver.adapters["c"] = notServiceable()

	require.NoError(t, f.store.Rules.SaveShippingRule(ctx, &ruledomain.ShippingRule{
		Name:              "Karnataka",
		Field:             ruledomain.FieldState,
		Operator:          ruledomain.OpEquals,
		Value:             ruledomain.Scalar("Karnataka"),
		AssignedCarrierID: "c",
		FallbackCarrierID: "d",
		Enabled:           true,
	}))

	decision, err := f.engine.Allocate(ctx, codOrder())

	require.NoError(t, err)
	assert.Equal(t, "d", decision.Carrier.ID)
	assert.Equal(t, "Karnataka", decision.Reason)
}

func TestAllocate_PrimaryCarrier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.carrier(t, "primary", 1, carrierdomain.CarrierStatusActive)
	f.carrier(t, "z", 50, carrierdomain.CarrierStatusActive)
	f.updateSettings(t, func(s *settingsdomain.ShippingSettings) { s.PrimaryCarrierID = "primary" })

	decision, err := f.engine.Allocate(ctx, codOrder())

	require.NoError(t, err)
	assert.Equal(t, "primary", decision.Carrier.ID)
	assert.Equal(t, "primary carrier", decision.Reason)
}

func TestAllocate_NeverReturnsInactiveCarrier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.carrier(t, "off", 100, carrierdomain.CarrierStatusInactive)
	f.carrier(t, "test", 90, carrierdomain.CarrierStatusTesting)
	f.carrier(t, "on", 1, carrierdomain.CarrierStatusActive)
	f.updateSettings(t, func(s *settingsdomain.ShippingSettings) { s.PrimaryCarrierID = "off" })

	_, _ = f.store.Rules.UpsertPincodeRule(ctx, &ruledomain.PincodeRule{Pincode: "560001", CarrierID: "off", Priority: 10, SupportsCOD: true, IsActive: true})
	require.NoError(t, f.store.Rules.SaveChannelRule(ctx, &ruledomain.ChannelShippingRule{Channel: "website", PaymentType: ruledomain.PaymentMatchAll, CarrierID: "test", IsActive: true}))
	require.NoError(t, f.store.Rules.SaveShippingRule(ctx, &ruledomain.ShippingRule{
		Name: "any", Field: ruledomain.FieldPincode, Operator: ruledomain.OpStartsWith, Value: ruledomain.Scalar("5"),
		AssignedCarrierID: "off", FallbackCarrierID: "test", Enabled: true,
	}))

	decision, err := f.engine.Allocate(ctx, codOrder())

	require.NoError(t, err)
	assert.Equal(t, "on", decision.Carrier.ID)
	assert.True(t, decision.Carrier.IsActive())
}

func TestAllocate_UnserviceableFallsThroughToNoCarrier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.carrier(t, "a", 1, carrierdomain.CarrierStatusActive)
	gate := notServiceable()
	f.resolver.adapters["a"] = gate
	_, _ = f.store.Rules.UpsertPincodeRule(ctx, &ruledomain.PincodeRule{Pincode: "560001", CarrierID: "a", Priority: 10, SupportsCOD: true, IsActive: true})

	_, err := f.engine.Allocate(ctx, codOrder())

	assert.ErrorIs(t, err, domain.ErrNoCarrierFound)
	assert.Equal(t, 2, gate.calls, "pincode step and default step both probe")
}

func TestAllocate_GateDisabledIsFailOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.carrier(t, "a", 1, carrierdomain.CarrierStatusActive)
	gate := notServiceable()
	f.resolver.adapters["a"] = gate
	f.updateSettings(t, func(s *settingsdomain.ShippingSettings) { s.CheckServiceabilityBeforeAllocation = false })

	decision, err := f.engine.Allocate(ctx, codOrder())

	require.NoError(t, err)
	assert.Equal(t, "a", decision.Carrier.ID)
	assert.Zero(t, gate.calls)
}

func TestAllocate_GateErrorIsFailClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.carrier(t, "flaky", 10, carrierdomain.CarrierStatusActive)
	f.carrier(t, "steady", 1, carrierdomain.CarrierStatusActive)
	f.resolver.adapters["flaky"] = &gateAdapter{MockAdapter: adapter.NewMockAdapter(), err: errors.New("connection reset")}

	decision, err := f.engine.Allocate(ctx, codOrder())

	require.NoError(t, err)
	assert.Equal(t, "steady", decision.Carrier.ID)
}

func TestAllocate_CODRequiresCODAvailability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.carrier(t, "prepaid-only", 10, carrierdomain.CarrierStatusActive)
	f.carrier(t, "cod", 1, carrierdomain.CarrierStatusActive)
	f.resolver.adapters["prepaid-only"] = serviceable(false)

	decision, err := f.engine.Allocate(ctx, codOrder())

	require.NoError(t, err)
	assert.Equal(t, "cod", decision.Carrier.ID)
}

func TestAllocate_DefaultStepFiltersPaymentCapability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Carriers.Save(ctx, &carrierdomain.Carrier{ID: "p", Code: "p", SupportsPrepaid: true, Status: carrierdomain.CarrierStatusActive, Priority: 10}))

	_, err := f.engine.Allocate(ctx, codOrder())

	assert.ErrorIs(t, err, domain.ErrNoCarrierFound)
}

func TestAllocate_SnapshotIsIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.carrier(t, "a", 1, carrierdomain.CarrierStatusActive)
	order := codOrder()

	_, err := f.engine.Allocate(ctx, order)

	require.NoError(t, err)
	assert.Equal(t, "560001", order.Address.Pincode)
	assert.Len(t, order.Items, 1)
}

func TestNewOrderContext(t *testing.T) {
	order := codOrder()
	order.WeightKg = 0

	oc := NewOrderContext(order, settingsdomain.DefaultSettings())

	assert.Equal(t, "560001", oc[ruledomain.FieldPincode])
	assert.Equal(t, settingsdomain.DefaultWeightKg, oc[ruledomain.FieldWeight])
	assert.Equal(t, true, oc[ruledomain.FieldIsCOD])
	assert.Equal(t, "cod", oc[ruledomain.FieldPaymentType])
	assert.Equal(t, 1, oc[ruledomain.FieldItemCount])
}

func TestRecommend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.carrier(t, "a", 10, carrierdomain.CarrierStatusActive)
	f.carrier(t, "b", 5, carrierdomain.CarrierStatusActive)
	f.resolver.adapters["b"] = notServiceable()

	require.NoError(t, f.store.Rates.SaveRate(ctx, &carrierdomain.Rate{
		CarrierID: "a",
		MinWeight: decimal.Zero,
		MaxWeight: decimal.NewFromInt(5),
		BaseRate:  decimal.NewFromInt(40),
		CODCharge: decimal.NewFromInt(30),
	}))

	rec, err := f.engine.Recommend(ctx, codOrder())

	require.NoError(t, err)
	require.NotNil(t, rec.Decision)
	assert.Equal(t, "a", rec.Decision.Carrier.ID)
	require.Len(t, rec.Options, 2)

	a, b := rec.Options[0], rec.Options[1]
	assert.Equal(t, "a", a.CarrierCode)
	assert.True(t, a.Serviceable)
	assert.Equal(t, 3, a.EstimatedDeliveryDays)
	require.NotNil(t, a.EstimatedRate)
	assert.Equal(t, "70", a.EstimatedRate.String())

	assert.Equal(t, "b", b.CarrierCode)
	assert.False(t, b.Serviceable)
	assert.Equal(t, "Pincode not serviceable", b.Message)
	assert.Nil(t, b.EstimatedRate)
}

func TestRecommend_NoCarrier(t *testing.T) {
	f := newFixture(t)

	rec, err := f.engine.Recommend(context.Background(), codOrder())

	require.NoError(t, err)
	assert.Nil(t, rec.Decision)
	assert.Empty(t, rec.Options)
}

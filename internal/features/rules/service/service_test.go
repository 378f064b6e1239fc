package service

import (
	"context"
	"strings"
	"testing"

	carrierdomain "carrier-engine/internal/features/carriers/domain"
	"carrier-engine/internal/features/rules/domain"
	"carrier-engine/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*RuleService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	for _, code := range []string{"delhivery", "bluedart"} {
		require.NoError(t, store.Carriers.Save(context.Background(), &carrierdomain.Carrier{
			ID:     code + "-id",
			Code:   code,
			Name:   strings.ToUpper(code),
			Status: carrierdomain.CarrierStatusActive,
		}))
	}
	return NewRuleService(store.Rules, store.Carriers), store
}

func TestPincodeCandidates(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	for _, r := range []domain.PincodeRule{
		{Pincode: "560001", CarrierID: "a", Priority: 5, IsActive: true},
		{Pincode: "560001", CarrierID: "b", Priority: 10, IsActive: true},
		{Pincode: "560001", CarrierID: "c", Priority: 99, IsActive: false},
		{Pincode: "110001", CarrierID: "d", Priority: 50, IsActive: true},
	} {
		_, err := store.Rules.UpsertPincodeRule(ctx, &r)
		require.NoError(t, err)
	}

	rules, err := svc.PincodeCandidates(ctx, "560001")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "b", rules[0].CarrierID)
	assert.Equal(t, "a", rules[1].CarrierID)

	rules, err = svc.PincodeCandidates(ctx, "999999")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestChannelCandidates_ExactBeforeAll(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	for _, r := range []domain.ChannelShippingRule{
		{Channel: "amazon", PaymentType: domain.PaymentMatchAll, CarrierID: "all-high", Priority: 100, IsActive: true},
		{Channel: "amazon", PaymentType: domain.PaymentMatchCOD, CarrierID: "cod-low", Priority: 1, IsActive: true},
		{Channel: "amazon", PaymentType: domain.PaymentMatchCOD, CarrierID: "cod-high", Priority: 5, IsActive: true},
		{Channel: "amazon", PaymentType: domain.PaymentMatchPrepaid, CarrierID: "prepaid", Priority: 50, IsActive: true},
		{Channel: "amazon", PaymentType: domain.PaymentMatchCOD, CarrierID: "inactive", Priority: 500, IsActive: false},
	} {
		require.NoError(t, svc.SaveChannelRule(ctx, &r))
	}

	rules, err := svc.ChannelCandidates(ctx, "Amazon", "cod")
	require.NoError(t, err)

	var ids []string
	for _, r := range rules {
		ids = append(ids, r.CarrierID)
	}
	assert.Equal(t, []string{"cod-high", "cod-low", "all-high"}, ids)
}

func TestMatchingShippingRules(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	rules := []domain.ShippingRule{
		{Name: "Big orders", Field: domain.FieldTotalAmount, Operator: domain.OpGreaterThan, Value: domain.Scalar("1000"), AssignedCarrierID: "big", Priority: 10, Enabled: true},
		{Name: "Karnataka", Field: domain.FieldState, Operator: domain.OpInList, Value: domain.List("KA", "TN"), AssignedCarrierID: "south", Priority: 20, Enabled: true},
		{Name: "Broken", Field: domain.FieldCity, Operator: domain.OpGreaterThan, Value: domain.Scalar("10"), AssignedCarrierID: "never", Priority: 30, Enabled: true},
		{Name: "Off", Field: domain.FieldState, Operator: domain.OpEquals, Value: domain.Scalar("KA"), AssignedCarrierID: "off", Priority: 40, Enabled: false},
	}
	for i := range rules {
		require.NoError(t, svc.SaveShippingRule(ctx, &rules[i]))
	}

	matched, err := svc.MatchingShippingRules(ctx, domain.OrderContext{
		domain.FieldTotalAmount: 1500.0,
		domain.FieldState:       "KA",
		domain.FieldCity:        "Bengaluru",
	})
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, "south", matched[0].AssignedCarrierID)
	assert.Equal(t, "big", matched[1].AssignedCarrierID)
}

func TestSaveRules_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	err := svc.SaveShippingRule(ctx, &domain.ShippingRule{Field: domain.FieldState, Operator: domain.OpEquals})
	assert.ErrorIs(t, err, domain.ErrInvalidRule)

	err = svc.SaveShippingRule(ctx, &domain.ShippingRule{Field: domain.FieldState, Operator: "regex", AssignedCarrierID: "x"})
	assert.ErrorIs(t, err, domain.ErrUnknownOperator)

	err = svc.SaveChannelRule(ctx, &domain.ChannelShippingRule{Channel: "web", PaymentType: "card", CarrierID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidRule)

	err = svc.SaveChannelRule(ctx, &domain.ChannelShippingRule{PaymentType: domain.PaymentMatchAll, CarrierID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidRule)
}

func TestImportPincodeRules(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	csv := strings.Join([]string{
		"pincode,carrier_code,priority,supports_cod,supports_prepaid,delivery_days,notes",
		"560001,delhivery,10,yes,yes,2,metro",
		"560001,BlueDart,5,no,,3,",
		"",
		"abc,delhivery",
		"560002,ekart",
		"560003,delhivery,high",
		"560004,delhivery,1,maybe",
		"560005,",
	}, "\n")

	res, err := svc.ImportPincodeRules(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 5, res.Failed)
	require.Len(t, res.Errors, 5)
	assert.Equal(t, 5, res.Errors[0].Line)
	assert.Contains(t, res.Errors[1].Message, `unknown carrier code "ekart"`)

	rules, err := store.Rules.PincodeRules(ctx, "560001")
	require.NoError(t, err)
	require.Len(t, rules, 2)

	byCarrier := map[string]domain.PincodeRule{}
	for _, r := range rules {
		byCarrier[r.CarrierID] = r
	}
	assert.Equal(t, 10, byCarrier["delhivery-id"].Priority)
	assert.Equal(t, "metro", byCarrier["delhivery-id"].Notes)
	assert.Equal(t, domain.RuleTypeManual, byCarrier["delhivery-id"].RuleType)
	assert.False(t, byCarrier["bluedart-id"].SupportsCOD)
	assert.True(t, byCarrier["bluedart-id"].SupportsPrepaid)
	assert.Equal(t, 3, byCarrier["bluedart-id"].DeliveryDays)
}

func TestImportPincodeRules_UpsertsWithoutHeader(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	_, err := svc.ImportPincodeRules(ctx, strings.NewReader("560001,delhivery,1\n"))
	require.NoError(t, err)

	res, err := svc.ImportPincodeRules(ctx, strings.NewReader("560001,delhivery,7\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Updated)

	rules, err := store.Rules.PincodeRules(ctx, "560001")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 7, rules[0].Priority)
}

func TestImportPincodeRules_Malformed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	res, err := svc.ImportPincodeRules(ctx, strings.NewReader("560001,delhivery\n560002,\"delhivery\n"))
	require.ErrorIs(t, err, ErrMalformedCSV)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Created)
}

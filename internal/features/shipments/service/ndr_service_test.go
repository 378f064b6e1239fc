package service

import (
	"context"
	"testing"
	"time"

	adapter "carrier-engine/internal/features/carriers/adapters"
	carrierdomain "carrier-engine/internal/features/carriers/domain"
	orderdomain "carrier-engine/internal/features/orders/domain"
	"carrier-engine/internal/features/shipments/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookedShipment(t *testing.T, h *harness) string {
	t.Helper()
	h.carrier(t, adapter.MockCode, carrierdomain.CarrierStatusActive)
	h.order(t, "o1", orderdomain.PaymentCOD, 700)
	res, err := h.orch.CreateShipment(context.Background(), CreateRequest{OrderID: "o1"})
	require.NoError(t, err)
	require.True(t, res.Success)
	return res.ShipmentID
}

func TestRaiseNDR_AssignsAttemptNumbers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	shipmentID := bookedShipment(t, h)

	first, err := h.ndr.RaiseNDR(ctx, shipmentID, RaiseNDRRequest{Reason: domain.NDRCustomerUnavailable, Description: "No answer"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.AttemptNumber)
	assert.Equal(t, fixedNow, first.NDRDate)

	when := fixedNow.Add(24 * time.Hour)
	second, err := h.ndr.RaiseNDR(ctx, shipmentID, RaiseNDRRequest{Reason: domain.NDRCODNotReady, NDRDate: &when})
	require.NoError(t, err)
	assert.Equal(t, 2, second.AttemptNumber)
	assert.Equal(t, when, second.NDRDate)

	details, err := h.orch.GetShipment(ctx, shipmentID)
	require.NoError(t, err)
	assert.Len(t, details.NDRs, 2)
}

func TestRaiseNDR_Rejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	shipmentID := bookedShipment(t, h)

	_, err := h.ndr.RaiseNDR(ctx, shipmentID, RaiseNDRRequest{Reason: "dog_ate_parcel"})
	assert.ErrorIs(t, err, domain.ErrInvalidNDR)

	_, err = h.ndr.RaiseNDR(ctx, "missing", RaiseNDRRequest{Reason: domain.NDROther})
	assert.ErrorIs(t, err, domain.ErrShipmentNotFound)

	res, err := h.orch.CancelShipment(ctx, shipmentID)
	require.NoError(t, err)
	require.True(t, res.Success)

	_, err = h.ndr.RaiseNDR(ctx, shipmentID, RaiseNDRRequest{Reason: domain.NDROther})
	assert.ErrorIs(t, err, domain.ErrInvalidNDR)
}

func TestActionNDR(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	shipmentID := bookedShipment(t, h)

	ndr, err := h.ndr.RaiseNDR(ctx, shipmentID, RaiseNDRRequest{Reason: domain.NDRCustomerRescheduled})
	require.NoError(t, err)

	_, err = h.ndr.ActionNDR(ctx, ndr.ID, domain.NDRActionInput{Action: domain.NDRActionReschedule}, "ops")
	assert.ErrorIs(t, err, domain.ErrInvalidNDR)

	date := fixedNow.Add(48 * time.Hour)
	updated, err := h.ndr.ActionNDR(ctx, ndr.ID, domain.NDRActionInput{
		Action:            domain.NDRActionReschedule,
		Notes:             "Customer asked for Monday",
		CustomerContacted: true,
		CustomerResponse:  "Deliver on Monday",
		NewDeliveryDate:   &date,
		Resolve:           true,
	}, "ops")
	require.NoError(t, err)
	assert.Equal(t, "ops", updated.ActionBy)
	assert.Equal(t, fixedNow, *updated.ActionDate)
	assert.True(t, updated.IsResolved)
	assert.Equal(t, date, *updated.NewDeliveryDate)

	stored, err := h.store.Shipments.GetNDR(ctx, ndr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NDRActionReschedule, stored.Action)
	assert.Equal(t, "Deliver on Monday", stored.CustomerResponse)

	_, err = h.ndr.ActionNDR(ctx, ndr.ID, domain.NDRActionInput{Action: domain.NDRActionRTO}, "late-operator")
	assert.ErrorIs(t, err, domain.ErrInvalidNDR)
	stored, err = h.store.Shipments.GetNDR(ctx, ndr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NDRActionReschedule, stored.Action)
	assert.Equal(t, "ops", stored.ActionBy)

	_, err = h.ndr.ActionNDR(ctx, "missing", domain.NDRActionInput{Action: domain.NDRActionHold}, "ops")
	assert.ErrorIs(t, err, domain.ErrNDRNotFound)
}

func TestActionNDR_RTOLeavesShipmentStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	shipmentID := bookedShipment(t, h)

	ndr, err := h.ndr.RaiseNDR(ctx, shipmentID, RaiseNDRRequest{Reason: domain.NDRCustomerRefused})
	require.NoError(t, err)

	_, err = h.ndr.ActionNDR(ctx, ndr.ID, domain.NDRActionInput{Action: domain.NDRActionRTO}, "ops")
	require.NoError(t, err)

	shipment, _ := h.store.Shipments.Get(ctx, shipmentID)
	assert.Equal(t, domain.StatusManifested, shipment.Status())
}

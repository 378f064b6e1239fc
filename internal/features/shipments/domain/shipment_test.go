package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusManifested, StatusPickedUp, true},
		{StatusManifested, StatusDelivered, true},
		{StatusInTransit, StatusPickedUp, false},
		{StatusOutForDelivery, StatusInTransit, false},
		{StatusInTransit, StatusInTransit, false},
		{StatusInTransit, StatusRTOInitiated, true},
		{StatusOutForDelivery, StatusRTOInTransit, true},
		{StatusRTOInitiated, StatusRTOInTransit, true},
		{StatusRTOInTransit, StatusRTOInitiated, false},
		{StatusRTOInTransit, StatusInTransit, false},
		{StatusRTOInTransit, StatusLost, true},
		{StatusPending, StatusFailed, true},
		{StatusPickedUp, StatusCancelled, true},
		{StatusDelivered, StatusRTOInitiated, false},
		{StatusDelivered, StatusLost, false},
		{StatusCancelled, StatusManifested, false},
		{StatusRTODelivered, StatusInTransit, false},
		{StatusLost, StatusDelivered, false},
		{StatusFailed, StatusInTransit, false},
		{StatusInTransit, Status("teleported"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatus_TerminalAndFinal(t *testing.T) {
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusRTODelivered.IsTerminal())
	assert.False(t, StatusDelivered.IsTerminal())
	assert.False(t, StatusLost.IsTerminal())

	for _, s := range []Status{StatusDelivered, StatusCancelled, StatusRTODelivered, StatusLost, StatusFailed} {
		assert.True(t, s.IsFinal(), s)
	}
	for _, s := range []Status{StatusPending, StatusManifested, StatusInTransit, StatusRTOInitiated} {
		assert.False(t, s.IsFinal(), s)
	}
}

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   Status
		wantOK bool
	}{
		{"Manifested", StatusManifested, true},
		{"  In Transit ", StatusInTransit, true},
		{"Pending", StatusInTransit, true},
		{"OFD", StatusOutForDelivery, true},
		{"Dispatched", StatusOutForDelivery, true},
		{"DELIVERED", StatusDelivered, true},
		{"RTO", StatusRTOInitiated, true},
		{"Return In Transit", StatusRTOInTransit, true},
		{"Returned", StatusRTODelivered, true},
		{"Canceled", StatusCancelled, true},
		{"picked_up", StatusPickedUp, true},
		{"rto_in_transit", StatusRTOInTransit, true},
		{"Held at hub", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := MapProviderStatus(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewShipment_StartsManifested(t *testing.T) {
	s := NewShipment(now)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StatusManifested, s.Status())
	assert.True(t, s.IsActive())
	require.NotNil(t, s.ManifestedAt)
	assert.Equal(t, now, *s.ManifestedAt)
}

func TestShipment_ApplyTrackingStatus(t *testing.T) {
	s := NewShipment(now)
	later := now.Add(time.Hour)

	changed, err := s.ApplyTrackingStatus(StatusPickedUp, later)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusPickedUp, s.Status())
	require.NotNil(t, s.PickedUpAt)
	assert.Equal(t, later, *s.PickedUpAt)

	changed, err = s.ApplyTrackingStatus(StatusPickedUp, later)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = s.ApplyTrackingStatus(StatusManifested, later)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusPickedUp, s.Status())

	changed, err = s.ApplyTrackingStatus(StatusDelivered, later)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotNil(t, s.DeliveredAt)

	_, err = s.ApplyTrackingStatus(StatusRTOInitiated, later)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestShipment_MarkCancelled(t *testing.T) {
	s := NewShipment(now)

	require.NoError(t, s.MarkCancelled(now))
	assert.Equal(t, StatusCancelled, s.Status())
	assert.False(t, s.IsActive())

	assert.ErrorIs(t, s.MarkCancelled(now), ErrInvalidTransition)

	delivered := RestoreShipment(Shipment{ID: "s2"}, StatusDelivered)
	assert.ErrorIs(t, delivered.MarkCancelled(now), ErrInvalidTransition)
	assert.Equal(t, StatusDelivered, delivered.Status())
}

func TestShipment_MarshalJSONIncludesStatus(t *testing.T) {
	s := RestoreShipment(Shipment{ID: "s1", AWBNumber: "AWB1"}, StatusInTransit)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "in_transit", out["status"])
	assert.Equal(t, "AWB1", out["awb_number"])
}

func TestVolumetricWeight(t *testing.T) {
	assert.Equal(t, 1.2, VolumetricWeight(20, 15, 20))
	assert.Zero(t, VolumetricWeight(0, 10, 10))

	s := &Shipment{}
	s.SetDimensions(0.5, 30, 20, 10)
	assert.Equal(t, 1.2, s.VolumetricWeightKg)
	assert.Equal(t, 1.2, s.ChargeableWeight())
}

func TestTrackingEvent_DedupeKey(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	a := TrackingEvent{Status: "In Transit", EventTime: now}
	b := TrackingEvent{Status: "In Transit", EventTime: now.In(ist)}
	c := TrackingEvent{Status: "In Transit", EventTime: now.Add(time.Second)}

	assert.Equal(t, a.DedupeKey(), b.DedupeKey())
	assert.NotEqual(t, a.DedupeKey(), c.DedupeKey())
}

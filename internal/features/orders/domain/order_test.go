package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder() *Order {
	assigned := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &Order{
		ID:          "123",
		OrderNumber: "ORD-123",
		Channel:     "website",
		PaymentType: PaymentCOD,
		TotalAmount: 999,
		CODAmount:   999,
		Customer:    Customer{Name: "John Doe", Phone: "9999999999"},
		Address:     Address{Line1: "1 MG Road", City: "Pune", State: "Maharashtra", Pincode: "411001"},
		Items: []OrderItem{
			{Quantity: 2, SKU: "SKU-1", Name: "Item 1"},
			{Quantity: 1, SKU: "SKU-2", Name: "Item 2"},
		},
		Shipping: ShippingInfo{AssignedAt: &assigned},
	}
}

func TestOrder_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(sampleOrder())
	assert.NoError(t, err)

	jsonString := string(data)
	assert.Contains(t, jsonString, `"id":"123"`)
	assert.Contains(t, jsonString, `"payment_type":"cod"`)
	assert.Contains(t, jsonString, `"pincode":"411001"`)
	assert.Contains(t, jsonString, `"items":[{`)
}

func TestOrder_ItemHelpers(t *testing.T) {
	o := sampleOrder()

	assert.True(t, o.IsCOD())
	assert.Equal(t, 3, o.ItemCount())
	assert.Equal(t, "Item 1, Item 2", o.ItemDescription())
}

func TestOrder_CloneIsDeep(t *testing.T) {
	o := sampleOrder()
	cp := o.Clone()

	o.Items[0].Name = "changed"
	o.Address.Pincode = "000000"
	*o.Shipping.AssignedAt = time.Time{}

	assert.Equal(t, "Item 1", cp.Items[0].Name)
	assert.Equal(t, "411001", cp.Address.Pincode)
	require.NotNil(t, cp.Shipping.AssignedAt)
	assert.False(t, cp.Shipping.AssignedAt.IsZero())
}

func TestOrder_Validate(t *testing.T) {
	assert.NoError(t, sampleOrder().Validate())

	noPin := sampleOrder()
	noPin.Address.Pincode = ""
	assert.ErrorIs(t, noPin.Validate(), ErrInvalidOrder)

	badPayment := sampleOrder()
	badPayment.PaymentType = "card"
	assert.ErrorIs(t, badPayment.Validate(), ErrInvalidOrder)
}

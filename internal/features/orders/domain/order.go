package domain

import (
	"errors"
	"time"

	"github.com/mohae/deepcopy"
)

// ErrOrderNotFound is returned when the order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// ErrInvalidOrder is returned when an order snapshot lacks fields needed for shipping.
var ErrInvalidOrder = errors.New("invalid order")

// PaymentType is how the customer pays for the order.
type PaymentType string

const (
	PaymentCOD     PaymentType = "cod"
	PaymentPrepaid PaymentType = "prepaid"
)

// Customer is the consignee contact.
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Address is a delivery address.
type Address struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Country string `json:"country,omitempty"`
}

// ShippingInfo is the carrier assignment denormalized onto the order.
type ShippingInfo struct {
	ShipmentID  string     `json:"shipment_id,omitempty"`
	CarrierCode string     `json:"carrier_code,omitempty"`
	AWBNumber   string     `json:"awb_number,omitempty"`
	TrackingURL string     `json:"tracking_url,omitempty"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
}

// Order is the read-only order snapshot the engine ships.
type Order struct {
	// ID is the unique identifier for the order.
	ID string `json:"id"`
	// OrderNumber is the human-facing reference sent to carriers.
	OrderNumber string `json:"order_number"`
	// Channel is the sales channel code (website, marketplace, ...).
	Channel     string      `json:"channel,omitempty"`
	PaymentType PaymentType `json:"payment_type"`
	TotalAmount float64     `json:"total_amount"`
	CODAmount   float64     `json:"cod_amount"`
	// WeightKg is the parcel weight. Zero means unknown.
	WeightKg  float64  `json:"weight_kg"`
	LengthCm  float64  `json:"length_cm,omitempty"`
	BreadthCm float64  `json:"breadth_cm,omitempty"`
	HeightCm  float64  `json:"height_cm,omitempty"`
	Customer  Customer `json:"customer"`
	Address   Address  `json:"address"`
	// Items contains the list of products included in the order.
	Items    []OrderItem  `json:"items"`
	Shipping ShippingInfo `json:"shipping"`
	// CreatedAt is the timestamp when the order was created.
	CreatedAt time.Time `json:"created_at"`
}

// OrderItem represents an individual item within an order.
type OrderItem struct {
	// Quantity is the number of units purchased.
	Quantity int `json:"quantity"`
	// SKU is the Stock Keeping Unit identifier for the product.
	SKU string `json:"sku"`
	// Name is the descriptive name of the product.
	Name string `json:"name"`
}

// IsCOD reports whether the order is cash on delivery.
func (o *Order) IsCOD() bool {
	return o.PaymentType == PaymentCOD
}

// ItemCount sums item quantities.
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// ItemDescription joins item names for carrier manifests.
func (o *Order) ItemDescription() string {
	desc := ""
	for i, it := range o.Items {
		if i > 0 {
			desc += ", "
		}
		desc += it.Name
	}
	return desc
}

// Clone returns a deep copy so callers can read it while the source keeps changing.
func (o *Order) Clone() *Order {
	cp := deepcopy.Copy(*o).(Order)
	return &cp
}

// Validate checks the fields a carrier booking needs.
func (o *Order) Validate() error {
	switch {
	case o.ID == "":
		return errors.Join(ErrInvalidOrder, errors.New("id is required"))
	case o.Address.Pincode == "":
		return errors.Join(ErrInvalidOrder, errors.New("delivery pincode is required"))
	case o.PaymentType != PaymentCOD && o.PaymentType != PaymentPrepaid:
		return errors.Join(ErrInvalidOrder, errors.New("payment type must be cod or prepaid"))
	}
	return nil
}

package domain

import (
	"encoding/json"
	"time"
)

// PaymentType is how the consignee pays.
type PaymentType string

const (
	PaymentCOD     PaymentType = "cod"
	PaymentPrepaid PaymentType = "prepaid"
)

// ShipmentRequest is the provider-agnostic booking payload every adapter receives.
type ShipmentRequest struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`

	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email,omitempty"`

	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	Country      string `json:"country"`

	WeightKg  float64 `json:"weight_kg"`
	LengthCm  float64 `json:"length_cm,omitempty"`
	BreadthCm float64 `json:"breadth_cm,omitempty"`
	HeightCm  float64 `json:"height_cm,omitempty"`

	PaymentType     PaymentType `json:"payment_type"`
	CODAmount       float64     `json:"cod_amount"`
	TotalAmount     float64     `json:"total_amount"`
	ItemCount       int         `json:"item_count"`
	ItemDescription string      `json:"item_description"`

	PickupName    string `json:"pickup_name"`
	PickupAddress string `json:"pickup_address"`
	PickupCity    string `json:"pickup_city"`
	PickupState   string `json:"pickup_state"`
	PickupPincode string `json:"pickup_pincode"`
	PickupPhone   string `json:"pickup_phone"`
}

// IsCOD reports whether the booking collects cash on delivery.
func (r ShipmentRequest) IsCOD() bool {
	return r.PaymentType == PaymentCOD
}

// ServiceabilityResult answers whether a carrier can deliver to a pincode.
type ServiceabilityResult struct {
	Serviceable           bool   `json:"serviceable"`
	CODAvailable          bool   `json:"cod_available"`
	PrepaidAvailable      bool   `json:"prepaid_available"`
	EstimatedDeliveryDays int    `json:"estimated_delivery_days,omitempty"`
	Message               string `json:"message"`
}

// BookingResult is the outcome of a create-shipment call.
type BookingResult struct {
	Success        bool            `json:"success"`
	AWBNumber      string          `json:"awb_number,omitempty"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	LabelURL       string          `json:"label_url,omitempty"`
	Message        string          `json:"message"`
	RawResponse    json.RawMessage `json:"raw_response,omitempty"`
}

// CancellationResult is the outcome of a cancel call.
type CancellationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TrackingEvent is one scan reported by a carrier.
type TrackingEvent struct {
	Status      string    `json:"status"`
	Location    string    `json:"location"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// TrackingResult is a carrier's view of a shipment.
type TrackingResult struct {
	Success    bool            `json:"success"`
	Status     string          `json:"status"`
	StatusCode string          `json:"status_code,omitempty"`
	Location   string          `json:"location,omitempty"`
	Events     []TrackingEvent `json:"events"`
	Message    string          `json:"message"`
	RawData    json.RawMessage `json:"raw_data,omitempty"`
}

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	orderdomain "carrier-engine/internal/features/orders/domain"
	settingsdomain "carrier-engine/internal/features/settings/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrShipmentNotFound     = errors.New("shipment not found")
	ErrActiveShipmentExists = errors.New("order already has an active shipment")
	ErrInvalidTransition    = errors.New("invalid shipment status transition")
)

// volumetricDivisor converts cm³ to volumetric kg.
const volumetricDivisor = 5000

// AssignmentMethod records how the carrier was chosen.
type AssignmentMethod string

const (
	AssignmentManual       AssignmentMethod = "manual"
	AssignmentPincodeBased AssignmentMethod = "pincode_based"
	AssignmentChannelBased AssignmentMethod = "channel_based"
	AssignmentRuleBased    AssignmentMethod = "rule_based"
	AssignmentBulk         AssignmentMethod = "bulk"
)

// Shipment is a carrier booking for an order. Status changes only through
// ApplyTrackingStatus and MarkCancelled.
type Shipment struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	CarrierID      string `json:"carrier_id"`
	CarrierCode    string `json:"carrier_code"`
	AWBNumber      string `json:"awb_number"`
	TrackingNumber string `json:"tracking_number"`
	TrackingURL    string `json:"tracking_url,omitempty"`
	LabelURL       string `json:"label_url,omitempty"`

	status Status

	WeightKg           float64         `json:"weight_kg"`
	LengthCm           float64         `json:"length_cm"`
	BreadthCm          float64         `json:"breadth_cm"`
	HeightCm           float64         `json:"height_cm"`
	VolumetricWeightKg float64         `json:"volumetric_weight_kg"`
	ShippingCost       decimal.Decimal `json:"shipping_cost"`
	IsCOD              bool            `json:"is_cod"`
	CODAmount          float64         `json:"cod_amount"`

	PickupAddress   settingsdomain.Pickup `json:"pickup_address"`
	DeliveryAddress orderdomain.Address   `json:"delivery_address"`
	CarrierResponse json.RawMessage       `json:"carrier_response,omitempty"`

	AssignmentMethod AssignmentMethod `json:"assignment_method"`
	// RuleUsed names the rule or engine step that picked the carrier.
	RuleUsed  string `json:"rule_used,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`

	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date,omitempty"`
	ManifestedAt         *time.Time `json:"manifested_at,omitempty"`
	PickedUpAt           *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt          *time.Time `json:"delivered_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// NewShipment returns a freshly booked shipment in the manifested state.
func NewShipment(at time.Time) *Shipment {
	return &Shipment{
		ID:           uuid.NewString(),
		status:       StatusManifested,
		ManifestedAt: &at,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

// RestoreShipment rebuilds a stored shipment with its persisted status.
func RestoreShipment(s Shipment, status Status) *Shipment {
	s.status = status
	return &s
}

// Status returns the current lifecycle state.
func (s *Shipment) Status() Status {
	return s.status
}

// IsActive reports whether the shipment still occupies its order.
func (s *Shipment) IsActive() bool {
	return !s.status.IsTerminal()
}

// SetDimensions records the parcel size and derives its volumetric weight.
func (s *Shipment) SetDimensions(weightKg, lengthCm, breadthCm, heightCm float64) {
	s.WeightKg = weightKg
	s.LengthCm = lengthCm
	s.BreadthCm = breadthCm
	s.HeightCm = heightCm
	s.VolumetricWeightKg = VolumetricWeight(lengthCm, breadthCm, heightCm)
}

// ChargeableWeight is the greater of actual and volumetric weight.
func (s *Shipment) ChargeableWeight() float64 {
	return max(s.WeightKg, s.VolumetricWeightKg)
}

// ApplyTrackingStatus moves the shipment to to. Repeating the current status
// is a no-op; anything the state machine forbids returns ErrInvalidTransition.
func (s *Shipment) ApplyTrackingStatus(to Status, at time.Time) (bool, error) {
	if to == s.status {
		return false, nil
	}
	if !CanTransition(s.status, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, to)
	}

	s.status = to
	s.UpdatedAt = at
	switch to {
	case StatusPickedUp:
		if s.PickedUpAt == nil {
			s.PickedUpAt = &at
		}
	case StatusDelivered:
		s.DeliveredAt = &at
	}
	return true, nil
}

// MarkCancelled cancels a shipment that has not reached a final state.
func (s *Shipment) MarkCancelled(at time.Time) error {
	if s.status.IsFinal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, StatusCancelled)
	}
	s.status = StatusCancelled
	s.UpdatedAt = at
	return nil
}

// MarshalJSON includes the unexported status.
func (s Shipment) MarshalJSON() ([]byte, error) {
	type plain Shipment
	return json.Marshal(struct {
		plain
		Status Status `json:"status"`
	}{plain: plain(s), Status: s.status})
}

// VolumetricWeight is L×B×H in cm divided by 5000, rounded to 2 places.
func VolumetricWeight(lengthCm, breadthCm, heightCm float64) float64 {
	if lengthCm <= 0 || breadthCm <= 0 || heightCm <= 0 {
		return 0
	}
	v := decimal.NewFromFloat(lengthCm).
		Mul(decimal.NewFromFloat(breadthCm)).
		Mul(decimal.NewFromFloat(heightCm)).
		Div(decimal.NewFromInt(volumetricDivisor)).
		Round(2)
	return v.InexactFloat64()
}

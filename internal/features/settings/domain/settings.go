package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidSettings is returned when settings fail validation.
var ErrInvalidSettings = errors.New("invalid shipping settings")

const (
	DefaultWeightKg             = 0.5
	DefaultMaxAllocationRetries = 3
)

// Pickup is the warehouse shipments are collected from.
type Pickup struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Phone   string `json:"phone"`
}

// ShippingSettings is the singleton configuration read on every allocation.
type ShippingSettings struct {
	// PrimaryCarrierID is tried after all rules fail. Empty disables the step.
	PrimaryCarrierID                    string  `json:"primary_carrier_id,omitempty"`
	EnableChannelRules                  bool    `json:"enable_channel_rules"`
	EnablePincodeRules                  bool    `json:"enable_pincode_rules"`
	CheckServiceabilityBeforeAllocation bool    `json:"check_serviceability_before_allocation"`
	DefaultWeightKg                     float64 `json:"default_weight_kg"`
	// MaxCODAmount caps cash-on-delivery orders. Zero means no cap.
	MaxCODAmount         float64 `json:"max_cod_amount"`
	MaxAllocationRetries int     `json:"max_allocation_retries"`
	Pickup               Pickup  `json:"pickup"`
}

// DefaultSettings returns the settings used until an operator saves their own.
func DefaultSettings() ShippingSettings {
	return ShippingSettings{
		EnableChannelRules:                  true,
		EnablePincodeRules:                  true,
		CheckServiceabilityBeforeAllocation: true,
		DefaultWeightKg:                     DefaultWeightKg,
		MaxAllocationRetries:                DefaultMaxAllocationRetries,
	}
}

// Validate checks numeric bounds.
func (s *ShippingSettings) Validate() error {
	if s.DefaultWeightKg <= 0 {
		return fmt.Errorf("%w: default_weight_kg must be positive", ErrInvalidSettings)
	}
	if s.MaxCODAmount < 0 {
		return fmt.Errorf("%w: max_cod_amount cannot be negative", ErrInvalidSettings)
	}
	if s.MaxAllocationRetries < 0 {
		return fmt.Errorf("%w: max_allocation_retries cannot be negative", ErrInvalidSettings)
	}
	return nil
}

// CODAllowed reports whether amount is within the COD cap.
func (s *ShippingSettings) CODAllowed(amount float64) bool {
	return s.MaxCODAmount <= 0 || amount <= s.MaxCODAmount
}

// WeightOrDefault returns weight, or the default when weight is not set.
func (s *ShippingSettings) WeightOrDefault(weight float64) float64 {
	if weight > 0 {
		return weight
	}
	if s.DefaultWeightKg > 0 {
		return s.DefaultWeightKg
	}
	return DefaultWeightKg
}

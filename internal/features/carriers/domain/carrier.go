package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrCarrierNotFound is returned when no carrier matches the requested id or code.
var ErrCarrierNotFound = errors.New("carrier not found")

// CarrierStatus represents whether a carrier can receive bookings.
type CarrierStatus string

const (
	// CarrierStatusActive carriers are eligible for allocation.
	CarrierStatusActive CarrierStatus = "active"
	// CarrierStatusInactive carriers are kept for history only.
	CarrierStatusInactive CarrierStatus = "inactive"
	// CarrierStatusTesting carriers are being integrated and never allocated.
	CarrierStatusTesting CarrierStatus = "testing"
)

// TrackingNumberPlaceholder is substituted in Carrier.TrackingURLTemplate.
const TrackingNumberPlaceholder = "{tracking_number}"

// Carrier is a logistics provider that can book and deliver shipments.
type Carrier struct {
	// ID is the unique identifier (UUID string).
	ID string `json:"id"`
	// Name is the display name.
	Name string `json:"name"`
	// Code is the unique lowercase code used to resolve the adapter.
	Code string `json:"code"`
	// TrackingURLTemplate is a public tracking page with a {tracking_number} placeholder.
	TrackingURLTemplate string `json:"tracking_url_template,omitempty"`
	// SupportsCOD indicates cash-on-delivery bookings are accepted.
	SupportsCOD bool `json:"supports_cod"`
	// SupportsPrepaid indicates prepaid bookings are accepted.
	SupportsPrepaid bool `json:"supports_prepaid"`
	// SupportsReverse indicates reverse pickups are offered.
	SupportsReverse bool `json:"supports_reverse"`
	// Status controls allocation eligibility.
	Status CarrierStatus `json:"status"`
	// Priority orders carriers for tie-breaks and default fallback (higher first).
	Priority int `json:"priority"`
	// Metrics holds rolling performance numbers.
	Metrics CarrierMetrics `json:"metrics"`
}

// CarrierMetrics holds rolling performance counters for a carrier.
type CarrierMetrics struct {
	SuccessRate        float64    `json:"success_rate"`
	AvgDeliveryDays    float64    `json:"avg_delivery_days"`
	SLAAdherenceRate   float64    `json:"sla_adherence_rate"`
	TotalAPICalls      int64      `json:"total_api_calls"`
	SuccessfulAPICalls int64      `json:"successful_api_calls"`
	FailedAPICalls     int64      `json:"failed_api_calls"`
	LastAPICheck       *time.Time `json:"last_api_check,omitempty"`
}

// APISuccessRate returns the share of successful API calls as a percentage.
func (m CarrierMetrics) APISuccessRate() float64 {
	if m.TotalAPICalls == 0 {
		return 0
	}
	return float64(m.SuccessfulAPICalls) / float64(m.TotalAPICalls) * 100
}

// NormalizeCode lowercases and trims a carrier code.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// IsActive reports whether the carrier may be allocated.
func (c *Carrier) IsActive() bool {
	return c != nil && c.Status == CarrierStatusActive
}

// SupportsPayment reports whether the carrier handles the given payment mode.
func (c *Carrier) SupportsPayment(isCOD bool) bool {
	if isCOD {
		return c.SupportsCOD
	}
	return c.SupportsPrepaid
}

// TrackingURL renders the public tracking link, or "" when no template is set.
func (c *Carrier) TrackingURL(trackingNumber string) string {
	if c.TrackingURLTemplate == "" || trackingNumber == "" {
		return ""
	}
	return strings.ReplaceAll(c.TrackingURLTemplate, TrackingNumberPlaceholder, trackingNumber)
}

package service

import (
	"carrier-engine/internal/features/shipments/domain"
)

// FailureKind classifies why a booking did not happen.
type FailureKind string

const (
	// FailureConflict means the order already holds an active shipment or is being booked.
	FailureConflict FailureKind = "conflict"
	// FailureNoCarrier means no eligible carrier was found or configured.
	FailureNoCarrier FailureKind = "no_carrier"
	// FailureInvalid means the order cannot be shipped as is.
	FailureInvalid FailureKind = "invalid"
	// FailureRejected means the carrier answered with a business failure.
	FailureRejected FailureKind = "rejected"
	// FailureTransport means the carrier could not be reached.
	FailureTransport FailureKind = "transport"
	// FailureInternal means local storage failed before the carrier was called.
	FailureInternal FailureKind = "internal"
)

// CreateRequest asks for a carrier booking for one order.
type CreateRequest struct {
	OrderID string
	// CarrierCode forces a carrier. Empty runs allocation.
	CarrierCode string
	User        string
	// Force cancels the order's active shipment before booking again.
	Force bool
	// Bulk marks bookings made by BulkAllocate.
	Bulk bool
}

// ShipmentResult is the outcome of CreateShipment.
type ShipmentResult struct {
	Success          bool                    `json:"success"`
	OrderID          string                  `json:"order_id"`
	ShipmentID       string                  `json:"shipment_id,omitempty"`
	CarrierID        string                  `json:"carrier_id,omitempty"`
	CarrierCode      string                  `json:"carrier_code,omitempty"`
	CarrierName      string                  `json:"carrier_name,omitempty"`
	AWBNumber        string                  `json:"awb_number,omitempty"`
	TrackingNumber   string                  `json:"tracking_number,omitempty"`
	TrackingURL      string                  `json:"tracking_url,omitempty"`
	LabelURL         string                  `json:"label_url,omitempty"`
	AssignmentMethod domain.AssignmentMethod `json:"assignment_method,omitempty"`
	RuleUsed         string                  `json:"rule_used,omitempty"`
	Message          string                  `json:"message"`
	FailureKind      FailureKind             `json:"failure_kind,omitempty"`
	// ReconciliationRequired is set when the carrier booked the parcel but
	// the shipment could not be stored.
	ReconciliationRequired bool `json:"reconciliation_required,omitempty"`
	// Attempts counts bulk retries.
	Attempts int `json:"attempts,omitempty"`
}

func failed(orderID string, kind FailureKind, message string) *ShipmentResult {
	return &ShipmentResult{
		OrderID:     orderID,
		FailureKind: kind,
		Message:     message,
	}
}

// CancelResult is the outcome of CancelShipment.
type CancelResult struct {
	Success    bool          `json:"success"`
	ShipmentID string        `json:"shipment_id"`
	Status     domain.Status `json:"status"`
	Message    string        `json:"message"`
}

// BulkResult aggregates a BulkAllocate run. Results follow the input order.
type BulkResult struct {
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []ShipmentResult `json:"results"`
}

// RefreshSummary aggregates a RefreshActiveShipments run.
type RefreshSummary struct {
	Total         int `json:"total"`
	StatusChanged int `json:"status_changed"`
	EventsAdded   int `json:"events_added"`
	Failed        int `json:"failed"`
}

// ShipmentDetails is a shipment with its scans and NDRs.
type ShipmentDetails struct {
	Shipment *domain.Shipment       `json:"shipment"`
	Events   []domain.TrackingEvent `json:"tracking_events"`
	NDRs     []domain.NDRRecord     `json:"ndrs"`
}

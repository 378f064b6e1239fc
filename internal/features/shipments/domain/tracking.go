package domain

import (
	"encoding/json"
	"time"
)

// TrackingEvent is one append-only scan recorded against a shipment.
type TrackingEvent struct {
	ID         string `json:"id"`
	ShipmentID string `json:"shipment_id"`
	// Status is the carrier's own status text.
	Status string `json:"status"`
	// MappedStatus is the internal state Status maps to, if any.
	MappedStatus Status          `json:"mapped_status,omitempty"`
	StatusCode   string          `json:"status_code,omitempty"`
	Location     string          `json:"location,omitempty"`
	Description  string          `json:"description,omitempty"`
	EventTime    time.Time       `json:"event_time"`
	RawData      json.RawMessage `json:"raw_data,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DedupeKey identifies an event by (status, event time).
func (e TrackingEvent) DedupeKey() string {
	return e.Status + "|" + e.EventTime.UTC().Format(time.RFC3339Nano)
}

// TrackingUpdate is the result of one tracking refresh.
type TrackingUpdate struct {
	ShipmentID     string `json:"shipment_id"`
	PreviousStatus Status `json:"previous_status"`
	Status         Status `json:"status"`
	StatusChanged  bool   `json:"status_changed"`
	EventsAdded    int    `json:"events_added"`
	ProviderStatus string `json:"provider_status"`
	Message        string `json:"message,omitempty"`
}

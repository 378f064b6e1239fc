package domain

import "time"

// APICallType classifies outbound carrier calls.
type APICallType string

const (
	APICallServiceability APICallType = "serviceability"
	APICallCreateShipment APICallType = "create_shipment"
	APICallCancel         APICallType = "cancel"
	APICallTrack          APICallType = "track"
)

// APILog is an append-only record of one outbound carrier call.
type APILog struct {
	ID             string            `json:"id"`
	CarrierID      string            `json:"carrier_id"`
	CarrierCode    string            `json:"carrier_code"`
	CallType       APICallType       `json:"call_type"`
	RequestURL     string            `json:"request_url"`
	RequestMethod  string            `json:"request_method"`
	RequestHeaders map[string]string `json:"request_headers,omitempty"`
	RequestBody    string            `json:"request_body,omitempty"`
	ResponseStatus int               `json:"response_status"`
	ResponseBody   string            `json:"response_body,omitempty"`
	ResponseTimeMs int64             `json:"response_time_ms"`
	IsSuccess      bool              `json:"is_success"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	ReferenceID    string            `json:"reference_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

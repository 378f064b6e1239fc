package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNDRNotFound = errors.New("ndr record not found")
	ErrInvalidNDR  = errors.New("invalid ndr")
)

// NDRReason is why a delivery attempt failed.
type NDRReason string

const (
	NDRCustomerUnavailable NDRReason = "customer_unavailable"
	NDRWrongAddress        NDRReason = "wrong_address"
	NDRAddressIncomplete   NDRReason = "address_incomplete"
	NDRCustomerRefused     NDRReason = "customer_refused"
	NDRCODNotReady         NDRReason = "cod_not_ready"
	NDRCustomerRescheduled NDRReason = "customer_rescheduled"
	NDRAreaNotServiceable  NDRReason = "area_not_serviceable"
	NDROther               NDRReason = "other"
)

// Valid reports whether r is a known reason.
func (r NDRReason) Valid() bool {
	switch r {
	case NDRCustomerUnavailable, NDRWrongAddress, NDRAddressIncomplete, NDRCustomerRefused,
		NDRCODNotReady, NDRCustomerRescheduled, NDRAreaNotServiceable, NDROther:
		return true
	}
	return false
}

// NDRAction is the operator's decision on a failed attempt.
type NDRAction string

const (
	NDRActionReattempt  NDRAction = "reattempt"
	NDRActionRTO        NDRAction = "rto"
	NDRActionHold       NDRAction = "hold"
	NDRActionReschedule NDRAction = "reschedule"
)

// Valid reports whether a is a known action.
func (a NDRAction) Valid() bool {
	switch a {
	case NDRActionReattempt, NDRActionRTO, NDRActionHold, NDRActionReschedule:
		return true
	}
	return false
}

// NDRRecord tracks one failed delivery attempt and what was done about it.
type NDRRecord struct {
	ID                string    `json:"id"`
	ShipmentID        string    `json:"shipment_id"`
	NDRDate           time.Time `json:"ndr_date"`
	Reason            NDRReason `json:"reason"`
	ReasonDescription string    `json:"reason_description,omitempty"`
	// AttemptNumber is assigned by the store: previous max for the shipment + 1.
	AttemptNumber int `json:"attempt_number"`

	Action      NDRAction  `json:"action,omitempty"`
	ActionNotes string     `json:"action_notes,omitempty"`
	ActionBy    string     `json:"action_by,omitempty"`
	ActionDate  *time.Time `json:"action_date,omitempty"`

	CustomerContacted bool       `json:"customer_contacted"`
	CustomerResponse  string     `json:"customer_response,omitempty"`
	NewDeliveryDate   *time.Time `json:"new_delivery_date,omitempty"`

	IsResolved     bool       `json:"is_resolved"`
	ResolutionDate *time.Time `json:"resolution_date,omitempty"`
}

// NDRActionInput is an operator's response to an NDR.
type NDRActionInput struct {
	Action            NDRAction  `json:"action"`
	Notes             string     `json:"action_notes"`
	CustomerContacted bool       `json:"customer_contacted"`
	CustomerResponse  string     `json:"customer_response"`
	NewDeliveryDate   *time.Time `json:"new_delivery_date"`
	Resolve           bool       `json:"is_resolved"`
}

// Validate checks the action and the reschedule date.
func (in NDRActionInput) Validate() error {
	if !in.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidNDR, in.Action)
	}
	if in.Action == NDRActionReschedule && in.NewDeliveryDate == nil {
		return fmt.Errorf("%w: reschedule requires new_delivery_date", ErrInvalidNDR)
	}
	return nil
}

// ApplyAction records the operator decision taken by user at at. A resolved
// NDR is closed and keeps its last action.
func (r *NDRRecord) ApplyAction(in NDRActionInput, user string, at time.Time) error {
	if r.IsResolved {
		return fmt.Errorf("%w: ndr %s was resolved by %s", ErrInvalidNDR, r.ID, r.ActionBy)
	}
	if err := in.Validate(); err != nil {
		return err
	}

	r.Action = in.Action
	r.ActionNotes = in.Notes
	r.ActionBy = user
	r.ActionDate = &at

	if in.CustomerContacted {
		r.CustomerContacted = true
		r.CustomerResponse = in.CustomerResponse
	}
	if in.NewDeliveryDate != nil {
		d := *in.NewDeliveryDate
		r.NewDeliveryDate = &d
	}
	if in.Resolve {
		r.Resolve(at)
	}
	return nil
}

// Resolve closes the NDR.
func (r *NDRRecord) Resolve(at time.Time) {
	if r.IsResolved {
		return
	}
	r.IsResolved = true
	r.ResolutionDate = &at
}

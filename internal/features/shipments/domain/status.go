package domain

import "strings"

// Status is the internal shipment lifecycle state.
type Status string

const (
	StatusPending        Status = "pending"
	StatusManifested     Status = "manifested"
	StatusPickedUp       Status = "picked_up"
	StatusInTransit      Status = "in_transit"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"

	StatusRTOInitiated Status = "rto_initiated"
	StatusRTOInTransit Status = "rto_in_transit"
	StatusRTODelivered Status = "rto_delivered"

	StatusCancelled Status = "cancelled"
	StatusLost      Status = "lost"
	StatusFailed    Status = "failed"
)

// Position of each state on its branch. Transitions only move forward.
var (
	forwardBranch = map[Status]int{
		StatusPending:        0,
		StatusManifested:     1,
		StatusPickedUp:       2,
		StatusInTransit:      3,
		StatusOutForDelivery: 4,
		StatusDelivered:      5,
	}
	rtoBranch = map[Status]int{
		StatusRTOInitiated: 0,
		StatusRTOInTransit: 1,
		StatusRTODelivered: 2,
	}
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, fwd := forwardBranch[s]
	_, rto := rtoBranch[s]
	return fwd || rto || s == StatusCancelled || s == StatusLost || s == StatusFailed
}

// IsTerminal reports whether the shipment no longer occupies its order.
// An order may hold at most one shipment that is not terminal.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusRTODelivered
}

// IsFinal reports whether the status accepts no further tracking transitions.
func (s Status) IsFinal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRTODelivered, StatusLost, StatusFailed:
		return true
	}
	return false
}

// IsRTO reports whether the shipment is on its way back to origin.
func (s Status) IsRTO() bool {
	_, ok := rtoBranch[s]
	return ok
}

// CanTransition reports whether a shipment in from may move to to.
func CanTransition(from, to Status) bool {
	if from == to || from.IsFinal() || !to.Valid() {
		return false
	}

	switch to {
	case StatusCancelled, StatusLost, StatusFailed:
		return true
	}

	if fromPos, ok := forwardBranch[from]; ok {
		if toPos, ok := forwardBranch[to]; ok {
			return toPos > fromPos
		}
		// Any forward state may turn into a return.
		return to.IsRTO()
	}

	if fromPos, ok := rtoBranch[from]; ok {
		if toPos, ok := rtoBranch[to]; ok {
			return toPos > fromPos
		}
	}
	return false
}

// providerStatuses maps lowercased carrier status text to internal states.
var providerStatuses = map[string]Status{
	"manifested":       StatusManifested,
	"booked":           StatusManifested,
	"shipment created": StatusManifested,
	"not picked":       StatusManifested,

	"picked up":   StatusPickedUp,
	"pickup done": StatusPickedUp,
	"picked":      StatusPickedUp,

	"in transit":          StatusInTransit,
	"intransit":           StatusInTransit,
	"pending":             StatusInTransit,
	"shipped":             StatusInTransit,
	"reached destination": StatusInTransit,

	"out for delivery": StatusOutForDelivery,
	"ofd":              StatusOutForDelivery,
	"dispatched":       StatusOutForDelivery,

	"delivered": StatusDelivered,

	"rto":              StatusRTOInitiated,
	"rto initiated":    StatusRTOInitiated,
	"return initiated": StatusRTOInitiated,

	"rto in transit":    StatusRTOInTransit,
	"return in transit": StatusRTOInTransit,

	"rto delivered":    StatusRTODelivered,
	"returned":         StatusRTODelivered,
	"return delivered": StatusRTODelivered,

	"cancelled": StatusCancelled,
	"canceled":  StatusCancelled,
	"lost":      StatusLost,
	"failed":    StatusFailed,
}

// MapProviderStatus translates a carrier's status text. Internal status
// names are accepted as-is. Unknown text returns false and must not change
// the shipment.
func MapProviderStatus(providerStatus string) (Status, bool) {
	key := strings.ToLower(strings.TrimSpace(providerStatus))
	if key == "" {
		return "", false
	}
	if s, ok := providerStatuses[key]; ok {
		return s, true
	}
	if s := Status(strings.ReplaceAll(key, " ", "_")); s.Valid() {
		return s, true
	}
	return "", false
}

package domain

import (
	"errors"

	carrierdomain "carrier-engine/internal/features/carriers/domain"
	ruledomain "carrier-engine/internal/features/rules/domain"
	shipmentdomain "carrier-engine/internal/features/shipments/domain"

	"github.com/shopspring/decimal"
)

// ErrNoCarrierFound is returned when no step of the chain yields an eligible
// carrier. It is retryable once rules, carriers or settings change.
var ErrNoCarrierFound = errors.New("no eligible carrier found")

// Decision is the outcome of an allocation.
type Decision struct {
	Carrier *carrierdomain.Carrier          `json:"carrier"`
	Method  shipmentdomain.AssignmentMethod `json:"method"`
	// Rule is set when a generic shipping rule picked the carrier.
	Rule *ruledomain.ShippingRule `json:"rule,omitempty"`
	// Reason names the step or rule that matched.
	Reason string `json:"reason"`
}

// CarrierOption is one active carrier's dry-run quote.
type CarrierOption struct {
	CarrierID             string           `json:"carrier_id"`
	CarrierCode           string           `json:"carrier_code"`
	CarrierName           string           `json:"carrier_name"`
	Serviceable           bool             `json:"serviceable"`
	CODAvailable          bool             `json:"cod_available"`
	EstimatedDeliveryDays int              `json:"estimated_delivery_days,omitempty"`
	EstimatedRate         *decimal.Decimal `json:"estimated_rate,omitempty"`
	APISuccessRate        float64          `json:"api_success_rate"`
	Message               string           `json:"message,omitempty"`
}

// Recommendation is a dry run of allocation plus every carrier's options.
type Recommendation struct {
	OrderID  string          `json:"order_id"`
	Decision *Decision       `json:"decision,omitempty"`
	Options  []CarrierOption `json:"options"`
}

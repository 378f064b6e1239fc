package domain

import "strings"

// RuleTypeManual marks pincode rules maintained by hand or CSV import.
const RuleTypeManual = "manual"

// PincodeRule routes one delivery pincode to a carrier.
type PincodeRule struct {
	ID              string `json:"id"`
	Pincode         string `json:"pincode"`
	CarrierID       string `json:"carrier_id"`
	Priority        int    `json:"priority"`
	SupportsCOD     bool   `json:"supports_cod"`
	SupportsPrepaid bool   `json:"supports_prepaid"`
	DeliveryDays    int    `json:"delivery_days,omitempty"`
	RuleType        string `json:"rule_type"`
	Notes           string `json:"notes,omitempty"`
	IsActive        bool   `json:"is_active"`
}

// Allows reports whether the rule accepts the order's payment mode.
func (r *PincodeRule) Allows(isCOD bool) bool {
	if isCOD {
		return r.SupportsCOD
	}
	return r.SupportsPrepaid
}

// PaymentMatch is the payment selector of a ChannelShippingRule.
type PaymentMatch string

const (
	PaymentMatchCOD     PaymentMatch = "cod"
	PaymentMatchPrepaid PaymentMatch = "prepaid"
	PaymentMatchAll     PaymentMatch = "all"
)

// ChannelShippingRule routes orders from one sales channel to a preferred carrier.
type ChannelShippingRule struct {
	ID          string       `json:"id"`
	Channel     string       `json:"channel"`
	PaymentType PaymentMatch `json:"payment_type"`
	CarrierID   string       `json:"carrier_id"`
	Priority    int          `json:"priority"`
	IsActive    bool         `json:"is_active"`
}

// MatchesExactly reports whether the rule names this exact payment type.
func (r *ChannelShippingRule) MatchesExactly(channel, paymentType string) bool {
	return strings.EqualFold(r.Channel, channel) && strings.EqualFold(string(r.PaymentType), paymentType)
}

// MatchesAny reports whether the rule is the channel's catch-all.
func (r *ChannelShippingRule) MatchesAny(channel string) bool {
	return strings.EqualFold(r.Channel, channel) && r.PaymentType == PaymentMatchAll
}

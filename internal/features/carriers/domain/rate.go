package domain

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Zone is a geographic area a carrier prices separately.
type Zone struct {
	ID        string   `json:"id"`
	CarrierID string   `json:"carrier_id"`
	Name      string   `json:"name"`
	Code      string   `json:"code"`
	States    []string `json:"states"`
	// Pincodes holds exact pincodes or inclusive "from-to" ranges.
	Pincodes []string `json:"pincodes"`
}

// Matches reports whether the zone covers the state or pincode.
func (z Zone) Matches(state, pincode string) bool {
	for _, s := range z.States {
		if strings.EqualFold(s, state) {
			return true
		}
	}
	for _, p := range z.Pincodes {
		if pincodeInEntry(pincode, p) {
			return true
		}
	}
	return false
}

func pincodeInEntry(pincode, entry string) bool {
	from, to, isRange := strings.Cut(entry, "-")
	if !isRange {
		return strings.TrimSpace(entry) == pincode
	}
	pin, err := strconv.Atoi(pincode)
	if err != nil {
		return false
	}
	lo, err1 := strconv.Atoi(strings.TrimSpace(from))
	hi, err2 := strconv.Atoi(strings.TrimSpace(to))
	if err1 != nil || err2 != nil {
		return false
	}
	return pin >= lo && pin <= hi
}

// Rate is a carrier rate card row for a weight band, optionally restricted to a zone.
type Rate struct {
	ID                   string          `json:"id"`
	CarrierID            string          `json:"carrier_id"`
	ZoneCode             string          `json:"zone_code,omitempty"`
	MinWeight            decimal.Decimal `json:"min_weight"`
	MaxWeight            decimal.Decimal `json:"max_weight"`
	BaseRate             decimal.Decimal `json:"base_rate"`
	PerKgRate            decimal.Decimal `json:"per_kg_rate"`
	CODCharge            decimal.Decimal `json:"cod_charge"`
	FuelSurchargePercent decimal.Decimal `json:"fuel_surcharge_percent"`
}

// Covers reports whether weight falls inside the band.
func (r Rate) Covers(weight decimal.Decimal) bool {
	return weight.GreaterThanOrEqual(r.MinWeight) && weight.LessThanOrEqual(r.MaxWeight)
}

// Calculate prices a parcel: base rate plus the per-kg rate above the band minimum,
// then the fuel surcharge, then the flat COD charge. Rounded to 2 places.
func (r Rate) Calculate(weight decimal.Decimal, isCOD bool) decimal.Decimal {
	rate := r.BaseRate
	if weight.GreaterThan(r.MinWeight) {
		rate = rate.Add(weight.Sub(r.MinWeight).Mul(r.PerKgRate))
	}

	rate = rate.Add(rate.Mul(r.FuelSurchargePercent).Div(hundred))

	if isCOD {
		rate = rate.Add(r.CODCharge)
	}

	return rate.Round(2)
}

// QuoteRate picks the most specific rate for a destination and weight:
// a rate bound to a matching zone wins over a zone-less one.
func QuoteRate(rates []Rate, zones []Zone, state, pincode string, weight decimal.Decimal, isCOD bool) (decimal.Decimal, bool) {
	matched := make(map[string]bool, len(zones))
	for _, z := range zones {
		if z.Matches(state, pincode) {
			matched[z.Code] = true
		}
	}

	var generic *Rate
	for i := range rates {
		r := &rates[i]
		if !r.Covers(weight) {
			continue
		}
		if r.ZoneCode == "" {
			if generic == nil {
				generic = r
			}
			continue
		}
		if matched[r.ZoneCode] {
			return r.Calculate(weight, isCOD), true
		}
	}

	if generic != nil {
		return generic.Calculate(weight, isCOD), true
	}
	return decimal.Zero, false
}

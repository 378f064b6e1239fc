// Package seed loads carriers and allocation rules from a YAML or JSON file
// into the configured store. Applying the same file twice leaves the store
// unchanged.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	adapter "carrier-engine/internal/features/carriers/adapters"
	carrierdomain "carrier-engine/internal/features/carriers/domain"
	carrierports "carrier-engine/internal/features/carriers/ports"
	ruledomain "carrier-engine/internal/features/rules/domain"
	ruleports "carrier-engine/internal/features/rules/ports"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ErrInvalidSeed is returned for entries that cannot be stored.
var ErrInvalidSeed = errors.New("invalid seed entry")

// File is the seed document.
type File struct {
	Carriers      []CarrierSeed      `mapstructure:"carriers"`
	ChannelRules  []ChannelRuleSeed  `mapstructure:"channel_rules"`
	ShippingRules []ShippingRuleSeed `mapstructure:"shipping_rules"`
	PincodeRules  []PincodeRuleSeed  `mapstructure:"pincode_rules"`
}

// CarrierSeed describes one carrier with its credentials and rate card.
type CarrierSeed struct {
	Code                string           `mapstructure:"code"`
	Name                string           `mapstructure:"name"`
	TrackingURLTemplate string           `mapstructure:"tracking_url_template"`
	SupportsCOD         bool             `mapstructure:"supports_cod"`
	SupportsPrepaid     bool             `mapstructure:"supports_prepaid"`
	SupportsReverse     bool             `mapstructure:"supports_reverse"`
	Status              string           `mapstructure:"status"`
	Priority            int              `mapstructure:"priority"`
	Credentials         []CredentialSeed `mapstructure:"credentials"`
	Zones               []ZoneSeed       `mapstructure:"zones"`
	Rates               []RateSeed       `mapstructure:"rates"`
}

// CredentialSeed holds one environment's API secrets. Secret values may
// reference environment variables as ${NAME}.
type CredentialSeed struct {
	Environment   string            `mapstructure:"environment"`
	APIKey        string            `mapstructure:"api_key"`
	APISecret     string            `mapstructure:"api_secret"`
	ClientID      string            `mapstructure:"client_id"`
	ClientSecret  string            `mapstructure:"client_secret"`
	AccessToken   string            `mapstructure:"access_token"`
	BaseURL       string            `mapstructure:"base_url"`
	WebhookSecret string            `mapstructure:"webhook_secret"`
	Config        map[string]string `mapstructure:"config"`
	Active        *bool             `mapstructure:"active"`
}

type ZoneSeed struct {
	Code     string   `mapstructure:"code"`
	Name     string   `mapstructure:"name"`
	States   []string `mapstructure:"states"`
	Pincodes []string `mapstructure:"pincodes"`
}

// RateSeed amounts are decimal strings; plain YAML numbers are accepted too.
type RateSeed struct {
	Zone                 string `mapstructure:"zone"`
	MinWeight            string `mapstructure:"min_weight"`
	MaxWeight            string `mapstructure:"max_weight"`
	BaseRate             string `mapstructure:"base_rate"`
	PerKgRate            string `mapstructure:"per_kg_rate"`
	CODCharge            string `mapstructure:"cod_charge"`
	FuelSurchargePercent string `mapstructure:"fuel_surcharge_percent"`
}

// ChannelRuleSeed routes a sales channel to a carrier code.
type ChannelRuleSeed struct {
	Channel     string `mapstructure:"channel"`
	PaymentType string `mapstructure:"payment_type"`
	Carrier     string `mapstructure:"carrier"`
	Priority    int    `mapstructure:"priority"`
	Active      *bool  `mapstructure:"active"`
}

// ShippingRuleSeed is a field condition. Name identifies the rule across runs.
type ShippingRuleSeed struct {
	Name            string `mapstructure:"name"`
	Field           string `mapstructure:"field"`
	Operator        string `mapstructure:"operator"`
	Value           any    `mapstructure:"value"`
	Carrier         string `mapstructure:"carrier"`
	FallbackCarrier string `mapstructure:"fallback_carrier"`
	Priority        int    `mapstructure:"priority"`
	Enabled         *bool  `mapstructure:"enabled"`
}

type PincodeRuleSeed struct {
	Pincode         string `mapstructure:"pincode"`
	Carrier         string `mapstructure:"carrier"`
	Priority        int    `mapstructure:"priority"`
	SupportsCOD     bool   `mapstructure:"supports_cod"`
	SupportsPrepaid bool   `mapstructure:"supports_prepaid"`
	DeliveryDays    int    `mapstructure:"delivery_days"`
	Notes           string `mapstructure:"notes"`
	Active          *bool  `mapstructure:"active"`
}

// Load reads a seed file. The format follows the file extension.
func Load(path string) (*File, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("failed to decode seed file %s: %w", path, err)
	}
	return &f, nil
}

// Default is applied to an empty in-memory store so the service can book
// against the built-in mock carrier out of the box.
func Default() *File {
	return &File{
		Carriers: []CarrierSeed{{
			Code:                adapter.MockCode,
			Name:                "Mock Carrier",
			TrackingURLTemplate: "https://track.example.com/" + carrierdomain.TrackingNumberPlaceholder,
			SupportsCOD:         true,
			SupportsPrepaid:     true,
			Status:              string(carrierdomain.CarrierStatusActive),
		}},
	}
}

// RuleSaver validates and stores channel and shipping rules.
type RuleSaver interface {
	SaveChannelRule(ctx context.Context, rule *ruledomain.ChannelShippingRule) error
	SaveShippingRule(ctx context.Context, rule *ruledomain.ShippingRule) error
}

// Deps are the stores a seed file is applied to.
type Deps struct {
	Carriers    carrierports.CarrierRepository
	Credentials carrierports.CredentialRepository
	Rates       carrierports.RateRepository
	RateWriter  carrierports.RateWriter
	Rules       ruleports.RuleRepository
	RuleSaver   RuleSaver
}

// Summary counts what Apply touched.
type Summary struct {
	Carriers      int `json:"carriers"`
	Credentials   int `json:"credentials"`
	Zones         int `json:"zones"`
	Rates         int `json:"rates"`
	ChannelRules  int `json:"channel_rules"`
	ShippingRules int `json:"shipping_rules"`
	PincodeRules  int `json:"pincode_rules"`
}

// Apply upserts every entry of f. Entries are matched to stored ones by their
// natural key (carrier code, credential environment, zone code, rate band,
// channel and payment type, rule name, pincode) so stored IDs survive reruns.
func Apply(ctx context.Context, f *File, deps Deps) (*Summary, error) {
	sum := &Summary{}
	ids := make(map[string]string, len(f.Carriers))

	for i := range f.Carriers {
		c := &f.Carriers[i]
		id, err := applyCarrier(ctx, c, deps, sum)
		if err != nil {
			return sum, fmt.Errorf("carrier %q: %w", c.Code, err)
		}
		ids[carrierdomain.NormalizeCode(c.Code)] = id
	}

	resolve := func(code string) (string, error) {
		code = carrierdomain.NormalizeCode(code)
		if id, ok := ids[code]; ok {
			return id, nil
		}
		carrier, err := deps.Carriers.GetByCode(ctx, code)
		if err != nil {
			return "", err
		}
		ids[code] = carrier.ID
		return carrier.ID, nil
	}

	for _, r := range f.ChannelRules {
		if err := applyChannelRule(ctx, r, deps, resolve); err != nil {
			return sum, fmt.Errorf("channel rule %s/%s: %w", r.Channel, r.PaymentType, err)
		}
		sum.ChannelRules++
	}

	if len(f.ShippingRules) > 0 {
		existing, err := deps.Rules.ShippingRules(ctx)
		if err != nil {
			return sum, err
		}
		byName := make(map[string]string, len(existing))
		for _, r := range existing {
			byName[r.Name] = r.ID
		}
		for _, r := range f.ShippingRules {
			if err := applyShippingRule(ctx, r, byName, deps, resolve); err != nil {
				return sum, fmt.Errorf("shipping rule %q: %w", r.Name, err)
			}
			sum.ShippingRules++
		}
	}

	for _, r := range f.PincodeRules {
		carrierID, err := resolve(r.Carrier)
		if err != nil {
			return sum, fmt.Errorf("pincode rule %s: %w", r.Pincode, err)
		}
		if r.Pincode == "" {
			return sum, fmt.Errorf("%w: pincode rule for %s has no pincode", ErrInvalidSeed, r.Carrier)
		}
		if _, err := deps.Rules.UpsertPincodeRule(ctx, &ruledomain.PincodeRule{
			Pincode:         r.Pincode,
			CarrierID:       carrierID,
			Priority:        r.Priority,
			SupportsCOD:     r.SupportsCOD,
			SupportsPrepaid: r.SupportsPrepaid,
			DeliveryDays:    r.DeliveryDays,
			RuleType:        ruledomain.RuleTypeManual,
			Notes:           r.Notes,
			IsActive:        enabled(r.Active),
		}); err != nil {
			return sum, fmt.Errorf("pincode rule %s: %w", r.Pincode, err)
		}
		sum.PincodeRules++
	}

	return sum, nil
}

func applyCarrier(ctx context.Context, c *CarrierSeed, deps Deps, sum *Summary) (string, error) {
	if c.Code == "" || c.Name == "" {
		return "", fmt.Errorf("%w: code and name are required", ErrInvalidSeed)
	}
	status := carrierdomain.CarrierStatus(c.Status)
	switch status {
	case "":
		status = carrierdomain.CarrierStatusActive
	case carrierdomain.CarrierStatusActive, carrierdomain.CarrierStatusInactive, carrierdomain.CarrierStatusTesting:
	default:
		return "", fmt.Errorf("%w: status %q", ErrInvalidSeed, c.Status)
	}

	carrier := &carrierdomain.Carrier{}
	stored, err := deps.Carriers.GetByCode(ctx, c.Code)
	switch {
	case err == nil:
		carrier = stored
	case !errors.Is(err, carrierdomain.ErrCarrierNotFound):
		return "", err
	}

	carrier.Code = c.Code
	carrier.Name = c.Name
	carrier.TrackingURLTemplate = c.TrackingURLTemplate
	carrier.SupportsCOD = c.SupportsCOD
	carrier.SupportsPrepaid = c.SupportsPrepaid
	carrier.SupportsReverse = c.SupportsReverse
	carrier.Status = status
	carrier.Priority = c.Priority
	if err := deps.Carriers.Save(ctx, carrier); err != nil {
		return "", err
	}
	sum.Carriers++

	if err := applyCredentials(ctx, carrier.ID, c.Credentials, deps, sum); err != nil {
		return "", err
	}
	if err := applyRateCard(ctx, carrier.ID, c, deps, sum); err != nil {
		return "", err
	}
	return carrier.ID, nil
}

func applyCredentials(ctx context.Context, carrierID string, seeds []CredentialSeed, deps Deps, sum *Summary) error {
	if len(seeds) == 0 {
		return nil
	}
	stored, err := deps.Credentials.ListForCarrier(ctx, carrierID)
	if err != nil {
		return err
	}

	for _, s := range seeds {
		env := carrierdomain.Environment(s.Environment)
		if env == "" {
			env = carrierdomain.EnvironmentProduction
		}
		if env != carrierdomain.EnvironmentProduction && env != carrierdomain.EnvironmentSandbox {
			return fmt.Errorf("%w: credential environment %q", ErrInvalidSeed, s.Environment)
		}

		cred := carrierdomain.Credential{CarrierID: carrierID, Environment: env}
		for _, c := range stored {
			if c.Environment == env {
				cred.ID = c.ID
				break
			}
		}
		cred.APIKey = os.ExpandEnv(s.APIKey)
		cred.APISecret = os.ExpandEnv(s.APISecret)
		cred.ClientID = s.ClientID
		cred.ClientSecret = os.ExpandEnv(s.ClientSecret)
		cred.AccessToken = os.ExpandEnv(s.AccessToken)
		cred.BaseURL = s.BaseURL
		cred.WebhookSecret = os.ExpandEnv(s.WebhookSecret)
		cred.Config = carrierdomain.CarrierConfig(s.Config)
		cred.IsActive = enabled(s.Active)

		if err := deps.Credentials.Save(ctx, &cred); err != nil {
			return err
		}
		sum.Credentials++
	}
	return nil
}

func applyRateCard(ctx context.Context, carrierID string, c *CarrierSeed, deps Deps, sum *Summary) error {
	if len(c.Zones) == 0 && len(c.Rates) == 0 {
		return nil
	}

	zones, err := deps.Rates.ZonesForCarrier(ctx, carrierID)
	if err != nil {
		return err
	}
	for _, z := range c.Zones {
		if z.Code == "" {
			return fmt.Errorf("%w: zone without code", ErrInvalidSeed)
		}
		zone := carrierdomain.Zone{CarrierID: carrierID, Code: z.Code, Name: z.Name, States: z.States, Pincodes: z.Pincodes}
		for _, stored := range zones {
			if stored.Code == z.Code {
				zone.ID = stored.ID
				break
			}
		}
		if err := deps.RateWriter.SaveZone(ctx, &zone); err != nil {
			return err
		}
		sum.Zones++
	}

	rates, err := deps.Rates.RatesForCarrier(ctx, carrierID)
	if err != nil {
		return err
	}
	for _, r := range c.Rates {
		rate, err := r.toDomain(carrierID)
		if err != nil {
			return err
		}
		for _, stored := range rates {
			if stored.ZoneCode == rate.ZoneCode && stored.MinWeight.Equal(rate.MinWeight) && stored.MaxWeight.Equal(rate.MaxWeight) {
				rate.ID = stored.ID
				break
			}
		}
		if err := deps.RateWriter.SaveRate(ctx, rate); err != nil {
			return err
		}
		sum.Rates++
	}
	return nil
}

func (r RateSeed) toDomain(carrierID string) (*carrierdomain.Rate, error) {
	rate := &carrierdomain.Rate{CarrierID: carrierID, ZoneCode: r.Zone}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"min_weight", r.MinWeight, &rate.MinWeight},
		{"max_weight", r.MaxWeight, &rate.MaxWeight},
		{"base_rate", r.BaseRate, &rate.BaseRate},
		{"per_kg_rate", r.PerKgRate, &rate.PerKgRate},
		{"cod_charge", r.CODCharge, &rate.CODCharge},
		{"fuel_surcharge_percent", r.FuelSurchargePercent, &rate.FuelSurchargePercent},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q: %v", ErrInvalidSeed, f.name, f.raw, err)
		}
		*f.dst = d
	}
	if rate.MaxWeight.LessThan(rate.MinWeight) {
		return nil, fmt.Errorf("%w: max_weight %s is below min_weight %s", ErrInvalidSeed, rate.MaxWeight, rate.MinWeight)
	}
	return rate, nil
}

func applyChannelRule(ctx context.Context, r ChannelRuleSeed, deps Deps, resolve func(string) (string, error)) error {
	carrierID, err := resolve(r.Carrier)
	if err != nil {
		return err
	}

	rule := &ruledomain.ChannelShippingRule{
		Channel:     r.Channel,
		PaymentType: ruledomain.PaymentMatch(r.PaymentType),
		CarrierID:   carrierID,
		Priority:    r.Priority,
		IsActive:    enabled(r.Active),
	}
	if r.Channel != "" {
		stored, err := deps.Rules.ChannelRules(ctx, r.Channel)
		if err != nil {
			return err
		}
		for _, s := range stored {
			if s.MatchesExactly(r.Channel, r.PaymentType) {
				rule.ID = s.ID
				break
			}
		}
	}
	return deps.RuleSaver.SaveChannelRule(ctx, rule)
}

func applyShippingRule(ctx context.Context, r ShippingRuleSeed, byName map[string]string, deps Deps, resolve func(string) (string, error)) error {
	if r.Name == "" {
		return fmt.Errorf("%w: shipping rule name is required", ErrInvalidSeed)
	}
	carrierID, err := resolve(r.Carrier)
	if err != nil {
		return err
	}

	rule := &ruledomain.ShippingRule{
		ID:                byName[r.Name],
		Name:              r.Name,
		Field:             r.Field,
		Operator:          ruledomain.Operator(r.Operator),
		Value:             ruleValue(r.Value),
		AssignedCarrierID: carrierID,
		Priority:          r.Priority,
		Enabled:           enabled(r.Enabled),
	}
	if r.FallbackCarrier != "" {
		if rule.FallbackCarrierID, err = resolve(r.FallbackCarrier); err != nil {
			return err
		}
	}
	if err := deps.RuleSaver.SaveShippingRule(ctx, rule); err != nil {
		return err
	}
	byName[r.Name] = rule.ID
	return nil
}

func ruleValue(v any) ruledomain.RuleValue {
	if items, ok := v.([]any); ok {
		return ruledomain.List(cast.ToStringSlice(items)...)
	}
	return ruledomain.Scalar(v)
}

// enabled treats a missing flag as true.
func enabled(flag *bool) bool {
	return flag == nil || *flag
}

package ports

import (
	"context"

	"carrier-engine/internal/features/rules/domain"
)

// RuleRepository is the secondary port for allocation rules.
type RuleRepository interface {
	// PincodeRules returns every rule for the pincode, active or not.
	PincodeRules(ctx context.Context, pincode string) ([]domain.PincodeRule, error)
	// UpsertPincodeRule inserts or replaces the rule keyed on (pincode, carrier, rule type).
	UpsertPincodeRule(ctx context.Context, rule *domain.PincodeRule) (created bool, err error)

	// ChannelRules returns every rule for the channel, active or not.
	ChannelRules(ctx context.Context, channel string) ([]domain.ChannelShippingRule, error)
	SaveChannelRule(ctx context.Context, rule *domain.ChannelShippingRule) error

	ShippingRules(ctx context.Context) ([]domain.ShippingRule, error)
	SaveShippingRule(ctx context.Context, rule *domain.ShippingRule) error
}

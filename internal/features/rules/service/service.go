package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"carrier-engine/internal/core/logger"
	"carrier-engine/internal/features/rules/domain"
	"carrier-engine/internal/features/rules/ports"

	carrierports "carrier-engine/internal/features/carriers/ports"

	"go.uber.org/zap"
)

// RuleService answers rule lookups for the allocation engine and maintains rule data.
type RuleService struct {
	repo     ports.RuleRepository
	carriers carrierports.CarrierRepository
}

// NewRuleService creates a new RuleService.
func NewRuleService(repo ports.RuleRepository, carriers carrierports.CarrierRepository) *RuleService {
	return &RuleService{
		repo:     repo,
		carriers: carriers,
	}
}

// PincodeCandidates returns the active rules for pincode, highest priority first.
func (s *RuleService) PincodeCandidates(ctx context.Context, pincode string) ([]domain.PincodeRule, error) {
	rules, err := s.repo.PincodeRules(ctx, pincode)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load pincode rules: %w", err)
	}

	active := slices.DeleteFunc(rules, func(r domain.PincodeRule) bool { return !r.IsActive })
	slices.SortStableFunc(active, func(a, b domain.PincodeRule) int { return cmp.Compare(b.Priority, a.Priority) })
	return active, nil
}

// ChannelCandidates returns the active rules for channel: exact payment-type
// matches first, then the channel's "all" rules, each by priority descending.
func (s *RuleService) ChannelCandidates(ctx context.Context, channel, paymentType string) ([]domain.ChannelShippingRule, error) {
	rules, err := s.repo.ChannelRules(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load channel rules: %w", err)
	}

	var exact, fallback []domain.ChannelShippingRule
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		switch {
		case r.MatchesExactly(channel, paymentType):
			exact = append(exact, r)
		case r.MatchesAny(channel):
			fallback = append(fallback, r)
		}
	}

	byPriority := func(a, b domain.ChannelShippingRule) int { return cmp.Compare(b.Priority, a.Priority) }
	slices.SortStableFunc(exact, byPriority)
	slices.SortStableFunc(fallback, byPriority)
	return append(exact, fallback...), nil
}

// MatchingShippingRules returns the enabled generic rules that match oc,
// highest priority first. Rules that fail to evaluate are logged and skipped.
func (s *RuleService) MatchingShippingRules(ctx context.Context, oc domain.OrderContext) ([]domain.ShippingRule, error) {
	rules, err := s.repo.ShippingRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load shipping rules: %w", err)
	}

	rules = slices.DeleteFunc(rules, func(r domain.ShippingRule) bool { return !r.Enabled })
	slices.SortStableFunc(rules, func(a, b domain.ShippingRule) int { return cmp.Compare(b.Priority, a.Priority) })

	matched := make([]domain.ShippingRule, 0, len(rules))
	for i := range rules {
		ok, err := rules[i].Evaluate(oc)
		if err != nil {
			var cmpErr *domain.InvalidComparisonError
			level := zap.WarnLevel
			if errors.As(err, &cmpErr) {
				level = zap.DebugLevel
			}
			logger.Component("rules").Log(level, "Shipping rule skipped",
				zap.String("rule_id", rules[i].ID),
				zap.String("rule", rules[i].Name),
				zap.Error(err),
			)
			continue
		}
		if ok {
			matched = append(matched, rules[i])
		}
	}
	return matched, nil
}

// SaveShippingRule validates and stores a generic rule.
func (s *RuleService) SaveShippingRule(ctx context.Context, rule *domain.ShippingRule) error {
	if rule.Field == "" || rule.AssignedCarrierID == "" {
		return fmt.Errorf("%w: field and assigned carrier are required", domain.ErrInvalidRule)
	}
	if !rule.Operator.Valid() {
		return fmt.Errorf("%w: %s", domain.ErrUnknownOperator, rule.Operator)
	}
	return s.repo.SaveShippingRule(ctx, rule)
}

// SaveChannelRule validates and stores a channel rule.
func (s *RuleService) SaveChannelRule(ctx context.Context, rule *domain.ChannelShippingRule) error {
	switch rule.PaymentType {
	case domain.PaymentMatchCOD, domain.PaymentMatchPrepaid, domain.PaymentMatchAll:
	default:
		return fmt.Errorf("%w: payment type %q", domain.ErrInvalidRule, rule.PaymentType)
	}
	if rule.Channel == "" || rule.CarrierID == "" {
		return fmt.Errorf("%w: channel and carrier are required", domain.ErrInvalidRule)
	}
	return s.repo.SaveChannelRule(ctx, rule)
}

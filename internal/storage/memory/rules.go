package memory

import (
	"context"
	"strings"
	"sync"

	"carrier-engine/internal/features/rules/domain"

	"github.com/google/uuid"
)

// RuleStore implements the rules port.
type RuleStore struct {
	mu       sync.RWMutex
	pincode  []domain.PincodeRule
	channel  []domain.ChannelShippingRule
	shipping []domain.ShippingRule
}

func NewRuleStore() *RuleStore {
	return &RuleStore{}
}

func (s *RuleStore) PincodeRules(ctx context.Context, pincode string) ([]domain.PincodeRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PincodeRule
	for _, r := range s.pincode {
		if r.Pincode == pincode {
			out = append(out, r)
		}
	}
	return out, nil
}

// UpsertPincodeRule replaces the rule with the same (pincode, carrier, rule type).
func (s *RuleStore) UpsertPincodeRule(ctx context.Context, rule *domain.PincodeRule) (bool, error) {
	if rule.RuleType == "" {
		rule.RuleType = domain.RuleTypeManual
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.pincode {
		if r.Pincode == rule.Pincode && r.CarrierID == rule.CarrierID && r.RuleType == rule.RuleType {
			rule.ID = r.ID
			s.pincode[i] = *rule
			return false, nil
		}
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	s.pincode = append(s.pincode, *rule)
	return true, nil
}

func (s *RuleStore) ChannelRules(ctx context.Context, channel string) ([]domain.ChannelShippingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ChannelShippingRule
	for _, r := range s.channel {
		if strings.EqualFold(r.Channel, channel) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *RuleStore) SaveChannelRule(ctx context.Context, rule *domain.ChannelShippingRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.channel {
		if r.ID == rule.ID {
			s.channel[i] = *rule
			return nil
		}
	}
	s.channel = append(s.channel, *rule)
	return nil
}

func (s *RuleStore) ShippingRules(ctx context.Context) ([]domain.ShippingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ShippingRule, len(s.shipping))
	copy(out, s.shipping)
	return out, nil
}

func (s *RuleStore) SaveShippingRule(ctx context.Context, rule *domain.ShippingRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.shipping {
		if r.ID == rule.ID {
			s.shipping[i] = *rule
			return nil
		}
	}
	s.shipping = append(s.shipping, *rule)
	return nil
}

package postgres

import (
	"context"
	"fmt"

	"carrier-engine/internal/features/rules/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RuleRepository implements ports.RuleRepository.
type RuleRepository struct {
	db *gorm.DB
}

func (r *RuleRepository) PincodeRules(ctx context.Context, pincode string) ([]domain.PincodeRule, error) {
	var models []PincodeRuleModel
	if err := r.db.WithContext(ctx).Where("pincode = ?", pincode).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.PincodeRule, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// UpsertPincodeRule inserts the rule or updates the row with the same
// (pincode, carrier, rule type). The stored id is written back to rule.
func (r *RuleRepository) UpsertPincodeRule(ctx context.Context, rule *domain.PincodeRule) (bool, error) {
	if rule.RuleType == "" {
		rule.RuleType = domain.RuleTypeManual
	}
	proposed := uuid.NewString()
	rule.ID = proposed

	m := pincodeRuleFromDomain(rule)
	err := r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "pincode"}, {Name: "carrier_id"}, {Name: "rule_type"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"priority", "supports_cod", "supports_prepaid", "delivery_days", "notes", "is_active",
				}),
			},
			clause.Returning{Columns: []clause.Column{{Name: "id"}}},
		).
		Create(&m).Error
	if err != nil {
		return false, fmt.Errorf("failed to upsert pincode rule: %w", err)
	}

	rule.ID = m.ID
	return m.ID == proposed, nil
}

func (r *RuleRepository) ChannelRules(ctx context.Context, channel string) ([]domain.ChannelShippingRule, error) {
	var models []ChannelRuleModel
	if err := r.db.WithContext(ctx).Where("LOWER(channel) = LOWER(?)", channel).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ChannelShippingRule, 0, len(models))
	for _, m := range models {
		out = append(out, domain.ChannelShippingRule{
			ID:          m.ID,
			Channel:     m.Channel,
			PaymentType: domain.PaymentMatch(m.PaymentType),
			CarrierID:   m.CarrierID,
			Priority:    m.Priority,
			IsActive:    m.IsActive,
		})
	}
	return out, nil
}

func (r *RuleRepository) SaveChannelRule(ctx context.Context, rule *domain.ChannelShippingRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	m := ChannelRuleModel{
		ID:          rule.ID,
		Channel:     rule.Channel,
		PaymentType: string(rule.PaymentType),
		CarrierID:   rule.CarrierID,
		Priority:    rule.Priority,
		IsActive:    rule.IsActive,
	}
	return r.db.WithContext(ctx).Save(&m).Error
}

func (r *RuleRepository) ShippingRules(ctx context.Context) ([]domain.ShippingRule, error) {
	var models []ShippingRuleModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ShippingRule, 0, len(models))
	for _, m := range models {
		rule, err := m.toDomain()
		if err != nil {
			return nil, fmt.Errorf("shipping rule %s has an unreadable value: %w", m.ID, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

func (r *RuleRepository) SaveShippingRule(ctx context.Context, rule *domain.ShippingRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	m, err := shippingRuleFromDomain(rule)
	if err != nil {
		return fmt.Errorf("failed to encode rule value: %w", err)
	}
	return r.db.WithContext(ctx).Save(&m).Error
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carrier-engine/internal/features/carriers/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CarrierRepository implements ports.CarrierRepository.
type CarrierRepository struct {
	db *gorm.DB
}

func (r *CarrierRepository) Get(ctx context.Context, id string) (*domain.Carrier, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *CarrierRepository) GetByCode(ctx context.Context, code string) (*domain.Carrier, error) {
	return r.first(ctx, "code = ?", domain.NormalizeCode(code))
}

func (r *CarrierRepository) first(ctx context.Context, query string, arg string) (*domain.Carrier, error) {
	var m CarrierModel
	if err := r.db.WithContext(ctx).First(&m, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCarrierNotFound, arg)
		}
		return nil, err
	}
	c := m.toDomain()
	return &c, nil
}

func (r *CarrierRepository) List(ctx context.Context) ([]domain.Carrier, error) {
	return r.list(r.db.WithContext(ctx))
}

func (r *CarrierRepository) ListActive(ctx context.Context) ([]domain.Carrier, error) {
	return r.list(r.db.WithContext(ctx).Where("status = ?", domain.CarrierStatusActive))
}

func (r *CarrierRepository) list(q *gorm.DB) ([]domain.Carrier, error) {
	var models []CarrierModel
	if err := q.Order("priority DESC, code ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Carrier, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// Save inserts or replaces a carrier.
func (r *CarrierRepository) Save(ctx context.Context, carrier *domain.Carrier) error {
	carrier.Code = domain.NormalizeCode(carrier.Code)
	if carrier.ID == "" {
		carrier.ID = uuid.NewString()
	}

	m := carrierFromDomain(carrier)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(&m).Error
	if isUniqueViolation(err, "") {
		return fmt.Errorf("carrier code %q already used: %w", carrier.Code, err)
	}
	return err
}

// IncrementAPICounters bumps the counters in one UPDATE so concurrent calls never lose increments.
func (r *CarrierRepository) IncrementAPICounters(ctx context.Context, carrierID string, success bool, at time.Time) error {
	outcome := "failed_api_calls"
	if success {
		outcome = "successful_api_calls"
	}

	res := r.db.WithContext(ctx).Model(&CarrierModel{}).Where("id = ?", carrierID).Updates(map[string]any{
		"total_api_calls": gorm.Expr("total_api_calls + 1"),
		outcome:           gorm.Expr(outcome + " + 1"),
		"last_api_check":  at,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCarrierNotFound, carrierID)
	}
	return nil
}

// CredentialRepository implements ports.CredentialRepository.
type CredentialRepository struct {
	db *gorm.DB
}

func (r *CredentialRepository) ListForCarrier(ctx context.Context, carrierID string) ([]domain.Credential, error) {
	var models []CredentialModel
	if err := r.db.WithContext(ctx).Where("carrier_id = ?", carrierID).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Credential, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// Save inserts or replaces a credential. A second active credential for the
// same environment fails with domain.ErrActiveCredentialExists.
func (r *CredentialRepository) Save(ctx context.Context, cred *domain.Credential) error {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}

	m := credentialFromDomain(cred)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(&m).Error
	if isUniqueViolation(err, activeCredentialIndex) {
		return fmt.Errorf("%w: %s/%s", domain.ErrActiveCredentialExists, cred.CarrierID, cred.Environment)
	}
	return err
}

// APILogRepository implements ports.APILogRepository.
type APILogRepository struct {
	db *gorm.DB
}

func (r *APILogRepository) Append(ctx context.Context, entry *domain.APILog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m := apiLogFromDomain(entry)
	return r.db.WithContext(ctx).Create(&m).Error
}

// ListForCarrier returns the newest entries first.
func (r *APILogRepository) ListForCarrier(ctx context.Context, carrierID string, limit int) ([]domain.APILog, error) {
	q := r.db.WithContext(ctx).Where("carrier_id = ?", carrierID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []APILogModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.APILog, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// RateRepository implements ports.RateRepository.
type RateRepository struct {
	db *gorm.DB
}

func (r *RateRepository) RatesForCarrier(ctx context.Context, carrierID string) ([]domain.Rate, error) {
	var models []RateModel
	if err := r.db.WithContext(ctx).Where("carrier_id = ?", carrierID).Order("min_weight ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Rate, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (r *RateRepository) ZonesForCarrier(ctx context.Context, carrierID string) ([]domain.Zone, error) {
	var models []ZoneModel
	if err := r.db.WithContext(ctx).Where("carrier_id = ?", carrierID).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Zone, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// SaveRate stores a rate card row.
func (r *RateRepository) SaveRate(ctx context.Context, rate *domain.Rate) error {
	if rate.ID == "" {
		rate.ID = uuid.NewString()
	}
	m := RateModel{
		ID:                   rate.ID,
		CarrierID:            rate.CarrierID,
		ZoneCode:             rate.ZoneCode,
		MinWeight:            rate.MinWeight,
		MaxWeight:            rate.MaxWeight,
		BaseRate:             rate.BaseRate,
		PerKgRate:            rate.PerKgRate,
		CODCharge:            rate.CODCharge,
		FuelSurchargePercent: rate.FuelSurchargePercent,
	}
	return r.db.WithContext(ctx).Save(&m).Error
}

// SaveZone stores a pricing zone.
func (r *RateRepository) SaveZone(ctx context.Context, zone *domain.Zone) error {
	if zone.ID == "" {
		zone.ID = uuid.NewString()
	}
	m := ZoneModel{
		ID:        zone.ID,
		CarrierID: zone.CarrierID,
		Name:      zone.Name,
		Code:      zone.Code,
		States:    zone.States,
		Pincodes:  zone.Pincodes,
	}
	return r.db.WithContext(ctx).Save(&m).Error
}

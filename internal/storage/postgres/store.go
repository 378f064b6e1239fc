// Package postgres implements the repositories on gorm for STORAGE_DRIVER=postgres.
package postgres

import (
	"errors"
	"fmt"

	carrierports "carrier-engine/internal/features/carriers/ports"
	orderports "carrier-engine/internal/features/orders/ports"
	ruleports "carrier-engine/internal/features/rules/ports"
	shipmentports "carrier-engine/internal/features/shipments/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	_ carrierports.CarrierRepository    = (*CarrierRepository)(nil)
	_ carrierports.CredentialRepository = (*CredentialRepository)(nil)
	_ carrierports.APILogRepository     = (*APILogRepository)(nil)
	_ carrierports.RateRepository       = (*RateRepository)(nil)
	_ ruleports.RuleRepository          = (*RuleRepository)(nil)
	_ orderports.OrderRepository        = (*OrderRepository)(nil)
	_ shipmentports.ShipmentRepository  = (*ShipmentRepository)(nil)
)

const (
	activeShipmentIndex   = "uniq_active_shipment_per_order"
	activeCredentialIndex = "uniq_active_credential"

	uniqueViolation = "23505"
)

// Store bundles the gorm repositories over one pool.
type Store struct {
	Carriers    *CarrierRepository
	Credentials *CredentialRepository
	APILogs     *APILogRepository
	Rates       *RateRepository
	Rules       *RuleRepository
	Orders      *OrderRepository
	Shipments   *ShipmentRepository
}

// NewStore creates the repositories. The schema must already be migrated.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		Carriers:    &CarrierRepository{db: db},
		Credentials: &CredentialRepository{db: db},
		APILogs:     &APILogRepository{db: db},
		Rates:       &RateRepository{db: db},
		Rules:       &RuleRepository{db: db},
		Orders:      &OrderRepository{db: db},
		Shipments:   &ShipmentRepository{db: db},
	}
}

// Migrate creates or updates every table and the partial unique indexes gorm
// tags cannot express.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&CarrierModel{},
		&CredentialModel{},
		&APILogModel{},
		&ZoneModel{},
		&RateModel{},
		&PincodeRuleModel{},
		&ChannelRuleModel{},
		&ShippingRuleModel{},
		&OrderModel{},
		&ShipmentModel{},
		&TrackingEventModel{},
		&NDRModel{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	statements := []string{
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON shipments (order_id) WHERE status NOT IN ('cancelled', 'rto_delivered')`, activeShipmentIndex),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON carrier_credentials (carrier_id, environment) WHERE is_active`, activeCredentialIndex),
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a unique violation, optionally of
// one named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// Package memory keeps every repository in process. It backs STORAGE_DRIVER=memory
// and the service tests.
package memory

import (
	carrierports "carrier-engine/internal/features/carriers/ports"
	orderports "carrier-engine/internal/features/orders/ports"
	ruleports "carrier-engine/internal/features/rules/ports"
	shipmentports "carrier-engine/internal/features/shipments/ports"
)

var (
	_ carrierports.CarrierRepository    = (*CarrierStore)(nil)
	_ carrierports.CredentialRepository = (*CredentialStore)(nil)
	_ carrierports.APILogRepository     = (*APILogStore)(nil)
	_ carrierports.RateRepository       = (*RateStore)(nil)
	_ ruleports.RuleRepository          = (*RuleStore)(nil)
	_ orderports.OrderRepository        = (*OrderStore)(nil)
	_ shipmentports.ShipmentRepository  = (*ShipmentStore)(nil)
)

// Store bundles the in-memory repositories.
type Store struct {
	Carriers    *CarrierStore
	Credentials *CredentialStore
	APILogs     *APILogStore
	Rates       *RateStore
	Rules       *RuleStore
	Orders      *OrderStore
	Shipments   *ShipmentStore
}

// NewStore creates an empty Store.
func NewStore() *Store {
	orders := NewOrderStore()
	return &Store{
		Carriers:    NewCarrierStore(),
		Credentials: NewCredentialStore(),
		APILogs:     NewAPILogStore(),
		Rates:       NewRateStore(),
		Rules:       NewRuleStore(),
		Orders:      orders,
		Shipments:   NewShipmentStore(orders),
	}
}

package ports

import (
	"context"
	"time"

	"carrier-engine/internal/features/carriers/domain"
)

// CarrierAdapter is the contract every carrier integration implements.
// Business failures come back as results with Success/Serviceable false;
// errors are reserved for transport faults.
type CarrierAdapter interface {
	// CheckServiceability reports whether the carrier delivers from pickupPincode to deliveryPincode.
	CheckServiceability(ctx context.Context, pickupPincode, deliveryPincode string, isCOD bool) (*domain.ServiceabilityResult, error)
	// CreateShipment books a shipment and returns the carrier's AWB.
	CreateShipment(ctx context.Context, req domain.ShipmentRequest) (*domain.BookingResult, error)
	// CancelShipment cancels a booked AWB.
	CancelShipment(ctx context.Context, awbNumber string) (*domain.CancellationResult, error)
	// GetTrackingStatus returns the carrier's current status and scans for an AWB.
	GetTrackingStatus(ctx context.Context, awbNumber string) (*domain.TrackingResult, error)
}

// CarrierRepository is the secondary port for carrier storage.
type CarrierRepository interface {
	Get(ctx context.Context, id string) (*domain.Carrier, error)
	GetByCode(ctx context.Context, code string) (*domain.Carrier, error)
	// List returns every carrier, highest priority first.
	List(ctx context.Context) ([]domain.Carrier, error)
	// ListActive returns active carriers, highest priority first.
	ListActive(ctx context.Context) ([]domain.Carrier, error)
	Save(ctx context.Context, carrier *domain.Carrier) error
	// IncrementAPICounters bumps the call counters in a single atomic update.
	IncrementAPICounters(ctx context.Context, carrierID string, success bool, at time.Time) error
}

// CredentialRepository is the secondary port for carrier credentials.
type CredentialRepository interface {
	ListForCarrier(ctx context.Context, carrierID string) ([]domain.Credential, error)
	Save(ctx context.Context, cred *domain.Credential) error
}

// APILogRepository stores outbound call records.
type APILogRepository interface {
	Append(ctx context.Context, entry *domain.APILog) error
	ListForCarrier(ctx context.Context, carrierID string, limit int) ([]domain.APILog, error)
}

// RateRepository exposes carrier rate cards.
type RateRepository interface {
	RatesForCarrier(ctx context.Context, carrierID string) ([]domain.Rate, error)
	ZonesForCarrier(ctx context.Context, carrierID string) ([]domain.Zone, error)
}

// RateWriter stores rate cards and zones.
type RateWriter interface {
	SaveRate(ctx context.Context, rate *domain.Rate) error
	SaveZone(ctx context.Context, zone *domain.Zone) error
}

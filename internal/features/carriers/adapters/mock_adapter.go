package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"carrier-engine/internal/features/carriers/domain"

	"github.com/google/uuid"
)

// MockCode is the registry code of the built-in mock carrier.
const MockCode = "mock"

// MockStatusManifested is the status the mock reports for every booked AWB.
const MockStatusManifested = "Manifested"

const mockDeliveryDays = 3

// MockAdapter is a deterministic in-process carrier. It is always serviceable,
// books with synthetic AWBs and reports them as manifested.
type MockAdapter struct {
	mu     sync.Mutex
	booked map[string]time.Time
	now    func() time.Time
}

// NewMockAdapter creates a MockAdapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		booked: make(map[string]time.Time),
		now:    time.Now,
	}
}

// CheckServiceability always reports the pincode as serviceable for both payment modes.
func (a *MockAdapter) CheckServiceability(ctx context.Context, pickupPincode, deliveryPincode string, isCOD bool) (*domain.ServiceabilityResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.ServiceabilityResult{
		Serviceable:           true,
		CODAvailable:          true,
		PrepaidAvailable:      true,
		EstimatedDeliveryDays: mockDeliveryDays,
		Message:               fmt.Sprintf("Pincode %s is serviceable", deliveryPincode),
	}, nil
}

// CreateShipment synthesizes an AWB of the form MOCK + 8 uppercase hex characters.
func (a *MockAdapter) CreateShipment(ctx context.Context, req domain.ShipmentRequest) (*domain.BookingResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	awb := "MOCK" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	bookedAt := a.now().UTC().Truncate(time.Second)

	a.mu.Lock()
	a.booked[awb] = bookedAt
	a.mu.Unlock()

	raw, _ := json.Marshal(map[string]any{
		"awb_number":   awb,
		"order_number": req.OrderNumber,
		"booked_at":    bookedAt,
		"status":       MockStatusManifested,
	})

	return &domain.BookingResult{
		Success:        true,
		AWBNumber:      awb,
		TrackingNumber: awb,
		LabelURL:       fmt.Sprintf("https://mock.carrier.local/labels/%s.pdf", awb),
		Message:        "Shipment created successfully",
		RawResponse:    raw,
	}, nil
}

// CancelShipment always succeeds.
func (a *MockAdapter) CancelShipment(ctx context.Context, awbNumber string) (*domain.CancellationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.CancellationResult{
		Success: true,
		Message: fmt.Sprintf("Shipment %s cancelled", awbNumber),
	}, nil
}

// GetTrackingStatus reports every AWB as manifested. AWBs booked through this
// instance carry one event stamped at booking time.
func (a *MockAdapter) GetTrackingStatus(ctx context.Context, awbNumber string) (*domain.TrackingResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	bookedAt, ok := a.booked[awbNumber]
	a.mu.Unlock()

	events := []domain.TrackingEvent{}
	if ok {
		events = append(events, domain.TrackingEvent{
			Status:      MockStatusManifested,
			Location:    "Mock Hub",
			Timestamp:   bookedAt,
			Description: "Shipment manifested",
		})
	}

	return &domain.TrackingResult{
		Success:  true,
		Status:   MockStatusManifested,
		Location: "Mock Hub",
		Events:   events,
		Message:  "Tracking retrieved",
	}, nil
}

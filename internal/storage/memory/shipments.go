package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	orderdomain "carrier-engine/internal/features/orders/domain"
	"carrier-engine/internal/features/shipments/domain"

	"github.com/google/uuid"
)

// ShipmentStore implements ports.ShipmentRepository.
type ShipmentStore struct {
	mu        sync.RWMutex
	shipments map[string]domain.Shipment
	events    map[string][]domain.TrackingEvent
	ndrs      map[string]domain.NDRRecord
	orders    *OrderStore
}

func NewShipmentStore(orders *OrderStore) *ShipmentStore {
	return &ShipmentStore{
		shipments: make(map[string]domain.Shipment),
		events:    make(map[string][]domain.TrackingEvent),
		ndrs:      make(map[string]domain.NDRRecord),
		orders:    orders,
	}
}

func (s *ShipmentStore) Get(ctx context.Context, id string) (*domain.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.shipments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrShipmentNotFound, id)
	}
	return &sh, nil
}

func (s *ShipmentStore) ActiveForOrder(ctx context.Context, orderID string) (*domain.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeForOrder(orderID), nil
}

func (s *ShipmentStore) activeForOrder(orderID string) *domain.Shipment {
	for _, sh := range s.shipments {
		if sh.OrderID == orderID && sh.IsActive() {
			return &sh
		}
	}
	return nil
}

func (s *ShipmentStore) ListRefreshable(ctx context.Context) ([]domain.Shipment, error) {
	s.mu.RLock()
	out := make([]domain.Shipment, 0)
	for _, sh := range s.shipments {
		if !sh.Status().IsFinal() {
			out = append(out, sh)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Shipment) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// SaveBooking stores the shipment and the order assignment under one lock.
func (s *ShipmentStore) SaveBooking(ctx context.Context, shipment *domain.Shipment, info orderdomain.ShippingInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.activeForOrder(shipment.OrderID); existing != nil {
		return fmt.Errorf("%w: order %s has %s", domain.ErrActiveShipmentExists, shipment.OrderID, existing.TrackingNumber)
	}
	for _, sh := range s.shipments {
		if sh.TrackingNumber == shipment.TrackingNumber {
			return fmt.Errorf("tracking number %s already stored", shipment.TrackingNumber)
		}
	}

	s.shipments[shipment.ID] = *shipment
	if s.orders != nil {
		s.orders.assign(shipment.OrderID, info)
	}
	return nil
}

func (s *ShipmentStore) UpdateStatus(ctx context.Context, shipment *domain.Shipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shipments[shipment.ID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrShipmentNotFound, shipment.ID)
	}
	s.shipments[shipment.ID] = *shipment
	return nil
}

func (s *ShipmentStore) ApplyTrackingUpdate(ctx context.Context, shipment *domain.Shipment, events []domain.TrackingEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shipments[shipment.ID]; !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrShipmentNotFound, shipment.ID)
	}
	s.shipments[shipment.ID] = *shipment

	stored := s.events[shipment.ID]
	seen := make(map[string]bool, len(stored))
	for _, e := range stored {
		seen[e.DedupeKey()] = true
	}

	added := 0
	for _, e := range events {
		key := e.DedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.ShipmentID = shipment.ID
		stored = append(stored, e)
		added++
	}
	s.events[shipment.ID] = stored
	return added, nil
}

// TrackingEvents returns the shipment's events, newest first.
func (s *ShipmentStore) TrackingEvents(ctx context.Context, shipmentID string) ([]domain.TrackingEvent, error) {
	s.mu.RLock()
	out := slices.Clone(s.events[shipmentID])
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b domain.TrackingEvent) int { return b.EventTime.Compare(a.EventTime) })
	return out, nil
}

func (s *ShipmentStore) CreateNDR(ctx context.Context, ndr *domain.NDRRecord) error {
	if ndr.ID == "" {
		ndr.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shipments[ndr.ShipmentID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrShipmentNotFound, ndr.ShipmentID)
	}

	attempt := 0
	for _, n := range s.ndrs {
		if n.ShipmentID == ndr.ShipmentID {
			attempt = max(attempt, n.AttemptNumber)
		}
	}
	ndr.AttemptNumber = attempt + 1
	s.ndrs[ndr.ID] = *ndr
	return nil
}

func (s *ShipmentStore) GetNDR(ctx context.Context, id string) (*domain.NDRRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.ndrs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNDRNotFound, id)
	}
	return &n, nil
}

func (s *ShipmentStore) UpdateNDR(ctx context.Context, ndr *domain.NDRRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ndrs[ndr.ID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrNDRNotFound, ndr.ID)
	}
	s.ndrs[ndr.ID] = *ndr
	return nil
}

// ListNDRs returns the shipment's NDRs by attempt number.
func (s *ShipmentStore) ListNDRs(ctx context.Context, shipmentID string) ([]domain.NDRRecord, error) {
	s.mu.RLock()
	var out []domain.NDRRecord
	for _, n := range s.ndrs {
		if n.ShipmentID == shipmentID {
			out = append(out, n)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.NDRRecord) int { return cmp.Compare(a.AttemptNumber, b.AttemptNumber) })
	return out, nil
}

package memory

import (
	"context"
	"fmt"
	"sync"

	"carrier-engine/internal/features/orders/domain"
)

// OrderStore implements ports.OrderRepository.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*domain.Order)}
}

func (s *OrderStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return o.Clone(), nil
}

func (s *OrderStore) SaveOrder(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order.Clone()
	return nil
}

// assign records the carrier assignment. Orders owned by an external source
// are not stored here and are skipped.
func (s *OrderStore) assign(orderID string, info domain.ShippingInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[orderID]; ok {
		o.Shipping = info
	}
}

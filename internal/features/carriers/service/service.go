package service

import (
	"context"
	"fmt"

	"carrier-engine/internal/features/carriers/domain"
	"carrier-engine/internal/features/carriers/ports"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// CarrierService answers read queries about carriers and their API health.
type CarrierService struct {
	carriers ports.CarrierRepository
	logs     ports.APILogRepository
}

// NewCarrierService creates a new CarrierService.
func NewCarrierService(carriers ports.CarrierRepository, logs ports.APILogRepository) *CarrierService {
	return &CarrierService{
		carriers: carriers,
		logs:     logs,
	}
}

// ListCarriers returns every carrier, highest priority first.
func (s *CarrierService) ListCarriers(ctx context.Context) ([]domain.Carrier, error) {
	carriers, err := s.carriers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list carriers: %w", err)
	}
	return carriers, nil
}

// RecentAPILogs returns the latest API calls made to the carrier with code.
func (s *CarrierService) RecentAPILogs(ctx context.Context, code string, limit int) ([]domain.APILog, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	limit = min(limit, maxLogLimit)

	carrier, err := s.carriers.GetByCode(ctx, domain.NormalizeCode(code))
	if err != nil {
		return nil, err
	}

	logs, err := s.logs.ListForCarrier(ctx, carrier.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list api logs: %w", err)
	}
	return logs, nil
}

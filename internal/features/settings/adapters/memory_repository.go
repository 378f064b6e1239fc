package adapters

import (
	"context"
	"sync"

	"carrier-engine/internal/features/settings/domain"
)

// MemorySettingsRepository keeps settings in process memory.
type MemorySettingsRepository struct {
	mu       sync.RWMutex
	settings *domain.ShippingSettings
}

// NewMemorySettingsRepository creates an empty MemorySettingsRepository.
func NewMemorySettingsRepository() *MemorySettingsRepository {
	return &MemorySettingsRepository{}
}

func (r *MemorySettingsRepository) Save(ctx context.Context, settings *domain.ShippingSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *settings
	r.settings = &cp
	return nil
}

func (r *MemorySettingsRepository) Get(ctx context.Context) (*domain.ShippingSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.settings == nil {
		return nil, nil
	}
	cp := *r.settings
	return &cp, nil
}

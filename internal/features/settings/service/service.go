package service

import (
	"context"
	"fmt"

	"carrier-engine/internal/features/settings/domain"
	"carrier-engine/internal/features/settings/ports"
)

// SettingsServiceImpl implements ports.SettingsService.
type SettingsServiceImpl struct {
	repo ports.SettingsRepository
}

// NewSettingsService creates a new SettingsServiceImpl.
func NewSettingsService(repo ports.SettingsRepository) *SettingsServiceImpl {
	return &SettingsServiceImpl{
		repo: repo,
	}
}

// Get returns the stored settings, or the defaults when none were saved.
func (s *SettingsServiceImpl) Get(ctx context.Context) (domain.ShippingSettings, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		return domain.ShippingSettings{}, fmt.Errorf("service: failed to get settings: %w", err)
	}
	if settings == nil {
		return domain.DefaultSettings(), nil
	}
	return *settings, nil
}

// Update validates and replaces the settings.
func (s *SettingsServiceImpl) Update(ctx context.Context, settings domain.ShippingSettings) (domain.ShippingSettings, error) {
	if err := settings.Validate(); err != nil {
		return domain.ShippingSettings{}, err
	}

	if err := s.repo.Save(ctx, &settings); err != nil {
		return domain.ShippingSettings{}, fmt.Errorf("service: failed to save settings: %w", err)
	}

	return settings, nil
}

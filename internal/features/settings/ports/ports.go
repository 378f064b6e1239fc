package ports

import (
	"context"

	"carrier-engine/internal/features/settings/domain"
)

// SettingsService defines the primary port for shipping settings.
type SettingsService interface {
	Get(ctx context.Context) (domain.ShippingSettings, error)
	Update(ctx context.Context, settings domain.ShippingSettings) (domain.ShippingSettings, error)
}

// SettingsRepository defines the secondary port for settings storage.
// Get returns nil, nil when nothing has been saved yet.
type SettingsRepository interface {
	Get(ctx context.Context) (*domain.ShippingSettings, error)
	Save(ctx context.Context, settings *domain.ShippingSettings) error
}

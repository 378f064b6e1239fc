package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"carrier-engine/internal/core/cache"
	"carrier-engine/internal/features/settings/domain"
)

const settingsCacheKey = "shipping_settings"

// RedisSettingsRepository stores the settings document as JSON under one key.
type RedisSettingsRepository struct {
	cache cache.Cache
}

// NewRedisSettingsRepository creates a new RedisSettingsRepository.
func NewRedisSettingsRepository(c cache.Cache) *RedisSettingsRepository {
	return &RedisSettingsRepository{
		cache: c,
	}
}

// Save stores the settings without expiry.
func (r *RedisSettingsRepository) Save(ctx context.Context, settings *domain.ShippingSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := r.cache.Set(ctx, settingsCacheKey, data, 0); err != nil {
		return fmt.Errorf("failed to save settings to cache: %w", err)
	}

	return nil
}

// Get returns the stored settings, or nil when none were saved.
func (r *RedisSettingsRepository) Get(ctx context.Context) (*domain.ShippingSettings, error) {
	data, err := r.cache.Get(ctx, settingsCacheKey)
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settings from cache: %w", err)
	}

	settings := domain.DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	return &settings, nil
}

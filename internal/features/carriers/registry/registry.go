// Package registry resolves carrier codes to adapter implementations.
package registry

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"carrier-engine/internal/core/logger"
	adapter "carrier-engine/internal/features/carriers/adapters"
	"carrier-engine/internal/features/carriers/apilog"
	"carrier-engine/internal/features/carriers/domain"
	"carrier-engine/internal/features/carriers/ports"

	"go.uber.org/zap"
)

// AdapterFactory builds an adapter for a resolved credential.
type AdapterFactory func(cred *domain.Credential, client *http.Client) ports.CarrierAdapter

// Registry maps carrier codes to adapter factories and injects credentials.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]AdapterFactory

	credentials ports.CredentialRepository
	client      *http.Client
	apiLogger   *apilog.Logger
	mock        *adapter.MockAdapter
}

// New creates an empty Registry. Adapters it returns are wrapped by apiLogger.
func New(credentials ports.CredentialRepository, client *http.Client, apiLogger *apilog.Logger) *Registry {
	return &Registry{
		factories:   make(map[string]AdapterFactory),
		credentials: credentials,
		client:      client,
		apiLogger:   apiLogger,
		mock:        adapter.NewMockAdapter(),
	}
}

// NewDefault creates a Registry with every built-in integration registered.
func NewDefault(credentials ports.CredentialRepository, client *http.Client, apiLogger *apilog.Logger) *Registry {
	r := New(credentials, client, apiLogger)
	r.Register(adapter.DelhiveryCode, adapter.NewDelhiveryFactory)
	return r
}

// Register binds code to factory, replacing any previous binding.
func (r *Registry) Register(code string, factory AdapterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[domain.NormalizeCode(code)] = factory
}

// IsRegistered reports whether code has a real integration.
func (r *Registry) IsRegistered(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[domain.NormalizeCode(code)]
	return ok
}

// Codes returns the registered carrier codes.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.factories))
	for code := range r.factories {
		codes = append(codes, code)
	}
	return codes
}

// GetAdapter returns the logged adapter for carrier. Unregistered codes and
// carriers without an active credential get the shared mock adapter.
func (r *Registry) GetAdapter(ctx context.Context, carrier *domain.Carrier) (ports.CarrierAdapter, error) {
	code := domain.NormalizeCode(carrier.Code)

	r.mu.RLock()
	factory, ok := r.factories[code]
	r.mu.RUnlock()

	if !ok {
		return r.wrap(carrier, r.mock), nil
	}

	creds, err := r.credentials.ListForCarrier(ctx, carrier.ID)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to load credentials for %s: %w", code, err)
	}

	cred, found := domain.SelectCredential(creds)
	if !found {
		logger.Component("registry").Warn("No active credential, using mock adapter",
			zap.String("carrier", code),
		)
		return r.wrap(carrier, r.mock), nil
	}

	return r.wrap(carrier, factory(cred, r.client)), nil
}

func (r *Registry) wrap(carrier *domain.Carrier, a ports.CarrierAdapter) ports.CarrierAdapter {
	if r.apiLogger == nil {
		return a
	}
	return r.apiLogger.Wrap(carrier, a)
}

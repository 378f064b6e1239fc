package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"carrier-engine/internal/features/carriers/domain"

	"github.com/google/uuid"
)

// CarrierStore implements ports.CarrierRepository.
type CarrierStore struct {
	mu       sync.RWMutex
	carriers map[string]domain.Carrier
}

func NewCarrierStore() *CarrierStore {
	return &CarrierStore{carriers: make(map[string]domain.Carrier)}
}

func (s *CarrierStore) Get(ctx context.Context, id string) (*domain.Carrier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carriers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCarrierNotFound, id)
	}
	return &c, nil
}

func (s *CarrierStore) GetByCode(ctx context.Context, code string) (*domain.Carrier, error) {
	code = domain.NormalizeCode(code)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.carriers {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrCarrierNotFound, code)
}

func (s *CarrierStore) List(ctx context.Context) ([]domain.Carrier, error) {
	return s.list(func(domain.Carrier) bool { return true }), nil
}

func (s *CarrierStore) ListActive(ctx context.Context) ([]domain.Carrier, error) {
	return s.list(func(c domain.Carrier) bool { return c.IsActive() }), nil
}

func (s *CarrierStore) list(keep func(domain.Carrier) bool) []domain.Carrier {
	s.mu.RLock()
	out := make([]domain.Carrier, 0, len(s.carriers))
	for _, c := range s.carriers {
		if keep(c) {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Carrier) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})
	return out
}

// Save inserts or replaces a carrier. Codes are unique.
func (s *CarrierStore) Save(ctx context.Context, carrier *domain.Carrier) error {
	carrier.Code = domain.NormalizeCode(carrier.Code)
	if carrier.ID == "" {
		carrier.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.carriers {
		if c.Code == carrier.Code && id != carrier.ID {
			return fmt.Errorf("carrier code %q already used by %s", carrier.Code, id)
		}
	}
	s.carriers[carrier.ID] = *carrier
	return nil
}

func (s *CarrierStore) IncrementAPICounters(ctx context.Context, carrierID string, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carriers[carrierID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrCarrierNotFound, carrierID)
	}
	c.Metrics.TotalAPICalls++
	if success {
		c.Metrics.SuccessfulAPICalls++
	} else {
		c.Metrics.FailedAPICalls++
	}
	c.Metrics.LastAPICheck = &at
	s.carriers[carrierID] = c
	return nil
}

// CredentialStore implements ports.CredentialRepository.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string][]domain.Credential
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: make(map[string][]domain.Credential)}
}

func (s *CredentialStore) ListForCarrier(ctx context.Context, carrierID string) ([]domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.creds[carrierID]), nil
}

// Save inserts or replaces a credential, allowing one active credential per
// (carrier, environment).
func (s *CredentialStore) Save(ctx context.Context, cred *domain.Credential) error {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.creds[cred.CarrierID]
	idx := -1
	for i, c := range list {
		if c.ID == cred.ID {
			idx = i
			continue
		}
		if cred.IsActive && c.IsActive && c.Environment == cred.Environment {
			return fmt.Errorf("%w: %s/%s", domain.ErrActiveCredentialExists, cred.CarrierID, cred.Environment)
		}
	}

	if idx >= 0 {
		list[idx] = *cred
	} else {
		list = append(list, *cred)
	}
	s.creds[cred.CarrierID] = list
	return nil
}

// APILogStore implements ports.APILogRepository.
type APILogStore struct {
	mu   sync.RWMutex
	logs []domain.APILog
}

func NewAPILogStore() *APILogStore {
	return &APILogStore{}
}

func (s *APILogStore) Append(ctx context.Context, entry *domain.APILog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *entry)
	return nil
}

// ListForCarrier returns the newest entries first.
func (s *APILogStore) ListForCarrier(ctx context.Context, carrierID string, limit int) ([]domain.APILog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.APILog
	for i := len(s.logs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if s.logs[i].CarrierID == carrierID {
			out = append(out, s.logs[i])
		}
	}
	return out, nil
}

// Len returns the number of stored entries.
func (s *APILogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs)
}

// RateStore implements ports.RateRepository.
type RateStore struct {
	mu    sync.RWMutex
	rates map[string][]domain.Rate
	zones map[string][]domain.Zone
}

func NewRateStore() *RateStore {
	return &RateStore{
		rates: make(map[string][]domain.Rate),
		zones: make(map[string][]domain.Zone),
	}
}

func (s *RateStore) RatesForCarrier(ctx context.Context, carrierID string) ([]domain.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rates[carrierID]), nil
}

func (s *RateStore) ZonesForCarrier(ctx context.Context, carrierID string) ([]domain.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.zones[carrierID]), nil
}

// SaveRate inserts or replaces a rate by ID.
func (s *RateStore) SaveRate(ctx context.Context, rate *domain.Rate) error {
	if rate.ID == "" {
		rate.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.rates[rate.CarrierID]
	for i := range list {
		if list[i].ID == rate.ID {
			list[i] = *rate
			return nil
		}
	}
	s.rates[rate.CarrierID] = append(list, *rate)
	return nil
}

// SaveZone inserts or replaces a zone by ID.
func (s *RateStore) SaveZone(ctx context.Context, zone *domain.Zone) error {
	if zone.ID == "" {
		zone.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.zones[zone.CarrierID]
	for i := range list {
		if list[i].ID == zone.ID {
			list[i] = *zone
			return nil
		}
	}
	s.zones[zone.CarrierID] = append(list, *zone)
	return nil
}

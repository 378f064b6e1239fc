package registry

import (
	"context"
	"errors"
	"net/http"
	"testing"

	adapter "carrier-engine/internal/features/carriers/adapters"
	"carrier-engine/internal/features/carriers/apilog"
	"carrier-engine/internal/features/carriers/domain"
	"carrier-engine/internal/features/carriers/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) ListForCarrier(ctx context.Context, carrierID string) ([]domain.Credential, error) {
	args := m.Called(ctx, carrierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Credential), args.Error(1)
}

func (m *MockCredentialRepository) Save(ctx context.Context, cred *domain.Credential) error {
	return m.Called(ctx, cred).Error(0)
}

// stubAdapter records the credential it was built with.
type stubAdapter struct {
	*adapter.MockAdapter
	cred *domain.Credential
}

func stubFactory(cred *domain.Credential, _ *http.Client) ports.CarrierAdapter {
	return &stubAdapter{MockAdapter: adapter.NewMockAdapter(), cred: cred}
}

func TestRegistry_UnregisteredCodeFallsBackToMock(t *testing.T) {
	creds := new(MockCredentialRepository)
	r := New(creds, http.DefaultClient, nil)

	a, err := r.GetAdapter(context.Background(), &domain.Carrier{ID: "c1", Code: "bluedart"})

	require.NoError(t, err)
	assert.Same(t, r.mock, a)
	creds.AssertNotCalled(t, "ListForCarrier", mock.Anything, mock.Anything)
}

func TestRegistry_PrefersProductionCredential(t *testing.T) {
	creds := new(MockCredentialRepository)
	creds.On("ListForCarrier", mock.Anything, "c1").Return([]domain.Credential{
		{ID: "sandbox", Environment: domain.EnvironmentSandbox, IsActive: true},
		{ID: "prod-inactive", Environment: domain.EnvironmentProduction, IsActive: false},
		{ID: "prod", Environment: domain.EnvironmentProduction, IsActive: true},
	}, nil)

	r := New(creds, http.DefaultClient, nil)
	r.Register("Stub", stubFactory)

	a, err := r.GetAdapter(context.Background(), &domain.Carrier{ID: "c1", Code: "stub"})

	require.NoError(t, err)
	stub, ok := a.(*stubAdapter)
	require.True(t, ok)
	assert.Equal(t, "prod", stub.cred.ID)
}

func TestRegistry_FallsBackToAnyActiveCredential(t *testing.T) {
	creds := new(MockCredentialRepository)
	creds.On("ListForCarrier", mock.Anything, "c1").Return([]domain.Credential{
		{ID: "sandbox", Environment: domain.EnvironmentSandbox, IsActive: true},
	}, nil)

	r := New(creds, http.DefaultClient, nil)
	r.Register("stub", stubFactory)

	a, err := r.GetAdapter(context.Background(), &domain.Carrier{ID: "c1", Code: "STUB"})

	require.NoError(t, err)
	assert.Equal(t, "sandbox", a.(*stubAdapter).cred.ID)
}

func TestRegistry_NoCredentialUsesMock(t *testing.T) {
	creds := new(MockCredentialRepository)
	creds.On("ListForCarrier", mock.Anything, "c1").Return([]domain.Credential{}, nil)

	r := New(creds, http.DefaultClient, nil)
	r.Register("stub", stubFactory)

	a, err := r.GetAdapter(context.Background(), &domain.Carrier{ID: "c1", Code: "stub"})

	require.NoError(t, err)
	assert.Same(t, r.mock, a)
}

func TestRegistry_CredentialLookupError(t *testing.T) {
	creds := new(MockCredentialRepository)
	creds.On("ListForCarrier", mock.Anything, "c1").Return(nil, errors.New("db down"))

	r := New(creds, http.DefaultClient, nil)
	r.Register("stub", stubFactory)

	_, err := r.GetAdapter(context.Background(), &domain.Carrier{ID: "c1", Code: "stub"})

	assert.Error(t, err)
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	creds := new(MockCredentialRepository)
	creds.On("ListForCarrier", mock.Anything, "c1").Return([]domain.Credential{
		{ID: "prod", Environment: domain.EnvironmentProduction, IsActive: true},
	}, nil)

	r := New(creds, http.DefaultClient, nil)
	r.Register("stub", func(*domain.Credential, *http.Client) ports.CarrierAdapter { return adapter.NewMockAdapter() })
	r.Register("stub", stubFactory)

	a, err := r.GetAdapter(context.Background(), &domain.Carrier{ID: "c1", Code: "stub"})

	require.NoError(t, err)
	assert.IsType(t, &stubAdapter{}, a)
	assert.True(t, r.IsRegistered("STUB"))
	assert.Len(t, r.Codes(), 1)
}

func TestRegistry_WrapsWithAPILogger(t *testing.T) {
	r := New(new(MockCredentialRepository), http.DefaultClient, apilog.NewLogger(nil, nil, 0))

	a, err := r.GetAdapter(context.Background(), &domain.Carrier{ID: "c1", Code: "unknown"})

	require.NoError(t, err)
	logged, ok := a.(*apilog.LoggedAdapter)
	require.True(t, ok)
	assert.Same(t, r.mock, logged.Unwrap())
}

func TestNewDefault_RegistersDelhivery(t *testing.T) {
	r := NewDefault(new(MockCredentialRepository), http.DefaultClient, nil)

	assert.True(t, r.IsRegistered(adapter.DelhiveryCode))
}

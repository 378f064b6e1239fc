package service

import (
	"context"
	"fmt"
	"testing"

	"carrier-engine/internal/features/carriers/domain"
	"carrier-engine/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarrierService_ListCarriers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Carriers.Save(ctx, &domain.Carrier{Code: "bluedart", Priority: 1, Status: domain.CarrierStatusActive}))
	require.NoError(t, store.Carriers.Save(ctx, &domain.Carrier{Code: "Delhivery", Priority: 9, Status: domain.CarrierStatusInactive}))

	carriers, err := NewCarrierService(store.Carriers, store.APILogs).ListCarriers(ctx)
	require.NoError(t, err)
	require.Len(t, carriers, 2)
	assert.Equal(t, "delhivery", carriers[0].Code)
	assert.Equal(t, "bluedart", carriers[1].Code)
}

func TestCarrierService_RecentAPILogs(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	carrier := &domain.Carrier{Code: "delhivery", Status: domain.CarrierStatusActive}
	require.NoError(t, store.Carriers.Save(ctx, carrier))

	for i := range 3 {
		require.NoError(t, store.APILogs.Append(ctx, &domain.APILog{
			CarrierID:   carrier.ID,
			CarrierCode: carrier.Code,
			CallType:    domain.APICallTrack,
			ReferenceID: fmt.Sprintf("AWB%d", i),
		}))
	}
	require.NoError(t, store.APILogs.Append(ctx, &domain.APILog{CarrierID: "other"}))

	svc := NewCarrierService(store.Carriers, store.APILogs)

	logs, err := svc.RecentAPILogs(ctx, " DELHIVERY ", 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "AWB2", logs[0].ReferenceID)
	assert.Equal(t, "AWB1", logs[1].ReferenceID)

	logs, err = svc.RecentAPILogs(ctx, "delhivery", 0)
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	_, err = svc.RecentAPILogs(ctx, "ekart", 10)
	assert.ErrorIs(t, err, domain.ErrCarrierNotFound)
}

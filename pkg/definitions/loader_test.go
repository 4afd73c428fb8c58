package definitions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/store"
)

type fakeCatalogStore struct {
	user        store.UserRecord
	userErr     error
	managers    []models.ManagerDefinition
	managersErr error
}

func (f *fakeCatalogStore) UserByID(_ context.Context, _ string) (store.UserRecord, error) {
	return f.user, f.userErr
}

func (f *fakeCatalogStore) ManagersForUser(_ context.Context, _ string) ([]models.ManagerDefinition, error) {
	return f.managers, f.managersErr
}

func TestLoader_Load_PrependsSystemMetaManager(t *testing.T) {
	fake := &fakeCatalogStore{
		user: store.UserRecord{ID: "user-1", LongTermMemoryEnabled: false},
		managers: []models.ManagerDefinition{
			{ManagerID: "WeatherManager", Active: true},
		},
	}
	loader := New(fake)

	result, err := loader.Load(context.Background(), "user-1")

	require.NoError(t, err)
	require.Len(t, result.Managers, 2)
	assert.Equal(t, models.SysMetaManagerID, result.Managers[0].ManagerID)
	assert.Equal(t, "WeatherManager", result.Managers[1].ManagerID)
}

func TestLoader_Load_AppendsMemoryManagerWhenEnabled(t *testing.T) {
	fake := &fakeCatalogStore{
		user: store.UserRecord{ID: "user-1", LongTermMemoryEnabled: true},
	}
	loader := New(fake)

	result, err := loader.Load(context.Background(), "user-1")

	require.NoError(t, err)
	require.Len(t, result.Managers, 2)
	assert.Equal(t, models.SysMemoryManagerID, result.Managers[1].ManagerID)
}

func TestLoader_Load_UnknownUserDegradesToSystemDefaults(t *testing.T) {
	fake := &fakeCatalogStore{userErr: store.ErrUserNotFound}
	loader := New(fake)

	result, err := loader.Load(context.Background(), "ghost")

	require.NoError(t, err)
	require.Len(t, result.Managers, 1)
	assert.Equal(t, models.SysMetaManagerID, result.Managers[0].ManagerID)
}

func TestLoader_Load_StoreUnreachableFails(t *testing.T) {
	fake := &fakeCatalogStore{userErr: errors.New("connection refused")}
	loader := New(fake)

	_, err := loader.Load(context.Background(), "user-1")

	require.ErrorIs(t, err, ErrDefinitionsUnavailable)
}

func TestLoader_Load_BuildsAgentsByIDMap(t *testing.T) {
	fake := &fakeCatalogStore{
		user: store.UserRecord{ID: "user-1"},
		managers: []models.ManagerDefinition{
			{ManagerID: "WeatherManager", Active: true, Agents: []models.AgentDefinition{
				{AgentID: "WeatherAgent"},
			}},
		},
	}
	loader := New(fake)

	result, err := loader.Load(context.Background(), "user-1")

	require.NoError(t, err)
	_, ok := result.Agents["WeatherAgent"]
	assert.True(t, ok)
	_, ok = result.Agents[models.SysMetaAgentID]
	assert.True(t, ok)
}

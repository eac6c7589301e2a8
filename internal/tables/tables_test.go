package tables

import (
	"context"
	"net/http"
	"testing"

	"pos_console/internal/config"
	"pos_console/internal/posapi"
	"pos_console/internal/posapi/posapitest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var floor = []posapi.Table{
	{ID: 1, Number: "1", State: posapi.TableFree},
	{ID: 2, Number: "2", State: posapi.TableOccupied},
	{ID: 3, Number: "Terraza", State: posapi.TableFree},
}

func newLoader(t *testing.T, policy config.ReadPolicy) (*Loader, *posapitest.Backend) {
	t.Helper()
	backend := posapitest.New(t)
	backend.SetTables(floor...)
	client, _ := backend.LoggedIn(t)
	return New(policy, client, zaptest.NewLogger(t)), backend
}

func TestLoadUsesDistinctEndpoints(t *testing.T) {
	loader, backend := newLoader(t, config.ReadPolicySurface)
	ctx := context.Background()

	all, err := loader.Load(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	free, err := loader.Load(ctx, true)
	require.NoError(t, err)
	require.Len(t, free, 2)
	for _, table := range free {
		assert.Equal(t, posapi.TableFree, table.State)
	}

	assert.Equal(t, 1, backend.Count(http.MethodGet, "/mesas"))
	assert.Equal(t, 1, backend.Count(http.MethodGet, "/mesas/libres"))
}

func TestLoadFailureKeepsPriorList(t *testing.T) {
	loader, backend := newLoader(t, config.ReadPolicySurface)
	ctx := context.Background()
	_, err := loader.Load(ctx, false)
	require.NoError(t, err)

	backend.Fail(http.MethodGet, "/mesas/libres", http.StatusBadGateway)
	tables, err := loader.Load(ctx, true)
	assert.Error(t, err)
	assert.Len(t, tables, 3)

	logOnly := New(config.ReadPolicyLog, loader.source, zaptest.NewLogger(t))
	tables, err = logOnly.Load(ctx, true)
	assert.NoError(t, err)
	assert.Empty(t, tables)
}

func TestAdministration(t *testing.T) {
	loader, backend := newLoader(t, config.ReadPolicySurface)
	ctx := context.Background()
	_, err := loader.Load(ctx, false)
	require.NoError(t, err)

	created, err := loader.Create(ctx, "4")
	require.NoError(t, err)
	assert.Equal(t, posapi.TableFree, created.State)
	rec, ok := backend.Last(http.MethodPost, "/mesas")
	require.True(t, ok)
	assert.JSONEq(t, `{"numero":"4","estado":"LIBRE"}`, string(rec.Body))

	_, err = loader.SetState(ctx, 1, posapi.TableOccupied)
	require.NoError(t, err)
	table, ok := loader.Find(1)
	require.True(t, ok)
	assert.Equal(t, posapi.TableOccupied, table.State)

	_, err = loader.SetState(ctx, 1, "ROTA")
	assert.ErrorIs(t, err, ErrUnknownState)

	require.NoError(t, loader.Delete(ctx, 2))
	_, ok = loader.Find(2)
	assert.False(t, ok)
	assert.Len(t, loader.Tables(), 3)

	err = loader.Delete(ctx, 2)
	assert.ErrorIs(t, err, posapi.ErrNotFound)
}

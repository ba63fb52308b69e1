package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setbench/setbench/internal/errors"
	"github.com/setbench/setbench/internal/indexset"
	"github.com/setbench/setbench/internal/logging"
	"github.com/setbench/setbench/internal/metrics"
	"github.com/setbench/setbench/internal/store"
	"github.com/setbench/setbench/pkg/types"
)

func newTestService(maxSeed int) (*Service, *indexset.Manager, *metrics.Ledger) {
	manager := indexset.NewManager(logging.Discard())
	ledger := metrics.NewLedger()
	svc := NewService(store.NewMemoryStore(store.NewGenerator(1)), manager, ledger, maxSeed, logging.Discard())
	return svc, manager, ledger
}

func widget(name string) types.NewRecord {
	return types.NewRecord{Name: name, PriceCents: 500, Quantity: 2, Category: "Tools & Hardware"}
}

func TestService_CreateMirrorsIntoIndexes(t *testing.T) {
	svc, manager, ledger := newTestService(0)
	ctx := context.Background()

	r, timing, err := svc.Create(ctx, widget("Widget"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, timing.Store.Nanoseconds(), int64(0))

	for _, kind := range indexset.Kinds {
		found, _ := manager.Contains(kind, r.ID)
		assert.True(t, found, kind.String())
	}
	assert.Equal(t, 2, ledger.Len(), "db_create + index_insert")
}

func TestService_FailedCreateDoesNotIndex(t *testing.T) {
	svc, manager, ledger := newTestService(0)

	_, _, err := svc.Create(context.Background(), types.NewRecord{})
	require.Error(t, err)
	assert.Equal(t, 0, manager.Size(indexset.KindHash))

	samples := ledger.Samples()
	require.Len(t, samples, 1)
	assert.False(t, samples[0].Success)
	assert.Equal(t, errors.CodeInvalidRecord, samples[0].Notes)
}

func TestService_GetProbesEveryKind(t *testing.T) {
	svc, _, _ := newTestService(0)
	ctx := context.Background()
	r, _, err := svc.Create(ctx, widget("Gadget"))
	require.NoError(t, err)

	d, err := svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, d.Record.ID)
	require.Len(t, d.Lookups, len(indexset.Kinds))
	for i, l := range d.Lookups {
		assert.Equal(t, indexset.Kinds[i], l.Kind)
		assert.True(t, l.Found)
	}

	_, err = svc.Get(ctx, uuid.New())
	assert.True(t, errors.IsNotFound(err))
}

func TestService_UpdateRenamesInSortedIndex(t *testing.T) {
	svc, manager, _ := newTestService(0)
	ctx := context.Background()
	r, _, err := svc.Create(ctx, widget("Zulu"))
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, widget("Mike"))
	require.NoError(t, err)

	name := "Alpha"
	_, _, err = svc.Update(ctx, r.ID, types.RecordPatch{Name: &name})
	require.NoError(t, err)

	require.NoError(t, manager.Verify())
	sorted := manager.SampleFirstN(indexset.KindSorted, 5)
	require.Len(t, sorted, 2)
	assert.Equal(t, r.ID, sorted[0].ID)
	assert.Equal(t, "Alpha", sorted[0].Name)
}

func TestService_DeleteRemovesEverywhere(t *testing.T) {
	svc, manager, _ := newTestService(0)
	ctx := context.Background()
	r, _, err := svc.Create(ctx, widget("Delete Me"))
	require.NoError(t, err)

	_, err = svc.Delete(ctx, r.ID)
	require.NoError(t, err)
	for _, kind := range indexset.Kinds {
		assert.Equal(t, 0, manager.Size(kind))
	}

	_, err = svc.Delete(ctx, r.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestService_SeedAndStatus(t *testing.T) {
	svc, manager, _ := newTestService(100)
	ctx := context.Background()

	res, err := svc.Seed(ctx, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, res.Inserted)
	assert.Equal(t, 40, res.Total)
	require.NoError(t, manager.Verify())

	status := svc.Status()
	require.Len(t, status, 3)
	for _, st := range status {
		assert.Equal(t, 40, st.Size)
		assert.Len(t, st.Sample, StatusSampleSize)
	}

	_, err = svc.Seed(ctx, 101)
	assert.True(t, errors.IsInvalidConfiguration(err))
	_, err = svc.Seed(ctx, 0)
	assert.True(t, errors.IsInvalidConfiguration(err))
}

func TestService_Reset(t *testing.T) {
	svc, manager, ledger := newTestService(0)
	ctx := context.Background()
	_, err := svc.Seed(ctx, 10)
	require.NoError(t, err)

	resetHook := false
	manager.OnReset(func() { resetHook = true })

	res, err := svc.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, res.RecordsDeleted)
	assert.Greater(t, res.SamplesCleared, 0)
	assert.True(t, resetHook)
	assert.Equal(t, 0, ledger.Len())
	assert.Equal(t, 0, manager.Size(indexset.KindSorted))

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

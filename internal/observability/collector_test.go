package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setbench/setbench/internal/indexset"
	"github.com/setbench/setbench/internal/logging"
	"github.com/setbench/setbench/internal/metrics"
	"github.com/setbench/setbench/pkg/types"
)

func TestCollector_ExposesIndexSizes(t *testing.T) {
	manager := indexset.NewManager(logging.Discard())
	for i := 0; i < 3; i++ {
		manager.InsertOrUpdate(types.Record{ID: uuid.New(), Name: "widget", Category: "tools"})
	}

	c := NewCollector(metrics.NewLedger(), manager, nil)

	expected := `
# HELP setbench_index_records Number of records held by each live index.
# TYPE setbench_index_records gauge
setbench_index_records{kind="hash"} 3
setbench_index_records{kind="ordered"} 3
setbench_index_records{kind="sorted"} 3
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected), "setbench_index_records")
	assert.NoError(t, err)
}

func TestCollector_ExposesLedgerAggregates(t *testing.T) {
	ledger := metrics.NewLedger()
	ledger.Observe("db_create", "db", time.Millisecond, 1)
	ledger.Observe("db_create", "db", 3*time.Millisecond, 1)
	ledger.Observe("index_lookup", "all", time.Microsecond, 1)

	routes := NewRouteStats(time.Hour)
	routes.Record("GET /health", 200, time.Millisecond)

	c := NewCollector(ledger, indexset.NewManager(nil), routes)

	// 2 summaries + samples gauge + 3 index gauges + 3 route series
	assert.Equal(t, 9, testutil.CollectAndCount(c))
	assert.Equal(t, 2, testutil.CollectAndCount(c, "setbench_ledger_operation_duration_seconds"))

	expected := `
# HELP setbench_ledger_samples Number of samples currently held by the ledger.
# TYPE setbench_ledger_samples gauge
setbench_ledger_samples 3
`
	assert.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "setbench_ledger_samples"))
}

func TestNewRegistry_Gathers(t *testing.T) {
	c := NewCollector(metrics.NewLedger(), indexset.NewManager(nil), NewRouteStats(time.Hour))
	reg := NewRegistry(c)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

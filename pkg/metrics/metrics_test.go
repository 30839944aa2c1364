package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Names(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWithRegistry("crash_dashboard", reg)

	c.RecordAPIRequest("/api/table", "GET", "200")
	c.RecordInteraction("time_unit", "ok")
	c.UpdateDBConnectionPool(1, 2, 3)
	c.DatasetRows.Set(42)
	c.NewTimer(c.DatasetLoadDuration).ObserveDuration()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"crash_dashboard_api_requests_total",
		"crash_dashboard_interaction_events_total",
		"crash_dashboard_db_connection_pool",
		"crash_dashboard_dataset_rows",
		"crash_dashboard_dataset_load_duration_seconds",
	} {
		assert.True(t, names[want], want)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues(PoolIdle)))
	assert.Equal(t, 42.0, testutil.ToFloat64(c.DatasetRows))
}

func TestCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollectorWithRegistry("a", prometheus.NewRegistry())
		NewCollectorWithRegistry("a", prometheus.NewRegistry())
	})
}

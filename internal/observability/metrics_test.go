package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RunsTotal.WithLabelValues("pull_new", "NO_UPDATE").Inc()
	m.AuctionsStored.Add(12)
	m.ItemFetchFailures.WithLabelValues("not_found").Inc()

	assert.Equal(t, 1.0, counterValue(t, m.RunsTotal.WithLabelValues("pull_new", "NO_UPDATE")))
	assert.Equal(t, 12.0, counterValue(t, m.AuctionsStored))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["test_backfill_item_fetch_failures_total"])
	assert.True(t, names["test_ingestion_auctions_stored_total"])
}

func TestRecordHelpers(t *testing.T) {
	before := counterValue(t, DefaultMetrics.StatisticsStored)
	RecordStatisticsStored(3)
	assert.Equal(t, before+3, counterValue(t, DefaultMetrics.StatisticsStored))

	RecordSnapshot("new", 1500000000000)
	assert.Equal(t, 1.5e12, gaugeValue(t, DefaultMetrics.LastSnapshotSeen))
}
